package domain

// ImageFormat — формат изображения, определённый по его содержимому.
type ImageFormat string

const (
	FormatJPEG ImageFormat = "jpeg"
	FormatPNG  ImageFormat = "png"
	FormatWebP ImageFormat = "webp"
	FormatGIF  ImageFormat = "gif"
	FormatTIFF ImageFormat = "tiff"
)

// SupportedFormats — форматы, которые принимаются от внешних источников.
var SupportedFormats = map[ImageFormat]struct{}{
	FormatJPEG: {},
	FormatPNG:  {},
	FormatWebP: {},
	FormatGIF:  {},
	FormatTIFF: {},
}

// IsSupported сообщает, входит ли формат в список разрешённых.
func (f ImageFormat) IsSupported() bool {
	_, ok := SupportedFormats[f]
	return ok
}
