// Package imaging содержит общие операции с растровыми изображениями:
// определение формата, декодирование и масштабирование.
package imaging

import (
	"bytes"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/nfnt/resize"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DetectFormat определяет формат по заголовку изображения, не декодируя пиксели.
func DetectFormat(data []byte) (domain.ImageFormat, error) {
	if len(data) == 0 {
		return "", e.ErrEmptyImage
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", e.Join(e.ErrImageDecode, err)
	}

	return domain.ImageFormat(format), nil
}

// Decode декодирует изображение любого зарегистрированного формата.
func Decode(data []byte) (image.Image, domain.ImageFormat, error) {
	if len(data) == 0 {
		return nil, "", e.ErrEmptyImage
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", e.Join(e.ErrImageDecode, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, "", e.Wrap("zero-sized image", e.ErrImageDecode)
	}

	return img, domain.ImageFormat(format), nil
}

// ResizeExact масштабирует изображение до width×height без сохранения пропорций.
func ResizeExact(img image.Image, width, height int) image.Image {
	return resize.Resize(uint(width), uint(height), img, resize.Bilinear)
}

// ResizeCover вырезает центральный квадрат исходного изображения и масштабирует его до size×size.
// Обрезка выполняется до масштабирования, поэтому промежуточное изображение не больше исходного.
func ResizeCover(img image.Image, size int) image.Image {
	bounds := img.Bounds()
	side := min(bounds.Dx(), bounds.Dy())

	x0 := bounds.Min.X + (bounds.Dx()-side)/2
	y0 := bounds.Min.Y + (bounds.Dy()-side)/2
	crop := image.Rect(x0, y0, x0+side, y0+side)

	return resize.Resize(uint(size), uint(size), subImage(img, crop), resize.Bilinear)
}

func subImage(img image.Image, r image.Rectangle) image.Image {
	if r == img.Bounds() {
		return img
	}

	if sub, ok := img.(interface {
		SubImage(r image.Rectangle) image.Image
	}); ok {
		return sub.SubImage(r)
	}

	dst := image.NewNRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := 0; y < r.Dy(); y++ {
		for x := 0; x < r.Dx(); x++ {
			dst.Set(x, y, img.At(r.Min.X+x, r.Min.Y+y))
		}
	}

	return dst
}

// RGB возвращает компоненты пикселя без альфа-канала (без премультипликации).
func RGB(img image.Image, x, y int) (r, g, b uint8) {
	c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
	return c.R, c.G, c.B
}
