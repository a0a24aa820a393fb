package e

import (
	"errors"
	"fmt"
)

var (
	// Внутренние ошибки с транзакциями
	ErrTransactionNotFound = fmt.Errorf("transaction not found")

	// Ошибки изображений
	ErrEmptyImage        = fmt.Errorf("empty image data")
	ErrImageDecode       = fmt.Errorf("image cannot be decoded")
	ErrUnsupportedFormat = fmt.Errorf("unsupported image format")

	// Ошибки модели
	ErrModelNotReady  = fmt.Errorf("model is not initialized")
	ErrModelInference = fmt.Errorf("model inference failed")
	ErrModelDisposed  = fmt.Errorf("model is disposed")

	// Сетевые ошибки загрузки изображений
	ErrInvalidURL          = fmt.Errorf("invalid image url")
	ErrHostUnresolvable    = fmt.Errorf("image host cannot be resolved")
	ErrConnectionRefused   = fmt.Errorf("connection to image host refused")
	ErrImageNotFound       = fmt.Errorf("image not found")
	ErrImageForbidden      = fmt.Errorf("access to image forbidden")
	ErrFetchTimeout        = fmt.Errorf("image download timed out")
	ErrFetchFailed         = fmt.Errorf("image download failed")
	ErrImageTooLarge       = fmt.Errorf("image is too large")
	ErrObjectStorageAbsent = fmt.Errorf("object storage is not configured")

	// Ошибки векторов
	ErrDimensionMismatch = fmt.Errorf("vector dimension mismatch")
	ErrEmptyVectors      = fmt.Errorf("empty vectors")

	// Ошибки хранилища
	ErrKeyNotFound       = fmt.Errorf("key not found")
	ErrCorruptCacheEntry = fmt.Errorf("cache entry cannot be decoded")

	// 400 Bad Request
	ErrStatusBadRequest     = fmt.Errorf("bad request")
	ErrExpectedMultipart    = fmt.Errorf("expected multipart/form-data")
	ErrMissingFields        = fmt.Errorf("missing required fields")
	ErrInvalidMinSimilarity = fmt.Errorf("min_similarity must be within [0, 1]")
	ErrFileTooLarge         = fmt.Errorf("file too large")
	ErrInvalidPrice         = fmt.Errorf("invalid price")
	ErrProductIDRequired    = fmt.Errorf("product id is required")

	// 500 Internal Server Error
	ErrInternalServerError = fmt.Errorf("internal server error")

	// Ошибки конфигурации
	ErrIncorrectEnvVariable = fmt.Errorf("incorrect environment variable")
)

// Wrap оборачивает ошибку
func Wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}

// Join оборачивает причину ошибки сентинелом таксономии, сохраняя обе для errors.Is.
func Join(kind error, cause error) error {
	if cause == nil {
		return kind
	}

	return fmt.Errorf("%w: %w", kind, cause)
}

const internalErrorMessage = "Internal server error."

// userMessages сопоставляет ошибку таксономии с понятным пользователю сообщением.
var userMessages = []struct {
	err error
	msg string
}{
	{ErrEmptyImage, "The uploaded image is empty."},
	{ErrUnsupportedFormat, "The URL does not point to a supported image (JPEG, PNG, WebP, GIF or TIFF)."},
	{ErrImageDecode, "The image could not be read. Please upload a valid JPEG, PNG or WebP file."},
	{ErrImageTooLarge, "The image is too large to process."},
	{ErrInvalidURL, "The image URL is not valid."},
	{ErrObjectStorageAbsent, "Object storage links are not supported by this server."},
	{ErrHostUnresolvable, "The image host could not be found. Please check the URL."},
	{ErrConnectionRefused, "The image server refused the connection."},
	{ErrImageNotFound, "The image was not found at the given URL (404)."},
	{ErrImageForbidden, "Access to the image is forbidden (403)."},
	{ErrFetchTimeout, "Downloading the image took too long. Please try again or use another URL."},
	{ErrModelNotReady, "The image recognition model is still loading. Please try again shortly."},
	{ErrModelInference, "The image could not be analysed by the recognition model."},
	{ErrDimensionMismatch, "The image features are incompatible with the catalog index."},
	{ErrInvalidMinSimilarity, "min_similarity must be a number between 0 and 1."},
	{ErrExpectedMultipart, "The request must be multipart/form-data."},
	{ErrMissingFields, "Required fields are missing."},
	{ErrFileTooLarge, "The uploaded file is too large."},
	{ErrStatusBadRequest, "The request is malformed."},
	{ErrFetchFailed, "The image could not be downloaded."},
}

// UserMessage возвращает сообщение для конечного пользователя по таксономии ошибок.
// Для неизвестных ошибок возвращается сообщение о внутренней ошибке сервера.
func UserMessage(err error) string {
	for _, m := range userMessages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}

	return internalErrorMessage
}

// HasUserMessage сообщает, относится ли ошибка к таксономии с собственным сообщением.
func HasUserMessage(err error) bool {
	return UserMessage(err) != internalErrorMessage
}
