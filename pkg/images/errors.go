package images

import (
	"errors"
	"net/http"

	"google.golang.org/genai"
)

var (
	// ErrGenerate wraps failures returned by the image API.
	ErrGenerate = errors.New("image generation failed")
	// ErrEmptyResponse indicates the API returned no usable image, usually
	// because every candidate was filtered.
	ErrEmptyResponse = errors.New("image api returned no image")
	// ErrUnsupportedImage indicates bytes that are not an accepted image type.
	ErrUnsupportedImage = errors.New("unsupported image content type")
	// ErrTooLarge indicates an image above the configured size cap.
	ErrTooLarge = errors.New("image exceeds maximum size")
)

// Transient reports whether err is worth retrying: rate limits, timeouts,
// and server-side failures.
func Transient(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests, apiErr.Code == http.StatusRequestTimeout:
			return true
		case apiErr.Code >= 500:
			return true
		case apiErr.Code >= 400:
			return false
		}
	}
	return !errors.Is(err, ErrUnsupportedImage) &&
		!errors.Is(err, ErrTooLarge) &&
		!errors.Is(err, ErrEmptyResponse)
}
