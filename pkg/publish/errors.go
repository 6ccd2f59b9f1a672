package publish

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrPublish wraps every failure to post an image.
	ErrPublish = errors.New("publish failed")
	// ErrInvalidPost indicates a post without an image URL or with an
	// over-long caption.
	ErrInvalidPost = errors.New("invalid post")
	// ErrContainer indicates Instagram could not ingest the image.
	ErrContainer = errors.New("media container failed")
	// ErrNotReady indicates the media container was still processing after
	// the last poll.
	ErrNotReady = errors.New("media container not ready")
)

// APIError is an error response from the Graph API.
type APIError struct {
	Status  int    `json:"-"`
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("graph api %d (code %d): %s", e.Status, e.Code, e.Message)
}

// Graph error codes for application, user, and page level throttling.
var throttleCodes = map[int]bool{4: true, 17: true, 32: true, 613: true}

// Transient reports whether err is worth retrying: throttling, server-side
// failures, network errors, and containers still processing.
func Transient(err error) bool {
	if errors.Is(err, ErrInvalidPost) || errors.Is(err, ErrContainer) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case throttleCodes[apiErr.Code]:
			return true
		case apiErr.Status == http.StatusTooManyRequests, apiErr.Status >= 500:
			return true
		case apiErr.Status >= 400:
			return false
		}
	}
	return true
}
