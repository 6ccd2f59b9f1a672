package generator

import (
	"context"
	"errors"
	"net/http"

	"github.com/JaimeStill/go-agents/pkg/client"
)

var (
	// ErrGenerate wraps a text model call that failed after retries.
	ErrGenerate = errors.New("idea generation failed")
	// ErrAgent indicates an agent that could not be built from its config.
	ErrAgent = errors.New("invalid agent configuration")
	// ErrMalformed indicates a reply that is not an {"ideas": [...]} object.
	ErrMalformed = errors.New("idea response is malformed")
	// ErrTooFewIdeas indicates a reply with fewer usable ideas than required.
	ErrTooFewIdeas = errors.New("too few distinct ideas")
)

// Transient reports whether a completer error is worth retrying. Provider
// rejections (4xx other than 408 and 429), bad agent config, and cancelled
// contexts are not.
func Transient(err error) bool {
	if errors.Is(err, ErrAgent) || errors.Is(err, context.Canceled) {
		return false
	}

	var httpErr *client.HTTPStatusError
	if errors.As(err, &httpErr) {
		switch code := httpErr.StatusCode; {
		case code == http.StatusTooManyRequests, code == http.StatusRequestTimeout:
			return true
		case code >= 500:
			return true
		case code >= 400:
			return false
		}
	}
	return true
}
