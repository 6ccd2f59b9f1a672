package storage

import (
	"errors"
	"net/http"
)

var (
	// ErrNotFound indicates the blob does not exist.
	ErrNotFound = errors.New("blob not found")
	// ErrEmptyKey indicates an empty storage key.
	ErrEmptyKey = errors.New("storage key must not be empty")
	// ErrInvalidKey indicates a key with a path traversal segment.
	ErrInvalidKey = errors.New("storage key contains invalid path segment")
	// ErrForeignURL indicates a URL that does not point into this container.
	ErrForeignURL = errors.New("url does not reference this container")
)

// MapHTTPStatus maps storage errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrEmptyKey), errors.Is(err, ErrInvalidKey), errors.Is(err, ErrForeignURL):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}
