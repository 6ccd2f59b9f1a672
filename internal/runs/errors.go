package runs

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound       = errors.New("run not found")
	ErrInvalidID      = errors.New("invalid run id")
	ErrInvalidTrigger = errors.New("invalid run trigger")
	// ErrRunInProgress is returned when a run is already executing, in this
	// process or another one sharing the database.
	ErrRunInProgress = errors.New("a run is already in progress")
	// ErrAllRowsFailed is recorded when every approved idea failed to link.
	ErrAllRowsFailed = errors.New("every approved idea failed")
)

// MapHTTPStatus maps run errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidID), errors.Is(err, ErrInvalidTrigger):
		return http.StatusBadRequest
	case errors.Is(err, ErrRunInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
