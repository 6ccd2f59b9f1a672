package ideas

import (
	"errors"
	"net/http"
)

// Domain errors for idea operations.
var (
	ErrNotFound      = errors.New("idea not found")
	ErrDuplicate     = errors.New("idea already exists")
	ErrInvalidID     = errors.New("invalid idea id")
	ErrInvalidBatch  = errors.New("batch must hold exactly 5 distinct non-empty ideas")
	ErrInvalidReview = errors.New("invalid review")
	ErrInvalidLink   = errors.New("image link must not be empty")
	ErrNotApproved   = errors.New("idea is not approved")
	ErrLinkExists    = errors.New("idea already has a different image link")
	ErrNoImage       = errors.New("idea has no image")
	ErrInvalidPost   = errors.New("post id must not be empty")
	ErrPublished     = errors.New("idea already published as a different post")
)

// MapHTTPStatus maps idea domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNoImage):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidID),
		errors.Is(err, ErrInvalidReview),
		errors.Is(err, ErrInvalidLink),
		errors.Is(err, ErrInvalidPost),
		errors.Is(err, ErrInvalidBatch):
		return http.StatusBadRequest
	case errors.Is(err, ErrDuplicate),
		errors.Is(err, ErrNotApproved),
		errors.Is(err, ErrLinkExists),
		errors.Is(err, ErrPublished):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
