// Package middleware provides the HTTP middleware stack and the handlers
// placed on it: CORS, request logging, and bearer token authentication.
package middleware

import "net/http"

// Middleware wraps a handler.
type Middleware func(http.Handler) http.Handler

// System is an ordered middleware stack. The first middleware added is the
// outermost.
type System interface {
	Use(mw func(http.Handler) http.Handler)
	Apply(handler http.Handler) http.Handler
}

type stack struct {
	items []Middleware
}

// New creates an empty middleware System.
func New() System {
	return &stack{}
}

func (s *stack) Use(mw func(http.Handler) http.Handler) {
	s.items = append(s.items, mw)
}

func (s *stack) Apply(handler http.Handler) http.Handler {
	for i := len(s.items) - 1; i >= 0; i-- {
		handler = s.items[i](handler)
	}
	return handler
}
