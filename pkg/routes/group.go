// Package routes declares HTTP routes in nested groups and registers them on
// a ServeMux using method-qualified patterns.
package routes

import (
	"net/http"
	"slices"
)

// Group organizes routes under a common prefix. Middleware applies to every
// route in the group and its children.
type Group struct {
	Prefix     string
	Routes     []Route
	Children   []Group
	Middleware []func(http.Handler) http.Handler
}

// Register adds all routes from the given groups to the mux.
func Register(mux *http.ServeMux, groups ...Group) {
	for _, group := range groups {
		registerGroup(mux, "", nil, group)
	}
}

func registerGroup(mux *http.ServeMux, parentPrefix string, parentMw []func(http.Handler) http.Handler, group Group) {
	prefix := parentPrefix + group.Prefix
	mw := slices.Concat(parentMw, group.Middleware)

	for _, route := range group.Routes {
		mux.Handle(route.Method+" "+prefix+route.Pattern, route.handler(mw))
	}
	for _, child := range group.Children {
		registerGroup(mux, prefix, mw, child)
	}
}
