// Package routes declares HTTP endpoints as nested groups and registers
// them on a ServeMux using method-qualified patterns.
package routes

import "net/http"

// Group organizes routes under a common prefix. Middleware wraps every
// route in the group and its children, outermost first.
type Group struct {
	Prefix     string
	Middleware []func(http.Handler) http.Handler
	Routes     []Route
	Children   []Group
}

// Register adds every route in groups to mux and returns the patterns in
// registration order.
func Register(mux *http.ServeMux, groups ...Group) []string {
	var patterns []string
	for _, group := range groups {
		patterns = registerGroup(mux, "", nil, group, patterns)
	}
	return patterns
}

func registerGroup(
	mux *http.ServeMux,
	parentPrefix string,
	parentMW []func(http.Handler) http.Handler,
	group Group,
	patterns []string,
) []string {
	prefix := parentPrefix + group.Prefix
	mw := append(parentMW[:len(parentMW):len(parentMW)], group.Middleware...)

	for _, route := range group.Routes {
		var h http.Handler = route.Handler
		for i := len(mw) - 1; i >= 0; i-- {
			h = mw[i](h)
		}

		pattern := route.Method + " " + prefix + route.Pattern
		mux.Handle(pattern, h)
		patterns = append(patterns, pattern)
	}
	for _, child := range group.Children {
		patterns = registerGroup(mux, prefix, mw, child, patterns)
	}
	return patterns
}
