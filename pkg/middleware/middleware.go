// Package middleware provides the HTTP middleware the API module stacks
// in front of its handlers: request IDs, panic recovery, CORS, and
// access logging.
package middleware

import "net/http"

// Middleware wraps a handler.
type Middleware func(http.Handler) http.Handler

// Chain is an ordered middleware stack. The first middleware added is the
// outermost, so it sees the request first and the response last.
type Chain struct {
	stack []Middleware
}

// NewChain returns a chain holding mws in order.
func NewChain(mws ...Middleware) *Chain {
	return &Chain{stack: append([]Middleware(nil), mws...)}
}

// Use appends mw to the inside of the chain.
func (c *Chain) Use(mw Middleware) {
	c.stack = append(c.stack, mw)
}

// Len reports how many middleware the chain holds.
func (c *Chain) Len() int {
	return len(c.stack)
}

// Then wraps handler with every middleware in the chain.
func (c *Chain) Then(handler http.Handler) http.Handler {
	for i := len(c.stack) - 1; i >= 0; i-- {
		handler = c.stack[i](handler)
	}
	return handler
}
