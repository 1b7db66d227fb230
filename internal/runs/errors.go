package runs

import (
	"errors"
	"net/http"
)

// Domain errors for run queries.
var (
	ErrNotFound     = errors.New("run not found")
	ErrUnauthorized = errors.New("run belongs to another owner")
	ErrDuplicate    = errors.New("run already exists")
)

// MapHTTPStatus maps run domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
