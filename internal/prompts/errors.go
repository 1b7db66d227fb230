package prompts

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound      = errors.New("prompt not found")
	ErrDuplicate     = errors.New("prompt name already exists")
	ErrInvalidStage  = errors.New("stage must be extract")
	ErrInvalidPrompt = errors.New("invalid prompt")
	ErrInvalidFilter = errors.New("invalid prompt filter")
	ErrActivePrompt  = errors.New("prompt is active; deactivate it first")
)

// MapHTTPStatus maps prompt errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate), errors.Is(err, ErrActivePrompt):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidStage),
		errors.Is(err, ErrInvalidPrompt),
		errors.Is(err, ErrInvalidFilter):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
