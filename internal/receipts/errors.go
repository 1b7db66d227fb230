package receipts

import (
	"errors"
	"net/http"
)

// Domain errors for receipt operations. ErrNotFound, ErrUnauthorized and
// ErrStorageFailure are the failures a commit can report.
var (
	ErrNotFound       = errors.New("receipt not found")
	ErrUnauthorized   = errors.New("receipt belongs to another owner")
	ErrStorageFailure = errors.New("receipt storage failure")
	ErrDuplicate      = errors.New("receipt already exists")
	ErrFileTooLarge   = errors.New("file exceeds maximum upload size")
	ErrInvalidFile    = errors.New("invalid file")
	ErrInvalidStatus  = errors.New("invalid receipt status transition")
	ErrNotUploaded    = errors.New("receipt file has not been uploaded")
)

// MapHTTPStatus maps receipt domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrDuplicate), errors.Is(err, ErrInvalidStatus):
		return http.StatusConflict
	case errors.Is(err, ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrInvalidFile):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotUploaded):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
