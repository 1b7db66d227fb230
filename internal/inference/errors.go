package inference

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies why an extraction attempt failed.
type Kind string

const (
	KindTimeout     Kind = "timeout"
	KindUnavailable Kind = "unavailable"
	KindMalformed   Kind = "malformed"
	KindEmpty       Kind = "empty"
	KindRefused     Kind = "refused"
)

// ErrUnknownProvider is returned by New for an unrecognized provider name.
var ErrUnknownProvider = errors.New("unknown inference provider")

// ExtractionError is the only error type returned by Gateway.Extract.
// Message is human readable and safe to surface to the receipt owner.
type ExtractionError struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("extraction %s: %s", e.Kind, e.Message)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Transient reports whether a later attempt at the same document may succeed.
func (e *ExtractionError) Transient() bool {
	return e.Kind == KindTimeout || e.Kind == KindUnavailable
}

// IsTransient reports whether err carries a transient ExtractionError.
func IsTransient(err error) bool {
	var ee *ExtractionError
	return errors.As(err, &ee) && ee.Transient()
}

// StatusError is returned by a Model when the provider answered with a
// non-success HTTP status.
type StatusError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// ErrRefused is returned by a Model when the provider declined to answer.
var ErrRefused = errors.New("model refused the request")

func classify(err error) *ExtractionError {
	var ee *ExtractionError
	if errors.As(err, &ee) {
		return ee
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &ExtractionError{Kind: KindTimeout, Message: "inference provider timed out", Err: err}
	}

	if errors.Is(err, ErrRefused) {
		return &ExtractionError{Kind: KindRefused, Message: "inference provider refused the document", Err: err}
	}

	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == http.StatusTooManyRequests,
			se.StatusCode == http.StatusRequestTimeout,
			se.StatusCode >= 500:
			return &ExtractionError{Kind: KindUnavailable, Message: "inference provider unavailable", Err: err}
		default:
			return &ExtractionError{Kind: KindMalformed, Message: "inference provider rejected the document", Err: err}
		}
	}

	return &ExtractionError{Kind: KindUnavailable, Message: "inference request failed", Err: err}
}
