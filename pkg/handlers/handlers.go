// Package handlers holds the JSON request and response helpers shared by
// HTTP handlers.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// ErrInvalidBody wraps every failure to decode a request body.
var ErrInvalidBody = errors.New("invalid request body")

// DecodeJSON reads exactly one JSON value from the request body into v.
// An empty body, malformed JSON, or trailing data is an ErrInvalidBody.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty", ErrInvalidBody)
		}
		return fmt.Errorf("%w: %w", ErrInvalidBody, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: unexpected data after JSON value", ErrInvalidBody)
	}
	return nil
}

// RespondJSON writes data as JSON with status. The body is encoded
// before any header is sent, so an unencodable value becomes a 500.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		buf.Reset()
		buf.WriteString(`{"error":"response encoding failed"}` + "\n")
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// RespondError logs err and writes {"error": err.Error()} with status.
// 5xx is logged at error level and everything else at warn.
func RespondError(w http.ResponseWriter, logger *slog.Logger, status int, err error) {
	level := slog.LevelWarn
	msg := "request rejected"
	if status >= http.StatusInternalServerError {
		level, msg = slog.LevelError, "handler error"
	}
	logger.Log(context.Background(), level, msg, "status", status, "error", err)
	RespondJSON(w, status, map[string]string{"error": err.Error()})
}
