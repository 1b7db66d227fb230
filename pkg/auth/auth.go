// Package auth verifies bearer tokens and carries the caller identity
// through request contexts.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JaimeStill/receipts/pkg/handlers"
)

// ErrUnauthenticated indicates a missing, malformed, or rejected bearer token.
var ErrUnauthenticated = errors.New("unauthenticated")

// Identity is the verified caller. Subject is the stable owner key used
// to scope receipts.
type Identity struct {
	Subject string `json:"subject"`
	Email   string `json:"email,omitempty"`
}

// Verifier turns a raw bearer token into an Identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored by Middleware, if any.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok && id != nil
}

// Subject returns the caller subject or an empty string.
func Subject(ctx context.Context) string {
	if id, ok := FromContext(ctx); ok {
		return id.Subject
	}
	return ""
}

// Middleware rejects requests without a valid bearer token and stores the
// verified identity in the request context. A nil verifier disables
// authentication and assigns the anonymous identity.
func Middleware(v Verifier, anonymous string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				ctx := WithIdentity(r.Context(), &Identity{Subject: anonymous})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			token, ok := bearer(r.Header.Get("Authorization"))
			if !ok {
				handlers.RespondError(w, logger, http.StatusUnauthorized, ErrUnauthenticated)
				return
			}

			id, err := v.Verify(r.Context(), token)
			if err != nil {
				logger.Debug("token rejected", "error", err)
				handlers.RespondError(w, logger, http.StatusUnauthorized, ErrUnauthenticated)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func bearer(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
