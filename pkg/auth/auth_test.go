package auth_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/receipts/pkg/auth"
)

const secret = "0123456789abcdef0123456789abcdef"

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHMACVerifier(t *testing.T) {
	v := auth.NewHMACVerifier(secret, "receipts")

	token, err := auth.IssueToken(secret, "receipts", "user-1", time.Hour)
	require.NoError(t, err)

	id, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id.Subject)
}

func TestHMACVerifierRejects(t *testing.T) {
	v := auth.NewHMACVerifier(secret, "receipts")

	expired, err := auth.IssueToken(secret, "receipts", "user-1", -time.Minute)
	require.NoError(t, err)
	wrongKey, err := auth.IssueToken("ffffffffffffffffffffffffffffffff", "receipts", "user-1", time.Hour)
	require.NoError(t, err)
	wrongIssuer, err := auth.IssueToken(secret, "other", "user-1", time.Hour)
	require.NoError(t, err)
	noSubject, err := auth.IssueToken(secret, "receipts", "", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"expired", expired},
		{"wrong key", wrongKey},
		{"wrong issuer", wrongIssuer},
		{"no subject", noSubject},
		{"garbage", "not-a-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tt.token)
			assert.ErrorIs(t, err, auth.ErrUnauthenticated)
		})
	}
}

func TestMiddleware(t *testing.T) {
	v := auth.NewHMACVerifier(secret, "")
	token, err := auth.IssueToken(secret, "", "owner-7", time.Hour)
	require.NoError(t, err)

	var seen string
	h := auth.Middleware(v, "anonymous", discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = auth.Subject(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name    string
		header  string
		status  int
		subject string
	}{
		{"valid", "Bearer " + token, http.StatusNoContent, "owner-7"},
		{"lowercase scheme", "bearer " + token, http.StatusNoContent, "owner-7"},
		{"missing", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, ""},
		{"invalid token", "Bearer abc", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.subject, seen)
			if tt.status == http.StatusUnauthorized {
				var body map[string]string
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
				assert.Equal(t, "unauthenticated", body["error"])
			}
		})
	}
}

func TestMiddlewareAnonymous(t *testing.T) {
	var seen string
	h := auth.Middleware(nil, "local-dev", discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = auth.Subject(r.Context())
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "local-dev", seen)
}

func TestConfigFinalize(t *testing.T) {
	tests := []struct {
		name    string
		cfg     auth.Config
		wantErr bool
	}{
		{"defaults", auth.Config{}, false},
		{"hmac ok", auth.Config{Mode: auth.ModeHMAC, Secret: secret}, false},
		{"hmac short secret", auth.Config{Mode: auth.ModeHMAC, Secret: "short"}, true},
		{"oidc missing issuer", auth.Config{Mode: auth.ModeOIDC, ClientID: "c"}, true},
		{"oidc missing client", auth.Config{Mode: auth.ModeOIDC, Issuer: "https://issuer"}, true},
		{"unknown", auth.Config{Mode: "saml"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Finalize(nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestConfigEnv(t *testing.T) {
	t.Setenv("TEST_AUTH_MODE", "hmac")
	t.Setenv("TEST_AUTH_SECRET", secret)

	cfg := auth.Config{}
	err := cfg.Finalize(&auth.Env{Mode: "TEST_AUTH_MODE", Secret: "TEST_AUTH_SECRET"})
	require.NoError(t, err)
	assert.Equal(t, auth.ModeHMAC, cfg.Mode)
	assert.Equal(t, "anonymous", cfg.Anonymous)

	v, err := cfg.NewVerifier(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, v)
}
