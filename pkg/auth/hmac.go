package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the token body issued and accepted by the HMAC verifier.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type hmacVerifier struct {
	secret []byte
	issuer string
}

// NewHMACVerifier verifies HS256 tokens signed with secret. An empty
// issuer skips the issuer check.
func NewHMACVerifier(secret, issuer string) Verifier {
	return &hmacVerifier{secret: []byte(secret), issuer: issuer}
}

func (v *hmacVerifier) Verify(_ context.Context, token string) (*Identity, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrUnauthenticated
	}

	return &Identity{Subject: claims.Subject, Email: claims.Email}, nil
}

// IssueToken signs an HS256 token for subject. Used by local tooling and tests.
func IssueToken(secret, issuer, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
