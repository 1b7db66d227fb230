package auth

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

type oidcVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier verifies ID tokens against the issuer's published key set.
// When jwksURL is empty the key set is resolved through provider discovery.
func NewOIDCVerifier(ctx context.Context, issuer, clientID, jwksURL string) (Verifier, error) {
	cfg := &oidc.Config{ClientID: clientID}

	if jwksURL != "" {
		keys := oidc.NewRemoteKeySet(ctx, jwksURL)
		return &oidcVerifier{verifier: oidc.NewVerifier(issuer, keys, cfg)}, nil
	}

	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("discover oidc provider: %w", err)
	}
	return &oidcVerifier{verifier: provider.Verifier(cfg)}, nil
}

func (v *oidcVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	idToken, err := v.verifier.Verify(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	var claims struct {
		Email string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	return &Identity{Subject: idToken.Subject, Email: claims.Email}, nil
}
