// Package storage provides blob storage operations over Azure Blob Storage,
// Google Cloud Storage, and S3-compatible (MinIO) backends.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/JaimeStill/receipts/pkg/lifecycle"
)

// System manages blob storage operations and lifecycle coordination.
type System interface {
	// Start registers a startup hook that initializes the storage container.
	Start(lc *lifecycle.Coordinator) error
	// Upload streams data to a blob at the given key with the specified content type.
	// size may be -1 when unknown. Returns ErrExists if the backend refuses to overwrite.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	// Delete removes the blob at the given key. Returns ErrNotFound if the blob does not exist.
	Delete(ctx context.Context, key string) error
	// Exists reports whether a blob exists at the given key.
	Exists(ctx context.Context, key string) (bool, error)
	// DownloadURL issues a time-limited URL that reads the blob at key.
	DownloadURL(ctx context.Context, key string) (*SignedURL, error)
	// UploadURL issues a time-limited URL that writes a blob at key.
	UploadURL(ctx context.Context, key string) (*SignedURL, error)
}

// SignedURL is a time-limited direct blob URL.
type SignedURL struct {
	URL       string    `json:"url"`
	Method    string    `json:"method"`
	ExpiresAt time.Time `json:"expires_at"`
}

// New creates a storage system for the configured provider.
// Clients are created here but no remote call is made until Start.
func New(ctx context.Context, cfg *Config, logger *slog.Logger) (System, error) {
	logger = logger.With("system", "storage", "provider", cfg.Provider)

	switch cfg.Provider {
	case ProviderAzure:
		return newAzure(cfg, logger)
	case ProviderGCS:
		return newGCS(ctx, cfg, logger)
	case ProviderMinio:
		return newMinio(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}

func validateKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}
