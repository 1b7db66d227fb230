package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"github.com/JaimeStill/receipts/pkg/lifecycle"
)

type google struct {
	client *gcs.Client
	bucket *gcs.BucketHandle
	expiry time.Duration
	logger *slog.Logger
}

func newGCS(ctx context.Context, cfg *Config, logger *slog.Logger) (*google, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &google{
		client: client,
		bucket: client.Bucket(cfg.Container),
		expiry: cfg.URLExpiryDuration(),
		logger: logger,
	}, nil
}

func (g *google) Start(lc *lifecycle.Coordinator) error {
	g.logger.Info("starting storage system")

	lc.OnStartup(func() {
		attrs, err := g.bucket.Attrs(lc.Context())
		if err != nil {
			g.logger.Error("storage bucket unavailable", "error", err)
			return
		}
		g.logger.Info("storage bucket ready", "bucket", attrs.Name)
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		if err := g.client.Close(); err != nil {
			g.logger.Error("storage client close failed", "error", err)
		}
	})

	return nil
}

// Upload writes only when the object does not already exist.
func (g *google) Upload(ctx context.Context, key string, reader io.Reader, _ int64, contentType string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	w := g.bucket.Object(key).If(gcs.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, reader); err != nil {
		_ = w.Close()
		return g.uploadError(key, err)
	}
	if err := w.Close(); err != nil {
		return g.uploadError(key, err)
	}

	return nil
}

func (g *google) uploadError(key string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
		return ErrExists
	}
	return fmt.Errorf("upload object %s: %w", key, err)
}

func (g *google) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	if err := g.bucket.Object(key).Delete(ctx); err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("delete object %s: %w", key, err)
	}

	return nil
}

func (g *google) Exists(ctx context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	if _, err := g.bucket.Object(key).Attrs(ctx); err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("check object existence %s: %w", key, err)
	}

	return true, nil
}

func (g *google) DownloadURL(_ context.Context, key string) (*SignedURL, error) {
	return g.sign(key, http.MethodGet, "")
}

func (g *google) UploadURL(_ context.Context, key string) (*SignedURL, error) {
	return g.sign(key, http.MethodPut, "application/pdf")
}

func (g *google) sign(key, method, contentType string) (*SignedURL, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	expires := time.Now().UTC().Add(g.expiry)
	url, err := g.bucket.SignedURL(key, &gcs.SignedURLOptions{
		Scheme:      gcs.SigningSchemeV4,
		Method:      method,
		Expires:     expires,
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("sign object url %s: %w", key, err)
	}

	return &SignedURL{URL: url, Method: method, ExpiresAt: expires}, nil
}
