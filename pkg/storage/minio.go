package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/JaimeStill/receipts/pkg/lifecycle"
)

type s3 struct {
	client *minio.Client
	bucket string
	expiry time.Duration
	logger *slog.Logger
}

func newMinio(cfg *Config, logger *slog.Logger) (*s3, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &s3{
		client: client,
		bucket: cfg.Container,
		expiry: cfg.URLExpiryDuration(),
		logger: logger,
	}, nil
}

func (m *s3) Start(lc *lifecycle.Coordinator) error {
	m.logger.Info("starting storage system")

	lc.OnStartup(func() {
		ctx := lc.Context()
		exists, err := m.client.BucketExists(ctx, m.bucket)
		if err != nil {
			m.logger.Error("storage bucket check failed", "error", err)
			return
		}
		if !exists {
			if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
				m.logger.Error("storage bucket initialization failed", "error", err)
				return
			}
		}
		m.logger.Info("storage bucket ready", "bucket", m.bucket)
	})

	return nil
}

func (m *s3) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	_, err := m.client.PutObject(ctx, m.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("upload object %s: %w", key, err)
	}

	return nil
}

// Delete reports ErrNotFound for missing keys; RemoveObject alone
// succeeds silently on them.
func (m *s3) Delete(ctx context.Context, key string) error {
	exists, err := m.Exists(ctx, key)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}

	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}

	return nil
}

func (m *s3) Exists(ctx context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	if _, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("check object existence %s: %w", key, err)
	}

	return true, nil
}

func (m *s3) DownloadURL(ctx context.Context, key string) (*SignedURL, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	expires := time.Now().UTC().Add(m.expiry)
	u, err := m.client.PresignedGetObject(ctx, m.bucket, key, m.expiry, nil)
	if err != nil {
		return nil, fmt.Errorf("presign get %s: %w", key, err)
	}

	return &SignedURL{URL: u.String(), Method: http.MethodGet, ExpiresAt: expires}, nil
}

func (m *s3) UploadURL(ctx context.Context, key string) (*SignedURL, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	expires := time.Now().UTC().Add(m.expiry)
	u, err := m.client.PresignedPutObject(ctx, m.bucket, key, m.expiry)
	if err != nil {
		return nil, fmt.Errorf("presign put %s: %w", key, err)
	}

	return &SignedURL{URL: u.String(), Method: http.MethodPut, ExpiresAt: expires}, nil
}
