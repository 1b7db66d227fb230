package storage_test

import (
	"strings"
	"testing"
	"time"

	"github.com/JaimeStill/receipts/pkg/storage"
)

func TestFinalizeDefaults(t *testing.T) {
	cfg := storage.Config{ConnectionString: "test-connection"}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if cfg.Provider != storage.ProviderAzure {
		t.Errorf("provider: got %s, want azure", cfg.Provider)
	}
	if cfg.Container != "receipts" {
		t.Errorf("container: got %s, want receipts", cfg.Container)
	}
	if cfg.URLExpiryDuration() != 15*time.Minute {
		t.Errorf("url_expiry: got %s, want 15m", cfg.URLExpiryDuration())
	}
}

func TestFinalizeEnvOverrides(t *testing.T) {
	t.Setenv("TEST_PROVIDER", "minio")
	t.Setenv("TEST_CONTAINER", "uploads")
	t.Setenv("TEST_ENDPOINT", "localhost:9000")
	t.Setenv("TEST_ACCESS", "minioadmin")
	t.Setenv("TEST_SECRET", "minioadmin")
	t.Setenv("TEST_SSL", "true")

	env := &storage.Env{
		Provider:  "TEST_PROVIDER",
		Container: "TEST_CONTAINER",
		Endpoint:  "TEST_ENDPOINT",
		AccessKey: "TEST_ACCESS",
		SecretKey: "TEST_SECRET",
		UseSSL:    "TEST_SSL",
	}

	cfg := storage.Config{}
	if err := cfg.Finalize(env); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if cfg.Provider != storage.ProviderMinio {
		t.Errorf("provider: got %s, want minio", cfg.Provider)
	}
	if cfg.Container != "uploads" {
		t.Errorf("container: got %s, want uploads", cfg.Container)
	}
	if !cfg.UseSSL {
		t.Error("use_ssl: got false, want true")
	}
}

func TestFinalizeValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     storage.Config
		wantErr string
	}{
		{
			name:    "azure missing connection_string",
			cfg:     storage.Config{Provider: storage.ProviderAzure},
			wantErr: "connection_string required",
		},
		{
			name:    "minio missing endpoint",
			cfg:     storage.Config{Provider: storage.ProviderMinio, AccessKey: "a", SecretKey: "s"},
			wantErr: "endpoint required",
		},
		{
			name:    "minio missing credentials",
			cfg:     storage.Config{Provider: storage.ProviderMinio, Endpoint: "localhost:9000"},
			wantErr: "access_key and secret_key required",
		},
		{
			name:    "invalid expiry",
			cfg:     storage.Config{Provider: storage.ProviderGCS, URLExpiry: "soon"},
			wantErr: "invalid url_expiry",
		},
		{
			name:    "unknown provider",
			cfg:     storage.Config{Provider: "ftp"},
			wantErr: "unknown provider",
		},
		{
			name: "gcs needs no credentials",
			cfg:  storage.Config{Provider: storage.ProviderGCS},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Finalize(nil)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	base := storage.Config{
		Container:        "receipts",
		ConnectionString: "base-conn",
	}

	overlay := storage.Config{ConnectionString: "overlay-conn", UseSSL: true}
	base.Merge(&overlay)

	if base.Container != "receipts" {
		t.Errorf("container should remain receipts, got %s", base.Container)
	}
	if base.ConnectionString != "overlay-conn" {
		t.Errorf("connection_string: got %s, want overlay-conn", base.ConnectionString)
	}
	if !base.UseSSL {
		t.Error("use_ssl should be set by overlay")
	}
}
