package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/silverrag")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DIFY_DATASET_API_KEY", "dataset-key")
	t.Setenv("DIFY_DATASET_ID", "ds-1")
	t.Setenv("DIFY_API_KEY", "chat-key")
	t.Setenv("AWS_ACCESS_KEY", "ak")
	t.Setenv("AWS_SECRET_KEY", "sk")
	t.Setenv("UPSTAGE_API_KEY", "up")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequired(t)

	cfg := LoadConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.SplitMaxPages != 3 {
		t.Fatalf("expected split max pages 3, got %d", cfg.SplitMaxPages)
	}
	if cfg.SplitMaxBytes != 50*1024*1024 {
		t.Fatalf("expected split max bytes 50MiB, got %d", cfg.SplitMaxBytes)
	}
	if cfg.IngestPartConcurrency != 1 {
		t.Fatalf("expected sequential ingestion by default, got %d", cfg.IngestPartConcurrency)
	}
	if cfg.JwtTTL != 7*24*time.Hour {
		t.Fatalf("expected 7 day token ttl, got %s", cfg.JwtTTL)
	}
	if cfg.StorageBackend != StorageS3 || cfg.ParserBackend != ParserUpstage {
		t.Fatalf("unexpected backends: %s %s", cfg.StorageBackend, cfg.ParserBackend)
	}
	if got := cfg.DifyDatasetBaseURL(); got != "https://api.dify.ai/v1/datasets/ds-1" {
		t.Fatalf("unexpected dataset url: %s", got)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("SPLIT_MAX_PAGES", "10")
	t.Setenv("PROVIDER_TIMEOUT", "45s")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("STORAGE_BACKEND", "GCS")
	t.Setenv("GOOGLE_CLOUD_CREDENTIALS", "/tmp/creds.json")

	cfg := LoadConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.SplitMaxPages != 10 {
		t.Fatalf("expected 10, got %d", cfg.SplitMaxPages)
	}
	if cfg.ProviderTimeout != 45*time.Second {
		t.Fatalf("expected 45s, got %s", cfg.ProviderTimeout)
	}
	if len(cfg.CorsOrigins) != 2 || cfg.CorsOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins: %#v", cfg.CorsOrigins)
	}
	if cfg.StorageBackend != StorageGCS {
		t.Fatalf("expected gcs backend, got %s", cfg.StorageBackend)
	}
}

func TestLoadConfigInvalidNumberFallsBack(t *testing.T) {
	setRequired(t)
	t.Setenv("SPLIT_MAX_BYTES", "lots")
	t.Setenv("JWT_TTL", "forever")

	cfg := LoadConfig()
	if cfg.SplitMaxBytes != 50*1024*1024 {
		t.Fatalf("expected fallback, got %d", cfg.SplitMaxBytes)
	}
	if cfg.JwtTTL != 7*24*time.Hour {
		t.Fatalf("expected fallback ttl, got %s", cfg.JwtTTL)
	}
}

func TestValidateReportsAllMissingKeys(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DIFY_DATASET_API_KEY", "")
	t.Setenv("DIFY_DATASET_ID", "")
	t.Setenv("DIFY_API_KEY", "")
	t.Setenv("AWS_ACCESS_KEY", "")
	t.Setenv("AWS_SECRET_KEY", "")
	t.Setenv("UPSTAGE_API_KEY", "")
	t.Setenv("OCR_PROVIDER", "tesseract")

	err := LoadConfig().Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, key := range []string{"DATABASE_URL", "JWT_SECRET", "DIFY_API_KEY", "AWS_ACCESS_KEY", "OCR_PROVIDER"} {
		if !strings.Contains(err.Error(), key) {
			t.Fatalf("expected %s in error, got %v", key, err)
		}
	}
}
