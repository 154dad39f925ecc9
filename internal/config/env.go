package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	StorageS3  = "s3"
	StorageGCS = "gcs"

	ParserUpstage = "upstage"
	ParserDocconv = "docconv"
)

type Config struct {
	Port           string
	LogLevel       string
	LogPretty      bool
	RequestTimeout time.Duration
	CorsOrigins    []string

	DatabaseURL string
	SslCertPath string

	JwtSecret string
	JwtTTL    time.Duration

	StorageBackend    string
	AwsAccessKey      string
	AwsSecretKey      string
	AwsRegion         string
	S3Endpoint        string
	BucketName        string
	GCSCredentials    string
	GCSProjectID      string
	SignedURLDuration time.Duration

	ParserBackend  string
	UpstageAPIKey  string
	UpstageAPIURL  string
	DifyDatasetKey string
	DifyDatasetID  string
	DifyDatasetURL string
	DifyAPIURL     string
	DifyAPIKey     string

	ProviderTimeout       time.Duration
	BreakerFailures       uint32
	BreakerOpenTimeout    time.Duration
	SplitMaxPages         int
	SplitMaxBytes         int64
	SplitTempDir          string
	IngestPartConcurrency int
	UploadMaxBytes        int64
	AccessLogEnabled      bool
	ChatLogTimeout        time.Duration
}

// LoadConfig loads the environment variables and return config
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogPretty:      getEnvBool("LOG_PRETTY", false),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 10*time.Minute),
		CorsOrigins:    getEnvList("CORS_ORIGINS", []string{"http://localhost:3000", "http://127.0.0.1:3000"}),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		SslCertPath: getEnv("SSL_CERT_PATH", ""),

		JwtSecret: getEnv("JWT_SECRET", ""),
		JwtTTL:    getEnvDuration("JWT_TTL", 7*24*time.Hour),

		StorageBackend:    strings.ToLower(getEnv("STORAGE_BACKEND", StorageS3)),
		AwsAccessKey:      getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey:      getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:         getEnv("AWS_REGION", "us-east-2"),
		S3Endpoint:        getEnv("S3_ENDPOINT", ""),
		BucketName:        getEnv("BUCKET_NAME", "silverrag-docs"),
		GCSCredentials:    getEnv("GOOGLE_CLOUD_CREDENTIALS", ""),
		GCSProjectID:      getEnv("GCS_PROJECT_ID", ""),
		SignedURLDuration: getEnvDuration("SIGNED_URL_TTL", 15*time.Minute),

		ParserBackend:  strings.ToLower(getEnv("OCR_PROVIDER", ParserUpstage)),
		UpstageAPIKey:  getEnv("UPSTAGE_API_KEY", ""),
		UpstageAPIURL:  getEnv("UPSTAGE_API_URL", "https://api.upstage.ai/v1/document-ai/document-parse"),
		DifyDatasetKey: getEnv("DIFY_DATASET_API_KEY", ""),
		DifyDatasetID:  getEnv("DIFY_DATASET_ID", ""),
		DifyDatasetURL: getEnv("DIFY_DATASET_API_URL", "https://api.dify.ai/v1/datasets/{dataset_id}"),
		DifyAPIURL:     getEnv("DIFY_API_URL", "https://api.dify.ai/v1"),
		DifyAPIKey:     getEnv("DIFY_API_KEY", ""),

		ProviderTimeout:       getEnvDuration("PROVIDER_TIMEOUT", 5*time.Minute),
		BreakerFailures:       uint32(getEnvInt("BREAKER_FAILURES", 5)),
		BreakerOpenTimeout:    getEnvDuration("BREAKER_OPEN_TIMEOUT", 30*time.Second),
		SplitMaxPages:         getEnvInt("SPLIT_MAX_PAGES", 3),
		SplitMaxBytes:         getEnvInt64("SPLIT_MAX_BYTES", 50*1024*1024),
		SplitTempDir:          getEnv("SPLIT_TEMP_DIR", ""),
		IngestPartConcurrency: getEnvInt("INGEST_PART_CONCURRENCY", 1),
		UploadMaxBytes:        getEnvInt64("UPLOAD_MAX_BYTES", 512*1024*1024),
		AccessLogEnabled:      getEnvBool("ACCESS_LOG_ENABLED", false),
		ChatLogTimeout:        getEnvDuration("CHAT_LOG_TIMEOUT", 10*time.Second),
	}

	return cfg
}

// DifyDatasetBaseURL expands the dataset URL template with the configured dataset id.
func (c *Config) DifyDatasetBaseURL() string {
	return strings.TrimRight(strings.ReplaceAll(c.DifyDatasetURL, "{dataset_id}", c.DifyDatasetID), "/")
}

// Validate reports every missing or inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error
	require := func(key, value string) {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, fmt.Errorf("%s not set", key))
		}
	}

	require("DATABASE_URL", c.DatabaseURL)
	require("JWT_SECRET", c.JwtSecret)
	require("DIFY_DATASET_API_KEY", c.DifyDatasetKey)
	require("DIFY_DATASET_ID", c.DifyDatasetID)
	require("DIFY_API_KEY", c.DifyAPIKey)
	require("BUCKET_NAME", c.BucketName)

	switch c.StorageBackend {
	case StorageS3:
		require("AWS_ACCESS_KEY", c.AwsAccessKey)
		require("AWS_SECRET_KEY", c.AwsSecretKey)
		require("AWS_REGION", c.AwsRegion)
	case StorageGCS:
		require("GOOGLE_CLOUD_CREDENTIALS", c.GCSCredentials)
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", StorageS3, StorageGCS, c.StorageBackend))
	}

	switch c.ParserBackend {
	case ParserUpstage:
		require("UPSTAGE_API_KEY", c.UpstageAPIKey)
	case ParserDocconv:
	default:
		errs = append(errs, fmt.Errorf("OCR_PROVIDER must be %q or %q, got %q", ParserUpstage, ParserDocconv, c.ParserBackend))
	}

	if c.SplitMaxPages < 1 {
		errs = append(errs, errors.New("SPLIT_MAX_PAGES must be positive"))
	}
	if c.SplitMaxBytes < 1 {
		errs = append(errs, errors.New("SPLIT_MAX_BYTES must be positive"))
	}
	if c.IngestPartConcurrency < 1 {
		errs = append(errs, errors.New("INGEST_PART_CONCURRENCY must be positive"))
	}
	if c.JwtTTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL must be positive"))
	}

	return errors.Join(errs...)
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Int("default", def).Msg("config value is not an int, using default")
		return def
	}
	return n
}

func getEnvInt64(key string, def int64) int64 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Int64("default", def).Msg("config value is not an int, using default")
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Bool("default", def).Msg("config value is not a bool, using default")
		return def
	}
	return b
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Dur("default", def).Msg("config value is not a duration, using default")
		return def
	}
	return d
}

func getEnvList(key string, def []string) []string {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
