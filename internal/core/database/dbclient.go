package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"

	"github.com/markdave123-py/silverrag/internal/config"
	"github.com/markdave123-py/silverrag/internal/core"
)

var _ core.DbClient = (*DatabaseClient)(nil)

// DatabaseClient is the PostgreSQL implementation of core.DbClient.
type DatabaseClient struct {
	db *sql.DB
}

// NewDatabaseClient opens the pool, verifies connectivity and applies the schema.
func NewDatabaseClient(ctx context.Context, cfg *config.Config) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	dsn, err := withSSL(cfg.DatabaseURL, cfg.SslCertPath)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	log.Info().Msg("database initialized and ready")
	return &DatabaseClient{db: db}, nil
}

// withSSL appends verify-ca parameters when a root certificate is configured.
func withSSL(databaseURL, certPath string) (string, error) {
	if certPath == "" {
		return databaseURL, nil
	}
	if _, err := os.Stat(certPath); err != nil {
		return "", fmt.Errorf("ssl cert not accessible at %q: %w", certPath, err)
	}
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid DATABASE_URL: %w", err)
	}
	q := u.Query()
	q.Set("sslmode", "verify-ca")
	q.Set("sslrootcert", certPath)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *DatabaseClient) Ping(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return core.E(core.KindDatabase, "db.ping", err)
	}
	return nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
