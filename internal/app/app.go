package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/markdave123-py/silverrag/internal/config"
	"github.com/markdave123-py/silverrag/internal/core"
	db "github.com/markdave123-py/silverrag/internal/core/database"
	"github.com/markdave123-py/silverrag/internal/core/dify"
	"github.com/markdave123-py/silverrag/internal/core/ingestion_engine"
	objectclient "github.com/markdave123-py/silverrag/internal/core/object-client"
	"github.com/markdave123-py/silverrag/internal/core/ocr"
	"github.com/markdave123-py/silverrag/internal/core/provider"
	"github.com/markdave123-py/silverrag/internal/observability/metrics"
	"github.com/markdave123-py/silverrag/internal/services"
)

type App struct {
	DBClient     core.DbClient
	ObjectClient core.ObjectClient
	Ingestor     ingestion_engine.Ingestor
	Metrics      *metrics.Metrics
	Server       *Server
}

// NewApp builds every client once and hands them to the components that need them.
func NewApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}

	objClient, err := objectclient.NewObjectClient(appCtx, cfg)
	if err != nil {
		_ = dbClient.Close()
		return nil, fmt.Errorf("couldn't initialize object storage: %w", err)
	}
	log.Info().Str("backend", cfg.StorageBackend).Str("bucket", cfg.BucketName).Msg("object client initialized and ready")

	m := metrics.New()
	newCaller := func(name string) *provider.Caller {
		return provider.NewCaller(provider.Options{
			Name:               name,
			Timeout:            cfg.ProviderTimeout,
			BreakerFailures:    cfg.BreakerFailures,
			BreakerOpenTimeout: cfg.BreakerOpenTimeout,
			Metrics:            m,
		})
	}

	var parser core.DocumentParser
	switch cfg.ParserBackend {
	case config.ParserDocconv:
		parser = ocr.NewDocconvParser(false)
	default:
		parser = ocr.NewUpstageClient(cfg.UpstageAPIURL, cfg.UpstageAPIKey, newCaller("upstage"))
	}
	dataset := dify.NewDatasetClient(cfg.DifyDatasetBaseURL(), cfg.DifyDatasetKey, newCaller("dify_dataset"))
	chat := dify.NewChatClient(cfg.DifyAPIURL, cfg.DifyAPIKey, newCaller("dify_chat"))

	ingestor := ingestion_engine.NewDocumentIngestor(dbClient, objClient, parser, dataset, m, ingestion_engine.IngestConfig{
		MaxPages:    cfg.SplitMaxPages,
		MaxBytes:    cfg.SplitMaxBytes,
		TempDir:     cfg.SplitTempDir,
		Concurrency: cfg.IngestPartConcurrency,
	})

	router := NewRouter(RouterDeps{
		Config:    cfg,
		Logger:    logger,
		Metrics:   m,
		UserStore: dbClient,
		Health:    dbClient,
		Ingestor:  ingestor,
		Documents: services.NewDocumentService(dbClient, objClient, dataset, cfg.SignedURLDuration),
		Users:     services.NewUserService(dbClient),
		Tokens:    services.NewTokenService(cfg.JwtSecret, cfg.JwtTTL),
		Chat:      services.NewChatService(chat, dbClient, cfg.ChatLogTimeout),
	})

	return &App{
		DBClient:     dbClient,
		ObjectClient: objClient,
		Ingestor:     ingestor,
		Metrics:      m,
		Server:       NewServer(cfg, router),
	}, nil
}

func (a *App) Close() {
	if c, ok := a.ObjectClient.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("closing object client")
		}
	}
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
