package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/markdave123-py/silverrag/internal/app"
	"github.com/markdave123-py/silverrag/internal/config"
	"github.com/markdave123-py/silverrag/internal/observability/logging"
)

func main() {
	// Handle SIGINT/SIGTERM for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()
	logger := logging.New(cfg.LogLevel, cfg.LogPretty)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	application, err := app.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer application.Close()

	errCh := make(chan error, 1)
	go func() {
		errCh <- application.Server.Start()
	}()

	log.Info().Msg("silverrag is running; DB connected and bootstrapped")
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := application.Server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("shutting down...")
}
