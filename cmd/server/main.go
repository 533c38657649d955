// Command server runs the Pillarbox player service.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stwalsh4118/pillarbox/internal/config"
	"github.com/stwalsh4118/pillarbox/internal/db"
	"github.com/stwalsh4118/pillarbox/internal/logger"
	"github.com/stwalsh4118/pillarbox/internal/server"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("info", false)
		logger.Log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Pretty)

	database, err := db.New(cfg.Database.Path, db.Options{
		ConnectionTimeout: cfg.Database.ConnectionTimeout,
		EnableWAL:         cfg.Database.EnableWAL,
	})
	if err != nil {
		logger.Log.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("Failed to open database")
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Log.Error().Err(err).Msg("Failed to close database")
		}
	}()

	sqlDB, err := database.GetSQLDB()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to get SQL DB")
	}
	if err := db.RunMigrations(sqlDB, cfg.Database.MigrationsPath); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	srv, err := server.New(cfg, database)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to create server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.ImportCatalog(ctx); err != nil {
		logger.Log.Fatal().Err(err).Str("path", cfg.Catalog.Path).Msg("Failed to import catalog")
	}

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		logger.Log.Info().Msg("Shutdown signal received")
	case err := <-errChan:
		if err != nil {
			logger.Log.Error().Err(err).Msg("Server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
