// Package server provides the HTTP server setup and routing configuration.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/pillarbox/internal/analytics/commandersact"
	"github.com/stwalsh4118/pillarbox/internal/analytics/comscore"
	"github.com/stwalsh4118/pillarbox/internal/api"
	"github.com/stwalsh4118/pillarbox/internal/asset"
	"github.com/stwalsh4118/pillarbox/internal/config"
	"github.com/stwalsh4118/pillarbox/internal/db"
	"github.com/stwalsh4118/pillarbox/internal/logger"
	"github.com/stwalsh4118/pillarbox/internal/metrics"
	"github.com/stwalsh4118/pillarbox/internal/middleware"
	"github.com/stwalsh4118/pillarbox/internal/monitoring"
	"github.com/stwalsh4118/pillarbox/internal/playback"
)

const (
	breakerFailureThreshold = 5
	breakerResetTimeout     = 30 * time.Second
)

// Server represents the HTTP server
type Server struct {
	config  *config.Config
	db      *db.DB
	repos   *db.Repositories
	metrics *metrics.Metrics
	loader  *asset.BreakerLoader
	watcher *asset.CatalogWatcher
	store   *monitoring.StoreHandler
	hub     *monitoring.Hub
	manager *playback.Manager
	router  *gin.Engine
	server  *http.Server

	reportedDropped atomic.Int64
}

// New creates a new server instance and wires the player manager to the
// catalog and the monitoring pipeline
func New(cfg *config.Config, database *db.DB) (*Server, error) {
	repos := db.NewRepositories(database)
	m := metrics.New()

	loader := asset.NewBreakerLoader(
		asset.NewProbingLoader(asset.NewStoreLoader(repos.Catalog)),
		breakerFailureThreshold,
		breakerResetTimeout,
		nil,
	)

	s := &Server{
		config:  cfg,
		db:      database,
		repos:   repos,
		metrics: m,
		loader:  loader,
	}

	if cfg.Catalog.Watch && cfg.Catalog.Path != "" {
		s.watcher = asset.NewCatalogWatcher(cfg.Catalog.Path, repos.Catalog, cfg.Catalog.PollInterval)
	}

	var handler monitoring.Handler
	if cfg.Monitoring.Enabled {
		s.store = monitoring.NewStoreHandler(repos.MonitoringEvents, cfg.Monitoring.QueueSize)
		s.hub = monitoring.NewHub()
		handler = monitoring.NewMetricsHandler(
			monitoring.MultiHandler{monitoring.LogHandler{}, s.store, s.hub},
			m.MonitoringMessages(),
		)
	}

	manager, err := playback.NewManager(playbackConfig(cfg), playback.Dependencies{
		Loader:        loader,
		Monitoring:    handler,
		CommandersAct: commandersact.NewLogSink(),
		ComScore:      comscore.NewLogAnalytics(cfg.Analytics.ComScore.PublisherID),
		ActiveTracker: comscore.NewActiveTracker(comscore.NewLogAnalytics(cfg.Analytics.ComScore.PublisherID)),
		Metrics:       m,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create player manager: %w", err)
	}
	s.manager = manager

	return s, nil
}

// playbackConfig maps the application configuration onto the player manager
func playbackConfig(cfg *config.Config) playback.Config {
	return playback.Config{
		TimeRangePollInterval: cfg.Playback.TimeRangePollInterval,
		AssetLoadTimeout:      cfg.Playback.AssetLoadTimeout,
		IdleGracePeriod:       cfg.Playback.IdleGracePeriod,
		CleanupInterval:       cfg.Playback.CleanupInterval,
		Monitoring: monitoring.Config{
			HeartbeatPeriod: cfg.Monitoring.HeartbeatPeriod,
			SeekThreshold:   cfg.Monitoring.SeekThreshold,
		},
		CommandersAct: commandersact.Config{
			HeartbeatDelay: cfg.Analytics.CommandersAct.HeartbeatDelay,
			PosPeriod:      cfg.Analytics.CommandersAct.PosPeriod,
			UptimePeriod:   cfg.Analytics.CommandersAct.UptimePeriod,
		},
		ComScore: comscore.Config{
			DvrRefreshPeriod: cfg.Analytics.ComScore.DvrRefreshPeriod,
		},
	}
}

// ImportCatalog loads the configured YAML catalog into the database.
// It does nothing when no catalog path is configured.
func (s *Server) ImportCatalog(ctx context.Context) error {
	path := s.config.Catalog.Path
	if path == "" {
		return nil
	}

	catalog, err := asset.LoadCatalogFile(path)
	if err != nil {
		return err
	}

	if _, err := asset.ImportCatalog(ctx, catalog, s.repos.Catalog); err != nil {
		return fmt.Errorf("failed to import catalog %s: %w", path, err)
	}
	return nil
}

// Handler returns the router, building it on first use
func (s *Server) Handler() http.Handler {
	if s.router == nil {
		s.setupRouter()
	}
	return s.router
}

// setupRouter initializes the Gin router with middleware and routes
func (s *Server) setupRouter() {
	// Set Gin mode based on log level
	if s.config.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create new Gin router
	s.router = gin.New()

	// Add middleware stack
	s.router.Use(middleware.RequestLogger(s.metrics)) // Custom zerolog request logger
	s.router.Use(gin.Recovery())                      // Panic recovery
	s.router.Use(cors.Default())                      // CORS support (allows all origins)

	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler(s.updateGauges)))

	// Create API route group
	apiGroup := s.router.Group("/api")

	// Register service routes
	api.SetupHealthRoutes(apiGroup, s.db, s.manager)
	api.SetupMediaRoutes(apiGroup, s.repos.Catalog)
	api.SetupPlayerRoutes(apiGroup, s.manager)
	// A nil *Hub must not reach the interface
	if s.hub != nil {
		api.SetupMonitoringRoutes(apiGroup, s.repos.MonitoringEvents, s.hub)
	} else {
		api.SetupMonitoringRoutes(apiGroup, s.repos.MonitoringEvents, nil)
	}
}

// updateGauges refreshes gauge values before a scrape
func (s *Server) updateGauges() {
	s.metrics.SetActivePlayers(s.manager.Count())
	if s.store != nil {
		dropped := s.store.Dropped()
		s.metrics.AddMonitoringDropped(dropped - s.reportedDropped.Swap(dropped))
	}
}

// StartBackground starts the monitoring store and the player manager
// without listening for HTTP requests
func (s *Server) StartBackground() error {
	if s.store != nil {
		if err := s.store.Start(); err != nil {
			return fmt.Errorf("failed to start monitoring store: %w", err)
		}
	}

	if s.watcher != nil {
		if err := s.watcher.Start(); err != nil {
			return fmt.Errorf("failed to start catalog watcher: %w", err)
		}
	}

	// Start player manager
	if err := s.manager.Start(); err != nil {
		return fmt.Errorf("failed to start player manager: %w", err)
	}
	return nil
}

// Start starts the HTTP server
func (s *Server) Start() error {
	if s.router == nil {
		s.setupRouter()
	}

	if err := s.StartBackground(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	s.server = &http.Server{
		Addr:           addr,
		Handler:        s.router,
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	logger.Log.Info().
		Str("host", s.config.Server.Host).
		Int("port", s.config.Server.Port).
		Bool("monitoring", s.config.Monitoring.Enabled).
		Msg("Starting HTTP server")

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Log.Info().Msg("Shutting down server gracefully")

	// Check if server was started before attempting shutdown
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
	}

	// Releasing players flushes their final monitoring messages
	s.manager.Stop()

	if s.watcher != nil {
		s.watcher.Stop()
	}
	if s.store != nil {
		s.store.Stop()
	}
	if s.hub != nil {
		s.hub.Close()
	}

	logger.Log.Info().Msg("Server stopped")
	return nil
}
