// Package service wires configuration, load history, object storage and
// the viewer server into one runnable service.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/size-analysis/internal/repository"
	"github.com/size-analysis/internal/storage"
	"github.com/size-analysis/internal/webui"
	"github.com/size-analysis/internal/worker"
	"github.com/size-analysis/pkg/config"
	"github.com/size-analysis/pkg/utils"
)

// ShutdownTimeout bounds graceful shutdown of the HTTP server.
const ShutdownTimeout = 10 * time.Second

// Service is the main application service.
type Service struct {
	config  *config.Config
	logger  utils.Logger
	db      *repository.Repositories
	storage storage.Storage
	server  *webui.Server

	running atomic.Bool
}

// New creates a new Service instance.
func New(cfg *config.Config, logger utils.Logger) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = utils.NewDefaultLogger(utils.LevelInfo, nil)
	}
	return &Service{config: cfg, logger: logger}, nil
}

// Initialize opens the database and storage and builds the server.
func (s *Service) Initialize(ctx context.Context) error {
	s.logger.Info("Initializing service components...")

	if err := s.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := s.initStorage(); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	s.initServer()

	s.logger.Info("Service components initialized successfully")
	return nil
}

func (s *Service) initDatabase() error {
	if !s.config.Database.Enabled {
		s.logger.Info("Load history disabled")
		return nil
	}
	s.logger.Info("Connecting to database (%s)...", s.config.Database.Type)

	repos, err := repository.Open(&s.config.Database)
	if err != nil {
		return err
	}
	s.db = repos
	s.logger.Info("Database connection established")
	return nil
}

func (s *Service) initStorage() error {
	s.logger.Info("Initializing storage (%s)...", s.config.Storage.Type)

	store, err := storage.NewStorage(&s.config.Storage)
	if err != nil {
		return err
	}
	s.storage = store
	s.logger.Info("Storage initialized")
	return nil
}

func (s *Service) initServer() {
	srv := s.config.Server
	build := s.config.Build

	opts := webui.Options{
		Addr:         srv.Addr,
		ReadTimeout:  srv.ReadTimeout(),
		WriteTimeout: srv.WriteTimeout(),
		RatePerSec:   srv.WSRatePerSec,
		Worker: worker.Config{
			ProgressInterval: build.ProgressInterval(),
			ChunkSize:        build.ChunkSize,
			DecoderCacheSize: build.DecoderCacheSize,
			DefaultOptions:   build.DefaultOptions,
			DenyFiles:        true,
			Store:            s.storage,
			HTTPClient:       &http.Client{},
		},
		Health: s.HealthCheck,
		Logger: s.logger,
	}
	if s.db != nil {
		opts.Loads = s.db.Loads
		opts.Worker.Recorder = s.db.Loads
	}
	s.server = webui.NewServer(opts)
}

// Run serves until ctx is cancelled, then shuts the server down.
func (s *Service) Run(ctx context.Context) error {
	if s.server == nil {
		return errors.New("service is not initialized")
	}
	s.running.Store(true)
	defer s.running.Store(false)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(s.server.Start)
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Stop releases the database connection.
func (s *Service) Stop() error {
	s.logger.Info("Stopping service...")
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection: %v", err)
			return err
		}
	}
	s.logger.Info("Service stopped")
	return nil
}

// IsRunning returns whether the service is serving.
func (s *Service) IsRunning() bool {
	return s.running.Load()
}

// Stats returns service statistics.
func (s *Service) Stats() ServiceStats {
	return ServiceStats{
		Running:     s.IsRunning(),
		Addr:        s.config.Server.Addr,
		Storage:     s.config.Storage.Type,
		LoadHistory: s.db != nil,
	}
}

// HealthCheck performs a health check on the service.
func (s *Service) HealthCheck(ctx context.Context) error {
	if s.db != nil {
		if err := s.db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database health check failed: %w", err)
		}
	}
	return nil
}

// Handler exposes the server's routes, mainly for tests.
func (s *Service) Handler() http.Handler {
	return s.server.Handler()
}

// ServiceStats holds service statistics.
type ServiceStats struct {
	Running     bool   `json:"running"`
	Addr        string `json:"addr"`
	Storage     string `json:"storage"`
	LoadHistory bool   `json:"load_history"`
}
