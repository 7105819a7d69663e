package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/manwarsd/dreamboard/internal/backend"
	"github.com/manwarsd/dreamboard/internal/catalog"
	"github.com/manwarsd/dreamboard/internal/events"
	"github.com/manwarsd/dreamboard/internal/orchestrator"
	"github.com/manwarsd/dreamboard/internal/playback"
)

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port           int
	Stories        catalog.StoryService
	Repository     catalog.Repository
	Orchestrator   *orchestrator.Orchestrator
	Runner         *orchestrator.Runner
	Backend        backend.Client
	Health         *backend.CachedHealth
	Hub            *events.Hub
	Playback       *playback.Server
	AllowedOrigins []string
	StubBackend    bool
	Logger         *slog.Logger
	StartTime      time.Time
	AgentID        string
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler: router,
			// Synchronous batches and the event stream outlive any write
			// timeout.
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
