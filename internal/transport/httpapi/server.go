package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"SpaceDealScanner/internal/config"
	"SpaceDealScanner/internal/domain"
	"SpaceDealScanner/internal/ports"
)

// ScrapeRunner is the submission and status side of the use case layer.
type ScrapeRunner interface {
	Start(ctx context.Context, req domain.ScrapeRequest) (string, bool, error)
	Stop() bool
	Status() domain.PipelineStatus
}

// Deps wires the handlers to the application.
type Deps struct {
	Runner     ScrapeRunner
	Repository ports.DealRepository
	Scoring    config.ScoringConfig
	Logger     *slog.Logger
}

// Server owns the gin engine and the listening http.Server.
type Server struct {
	router *gin.Engine
	srv    *http.Server
	logger *slog.Logger
}

// NewServer builds the router with middleware and routes.
func NewServer(cfg config.HTTPConfig, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(RequestID(), RequestLogger(logger), Recovery(logger), CORS(cfg.AllowedOrigins))

	h := &handlers{
		runner:  deps.Runner,
		repo:    deps.Repository,
		scoring: deps.Scoring,
	}
	h.register(router)

	return &Server{
		router: router,
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
