// Package server exposes the composer over HTTP: composition requests,
// streaming of finished videos and their metadata. Finished outputs are
// recorded in the run store and deleted once their TTL passes.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/ZacxDev/video-composer/internal/processor"
	"github.com/ZacxDev/video-composer/internal/store"
	"github.com/ZacxDev/video-composer/pkg/types"
)

// Composer runs one composition under a caller-chosen run ID.
type Composer interface {
	ComposeRun(ctx context.Context, runID string, req *types.Request) (*processor.Result, error)
}

// Acquirer rewrites remote clip sources to local files.
type Acquirer interface {
	Resolve(ctx context.Context, req *types.Request) error
}

type Config struct {
	Port          int
	OutputDir     string
	MaxConcurrent int64
	ArtifactTTL   time.Duration
	ReapInterval  time.Duration
	Composer      Composer
	Acquirer      Acquirer // optional
	Store         *store.Store
	Logger        zerolog.Logger
}

type Server struct {
	httpServer *http.Server
	reaper     *Reaper
	logger     zerolog.Logger
}

func NewServer(cfg Config) *Server {
	logger := cfg.Logger.With().Str("component", "server").Logger()
	cfg.Logger = logger

	return &Server{
		httpServer: &http.Server{
			Addr:        fmt.Sprintf(":%d", cfg.Port),
			Handler:     NewRouter(cfg),
			ReadTimeout: 15 * time.Second,
			IdleTimeout: 60 * time.Second,
		},
		reaper: NewReaper(cfg.Store, cfg.ReapInterval, logger),
		logger: logger,
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	go s.reaper.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.httpServer.Addr).Msg("starting HTTP server")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}

func newLimiter(n int64) *semaphore.Weighted {
	if n < 1 {
		n = 1
	}
	return semaphore.NewWeighted(n)
}
