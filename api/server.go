// Package api exposes the indexing and retrieval engine over HTTP.
//
// Endpoints:
//
//	GET    /health                  liveness probe
//	GET    /ready                   readiness probe (pings the database)
//	POST   /api/documents           index or re-index a document
//	DELETE /api/documents/{id}      remove a document
//	POST   /api/search              similarity search
//	POST   /api/generate            retrieval-augmented answer
//	POST   /api/generate/stream     streaming answer (Server-Sent Events)
//	GET    /api/stats               corpus statistics
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pensieve-ai/pensieve/internal/log"
	"github.com/pensieve-ai/pensieve/internal/rag"
)

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:8080"

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout guards against Slowloris-style clients.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum time for reading an entire request.
	ReadTimeout = 30 * time.Second

	// IdleTimeout bounds keep-alive connections between requests.
	IdleTimeout = 120 * time.Second
)

// Server is the HTTP server for the REST API.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger
}

// NewServer creates a server with all routes registered. pool is used by
// the readiness probe only; all business operations go through the engine.
func NewServer(engine *rag.Engine, pool *pgxpool.Pool, logger log.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{mux: mux, logger: logger}

	NewHealthHandler(pool, logger).RegisterRoutes(mux)
	NewDocumentHandler(engine, logger).RegisterRoutes(mux)
	NewSearchHandler(engine, logger).RegisterRoutes(mux)
	NewGenerateHandler(engine, logger).RegisterRoutes(mux)

	return s
}

// Handler returns the mux wrapped in the middleware chain:
// recovery → request ID → logging → routes.
func (s *Server) Handler() http.Handler {
	return chain(s.mux, recoveryMiddleware(s.logger), requestIDMiddleware, loggingMiddleware(s.logger))
}

// Run starts the server and blocks until ctx is cancelled, then shuts
// down gracefully.
//
// WriteTimeout is deliberately unset: the SSE endpoint holds the response
// open for the duration of a generation.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
