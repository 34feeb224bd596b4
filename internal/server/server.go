// Package server wires handlers, middleware and routes for the two HTTP
// programs: the metadata proxy (NewProxy) and the core backend
// (NewBackend).
//
// This is the composition root: each builder creates the clients,
// repositories and services its routes need and nothing else lives above
// it except main.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/movi/internal/metrics"
	"github.com/sakif/movi/internal/middleware"
)

// shutdownTimeout is how long in-flight requests get after SIGINT/SIGTERM.
const shutdownTimeout = 30 * time.Second

// Server is one HTTP program with the resources it owns.
type Server struct {
	name    string
	port    int
	router  *chi.Mux
	metrics *metrics.Metrics
	logger  *slog.Logger
	closers []io.Closer
}

// newServer builds a router with the middleware both programs share.
//
// MIDDLEWARE ORDER:
//  1. RequestID: every log line can be tied to one request
//  2. RealIP: X-Forwarded-For for the logger
//  3. Logger and Metrics: wrap everything below, including panics
//  4. Recoverer: a panicking handler becomes a 500
//  5. CORS: the web client calls both servers from another origin
func newServer(name string, port int, origins []string, logger *slog.Logger) *Server {
	m := metrics.New(name)
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics(m))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Method(http.MethodGet, "/metrics", m.Handler())

	return &Server{
		name:    name,
		port:    port,
		router:  r,
		metrics: m,
		logger:  logger,
	}
}

// Handler exposes the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Metrics returns the server's collectors.
func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}

// Close releases owned resources (the backend's database).
func (s *Server) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests
// and closes owned resources.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second, // catalog fan-out can take a while
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.String("server", s.name),
			slog.Int("port", s.port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.port)),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %s: %w", s.name, err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("server: %s: graceful shutdown failed: %w", s.name, err)
		}
		s.logger.Info("server stopped gracefully", slog.String("server", s.name))
	}
	return nil
}
