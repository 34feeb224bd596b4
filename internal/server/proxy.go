package server

import (
	"log/slog"

	"github.com/sakif/movi/internal/config"
	"github.com/sakif/movi/internal/handler"
	"github.com/sakif/movi/internal/openlibrary"
	"github.com/sakif/movi/internal/tmdb"
)

// NewProxy builds the metadata proxy.
//
// ROUTES:
//
//	GET /healthz
//	GET /metrics
//	GET /getmovies?name=...
//	GET /api/search/movie?q=...
//	GET /api/search/movie/simple?q=...
//	GET /api/title/movie/{id}
//	GET /api/search/book?q=...
func NewProxy(cfg *config.Config, logger *slog.Logger) *Server {
	s := newServer("proxy", cfg.Proxy.Port, cfg.Proxy.CORSOrigins, logger)

	movies := tmdb.New(cfg.TMDB.BaseURL, cfg.TMDB.APIKey, cfg.TMDB.Timeout, s.metrics, logger)
	books := openlibrary.New(cfg.OpenLibrary.BaseURL, cfg.OpenLibrary.Timeout, s.metrics, logger)
	if !movies.HasKey() {
		logger.Warn("TMDB_V3_KEY not set; movie routes will answer 500")
	}

	h := handler.NewProxyHandler(movies, books, cfg.Proxy.SavePath, logger)

	r := s.router
	r.Get("/healthz", h.HandleHealth)
	r.Get("/getmovies", h.HandleGetMovies)
	r.Get("/api/search/movie", h.HandleSearchRaw)
	r.Get("/api/search/movie/simple", h.HandleSearchSimple)
	r.Get("/api/title/movie/{id}", h.HandleTitle)
	r.Get("/api/search/book", h.HandleSearchBooks)

	return s
}
