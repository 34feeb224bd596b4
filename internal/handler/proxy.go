package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/goccy/go-json"

	"github.com/sakif/movi/internal/jsonval"
	"github.com/sakif/movi/internal/openlibrary"
	"github.com/sakif/movi/internal/tmdb"
)

// MovieSource is the slice of the TMDB client the proxy serves from.
type MovieSource interface {
	HasKey() bool
	SearchMovies(ctx context.Context, query string, page int) (jsonval.Value, error)
	Movie(ctx context.Context, id string) (jsonval.Value, error)
}

// BookSource is the slice of the OpenLibrary client the proxy serves from.
type BookSource interface {
	SearchBooks(ctx context.Context, title string, limit int) (openlibrary.SearchResult, error)
}

var (
	_ MovieSource = (*tmdb.Client)(nil)
	_ BookSource  = (*openlibrary.Client)(nil)
)

// proxyRoutes is advertised by /healthz.
var proxyRoutes = []string{
	"/getmovies?name=...",
	"/api/search/movie",
	"/api/search/movie/simple",
	"/api/title/movie/<id>",
	"/api/search/book",
}

// ProxyHandler serves the metadata proxy. Its error bodies follow the
// proxy's historical shape rather than apperror codes:
//
//	{"error": "missing q"}
//	{"error": "server", "detail": "TMDB_V3_KEY not set"}
//	{"error": "upstream", "status": 404, "detail": {...upstream body...}}
type ProxyHandler struct {
	movies   MovieSource
	books    BookSource
	savePath string
	logger   *slog.Logger
}

// NewProxyHandler creates a ProxyHandler. savePath is where save=1 writes
// the last simple search.
func NewProxyHandler(movies MovieSource, books BookSource, savePath string, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{movies: movies, books: books, savePath: savePath, logger: logger}
}

// HandleHealth reports whether a TMDB key is configured.
//
// HTTP: GET /healthz → {ok, auth:{v3}, routes}
func (h *ProxyHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"auth":   map[string]bool{"v3": h.movies.HasKey()},
		"routes": proxyRoutes,
	})
}

// HandleSearchRaw passes a TMDB search payload through untouched.
//
// HTTP: GET /api/search/movie?q=...&page=N
func (h *ProxyHandler) HandleSearchRaw(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing q"})
		return
	}
	if !h.requireKey(w) {
		return
	}
	raw, err := h.movies.SearchMovies(r.Context(), q, queryInt(r, "page", 1))
	if err != nil {
		h.upstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, raw)
}

// HandleSearchSimple answers with the trimmed search shape.
//
// HTTP: GET /api/search/movie/simple?q=...&page=N&pretty=1&save=1
func (h *ProxyHandler) HandleSearchSimple(w http.ResponseWriter, r *http.Request) {
	h.simpleSearch(w, r, "q")
}

// HandleGetMovies is the older spelling of HandleSearchSimple, keyed on
// name instead of q.
//
// HTTP: GET /getmovies?name=...&page=N&pretty=1&save=1
func (h *ProxyHandler) HandleGetMovies(w http.ResponseWriter, r *http.Request) {
	h.simpleSearch(w, r, "name")
}

func (h *ProxyHandler) simpleSearch(w http.ResponseWriter, r *http.Request, param string) {
	q := strings.TrimSpace(r.URL.Query().Get(param))
	if q == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing " + param})
		return
	}
	if !h.requireKey(w) {
		return
	}
	raw, err := h.movies.SearchMovies(r.Context(), q, queryInt(r, "page", 1))
	if err != nil {
		h.upstreamError(w, err)
		return
	}

	payload := tmdb.Simplify(raw, q)
	if queryFlag(r, "save") {
		h.save(payload)
	}
	if queryFlag(r, "pretty") {
		writeIndentedJSON(w, http.StatusOK, payload)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

// save writes the last search to disk. A failed write is logged and does
// not affect the response.
func (h *ProxyHandler) save(payload tmdb.SimpleSearch) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err == nil {
		err = os.WriteFile(h.savePath, data, 0o644)
	}
	if err != nil {
		h.logger.Warn("could not write last search",
			slog.String("path", h.savePath),
			slog.String("error", err.Error()),
		)
	}
}

// HandleTitle passes a TMDB movie detail payload through, with credits,
// watch providers and videos appended.
//
// HTTP: GET /api/title/movie/{id}
func (h *ProxyHandler) HandleTitle(w http.ResponseWriter, r *http.Request) {
	if !h.requireKey(w) {
		return
	}
	raw, err := h.movies.Movie(r.Context(), pathParam(r, "id"))
	if err != nil {
		h.upstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, raw)
}

// HandleSearchBooks searches OpenLibrary by title.
//
// HTTP: GET /api/search/book?q=...&n=N → {query, count, items}
func (h *ProxyHandler) HandleSearchBooks(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing q"})
		return
	}
	res, err := h.books.SearchBooks(r.Context(), q, queryInt(r, "n", openlibrary.DefaultLimit))
	if err != nil {
		h.upstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *ProxyHandler) requireKey(w http.ResponseWriter) bool {
	if h.movies.HasKey() {
		return true
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error":  "server",
		"detail": tmdb.ErrNoAPIKey.Error(),
	})
	return false
}

// upstreamError reports a failed upstream call. Non-2xx answers become
// 502 with the upstream body; anything else is a 500 with the error text.
func (h *ProxyHandler) upstreamError(w http.ResponseWriter, err error) {
	status, body := 0, jsonval.Value{}
	var te *tmdb.UpstreamError
	var oe *openlibrary.UpstreamError
	switch {
	case errors.As(err, &te):
		status, body = te.Status, te.Body
	case errors.As(err, &oe):
		status, body = oe.Status, oe.Body
	default:
		h.logger.Error("proxy request failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":  "server",
			"detail": err.Error(),
		})
		return
	}

	var detail any = map[string]any{}
	if !body.IsNull() {
		detail = body
	}
	writeJSON(w, http.StatusBadGateway, map[string]any{
		"error":  "upstream",
		"status": status,
		"detail": detail,
	})
}
