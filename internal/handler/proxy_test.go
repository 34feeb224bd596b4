package handler_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/movi/internal/handler"
	"github.com/sakif/movi/internal/jsonval"
	"github.com/sakif/movi/internal/openlibrary"
	"github.com/sakif/movi/internal/tmdb"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeMovies records the last search and answers from fixed payloads.
type fakeMovies struct {
	key       bool
	search    jsonval.Value
	movie     jsonval.Value
	err       error
	lastQuery string
	lastPage  int
}

func (f *fakeMovies) HasKey() bool { return f.key }

func (f *fakeMovies) SearchMovies(_ context.Context, query string, page int) (jsonval.Value, error) {
	f.lastQuery, f.lastPage = query, page
	return f.search, f.err
}

func (f *fakeMovies) Movie(_ context.Context, id string) (jsonval.Value, error) {
	if f.err != nil {
		return jsonval.Value{}, f.err
	}
	return f.movie, nil
}

type fakeBooks struct {
	res       openlibrary.SearchResult
	err       error
	lastLimit int
}

func (f *fakeBooks) SearchBooks(_ context.Context, title string, limit int) (openlibrary.SearchResult, error) {
	f.lastLimit = limit
	f.res.Query = title
	return f.res, f.err
}

const searchPayload = `{
	"page": 1, "total_pages": 3, "total_results": 42,
	"results": [
		{"id": 603, "title": "The Matrix", "release_date": "1999-03-30", "overview": "Neo.", "poster_path": "/m.jpg"},
		{"id": 604, "original_title": "Matrix Reloaded", "release_date": ""}
	]
}`

func newProxyRouter(movies *fakeMovies, books *fakeBooks, savePath string) http.Handler {
	h := handler.NewProxyHandler(movies, books, savePath, testLogger())
	r := chi.NewRouter()
	r.Get("/healthz", h.HandleHealth)
	r.Get("/getmovies", h.HandleGetMovies)
	r.Get("/api/search/movie", h.HandleSearchRaw)
	r.Get("/api/search/movie/simple", h.HandleSearchSimple)
	r.Get("/api/title/movie/{id}", h.HandleTitle)
	r.Get("/api/search/book", h.HandleSearchBooks)
	return r
}

func get(t *testing.T, h http.Handler, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	var body map[string]any
	if rr.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	}
	return rr, body
}

// =========================================================================
// PROXY TESTS
// =========================================================================

func TestProxy_Health(t *testing.T) {
	r := newProxyRouter(&fakeMovies{key: true}, &fakeBooks{}, "")

	rr, body := get(t, r, "/healthz")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, map[string]any{"v3": true}, body["auth"])
	assert.NotEmpty(t, body["routes"])
}

func TestProxy_SearchSimple(t *testing.T) {
	movies := &fakeMovies{key: true, search: jsonval.MustParse(searchPayload)}
	r := newProxyRouter(movies, &fakeBooks{}, "")

	rr, body := get(t, r, "/api/search/movie/simple?q=%20matrix%20&page=2")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "matrix", movies.lastQuery)
	assert.Equal(t, 2, movies.lastPage)
	assert.Equal(t, "matrix", body["query"])
	assert.EqualValues(t, 3, body["total_pages"])
	assert.EqualValues(t, 42, body["total_results"])

	items := body["items"].([]any)
	require.Len(t, items, 2)
	first := items[0].(map[string]any)
	assert.EqualValues(t, 603, first["id"])
	assert.Equal(t, "1999", first["year"])
	assert.Equal(t, "https://image.tmdb.org/t/p/w342/m.jpg", first["posterUrl"])

	second := items[1].(map[string]any)
	assert.Equal(t, "Matrix Reloaded", second["title"])
	assert.Nil(t, second["posterUrl"])
	assert.Nil(t, second["release_date"])
}

func TestProxy_GetMoviesAlias(t *testing.T) {
	movies := &fakeMovies{key: true, search: jsonval.MustParse(searchPayload)}
	r := newProxyRouter(movies, &fakeBooks{}, "")

	rr, body := get(t, r, "/getmovies?name=matrix")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "matrix", body["query"])

	rr, body = get(t, r, "/getmovies?q=matrix")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "missing name", body["error"])
}

func TestProxy_PrettyAndSave(t *testing.T) {
	movies := &fakeMovies{key: true, search: jsonval.MustParse(searchPayload)}
	path := filepath.Join(t.TempDir(), "last_search.json")
	r := newProxyRouter(movies, &fakeBooks{}, path)

	rr, _ := get(t, r, "/api/search/movie/simple?q=matrix&pretty=1&save=1")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "\n  \"query\": \"matrix\"")

	saved, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(saved), `"total_results": 42`)
}

func TestProxy_SaveFailureDoesNotFailRequest(t *testing.T) {
	movies := &fakeMovies{key: true, search: jsonval.MustParse(searchPayload)}
	path := filepath.Join(t.TempDir(), "missing-dir", "last_search.json")
	r := newProxyRouter(movies, &fakeBooks{}, path)

	rr, _ := get(t, r, "/api/search/movie/simple?q=matrix&save=1")
	assert.Equal(t, http.StatusOK, rr.Code)
	_, err := os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestProxy_MissingQuery(t *testing.T) {
	r := newProxyRouter(&fakeMovies{key: true}, &fakeBooks{}, "")

	for _, target := range []string{"/api/search/movie", "/api/search/movie/simple?q=%20", "/api/search/book"} {
		rr, body := get(t, r, target)
		assert.Equal(t, http.StatusBadRequest, rr.Code, target)
		assert.Equal(t, "missing q", body["error"], target)
	}
}

func TestProxy_MissingKey(t *testing.T) {
	r := newProxyRouter(&fakeMovies{key: false}, &fakeBooks{}, "")

	for _, target := range []string{"/api/search/movie?q=x", "/getmovies?name=x", "/api/title/movie/603"} {
		rr, body := get(t, r, target)
		assert.Equal(t, http.StatusInternalServerError, rr.Code, target)
		assert.Equal(t, "server", body["error"], target)
		assert.Equal(t, "TMDB_V3_KEY not set", body["detail"], target)
	}
}

func TestProxy_UpstreamError(t *testing.T) {
	movies := &fakeMovies{key: true, err: &tmdb.UpstreamError{
		Status: http.StatusNotFound,
		Body:   jsonval.MustParse(`{"status_message":"The resource you requested could not be found."}`),
	}}
	r := newProxyRouter(movies, &fakeBooks{}, "")

	rr, body := get(t, r, "/api/title/movie/999999")

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Equal(t, "upstream", body["error"])
	assert.EqualValues(t, 404, body["status"])
	detail := body["detail"].(map[string]any)
	assert.True(t, strings.HasPrefix(detail["status_message"].(string), "The resource"))
}

func TestProxy_RawSearchPassesThrough(t *testing.T) {
	movies := &fakeMovies{key: true, search: jsonval.MustParse(searchPayload)}
	r := newProxyRouter(movies, &fakeBooks{}, "")

	rr, body := get(t, r, "/api/search/movie?q=matrix")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, body["results"], 2)
	assert.Equal(t, 1, movies.lastPage)
}

func TestProxy_SearchBooks(t *testing.T) {
	books := &fakeBooks{res: openlibrary.SearchResult{
		Count: 1,
		Items: []openlibrary.BookHit{{ID: "/works/OL1W", Title: "Dune", Authors: []string{"Frank Herbert"}}},
	}}
	r := newProxyRouter(&fakeMovies{}, books, "")

	rr, body := get(t, r, "/api/search/book?q=dune&n=5")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 5, books.lastLimit)
	assert.Equal(t, "dune", body["query"])
	assert.EqualValues(t, 1, body["count"])

	books.err = &openlibrary.UpstreamError{Status: http.StatusServiceUnavailable}
	rr, body = get(t, r, "/api/search/book?q=dune")
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Equal(t, openlibrary.DefaultLimit, books.lastLimit)
	assert.Equal(t, map[string]any{}, body["detail"])
}
