// Package proxyclient is the client side of the metadata proxy: typed
// wrappers over the proxy's JSON routes that hand back canonical records.
package proxyclient

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/sakif/movi/internal/apperror"
	"github.com/sakif/movi/internal/jsonval"
	"github.com/sakif/movi/internal/model"
	"github.com/sakif/movi/internal/normalize"
)

// Doer is the part of backend.Client the proxy client needs.
type Doer interface {
	Get(ctx context.Context, path string) (jsonval.Value, error)
}

// Client calls the metadata proxy.
type Client struct {
	api Doer
}

// New wraps a JSON client whose base URL points at the proxy.
func New(api Doer) *Client {
	return &Client{api: api}
}

// MovieResults is one page of movie search results.
type MovieResults struct {
	Query        string
	Page         int
	TotalPages   int
	TotalResults int
	Items        []model.LibraryEntry
}

// SearchMovies calls the simple search route.
func (c *Client) SearchMovies(ctx context.Context, query string, page int) (MovieResults, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return MovieResults{}, apperror.ValidationFailed("q", "search query must not be empty")
	}
	if page < 1 {
		page = 1
	}

	path := "/api/search/movie/simple?" + url.Values{
		"q":    {query},
		"page": {strconv.Itoa(page)},
	}.Encode()
	body, err := c.api.Get(ctx, path)
	if err != nil {
		return MovieResults{}, fmt.Errorf("proxyclient: searching movies: %w", err)
	}

	out := MovieResults{
		Query: query,
		Page:  page,
		Items: []model.LibraryEntry{},
	}
	if n, ok := body.Get("page").Int(); ok {
		out.Page = n
	}
	out.TotalPages, _ = body.Get("total_pages").Int()
	out.TotalResults, _ = body.Get("total_results").Int()

	seen := make(map[string]struct{})
	for _, it := range normalize.Items(body, "items") {
		e := normalize.MovieHit(it)
		if e.ID == "" {
			continue
		}
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		out.Items = append(out.Items, e)
	}
	return out, nil
}

// MovieDetail fetches one movie's detail (director, runtime, rating).
// Movie ids must be numeric.
func (c *Client) MovieDetail(ctx context.Context, id string) (model.LibraryEntry, error) {
	id = strings.TrimSpace(id)
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return model.LibraryEntry{}, apperror.ValidationFailed("id", fmt.Sprintf("movie id %q is not numeric", id))
	}
	body, err := c.api.Get(ctx, "/api/title/movie/"+id)
	if err != nil {
		return model.LibraryEntry{}, fmt.Errorf("proxyclient: movie %s: %w", id, err)
	}
	return normalize.Movie(body), nil
}

// SearchBooks calls the book search route; limit <= 0 leaves the proxy's
// default.
func (c *Client) SearchBooks(ctx context.Context, query string, limit int) ([]model.LibraryEntry, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperror.ValidationFailed("q", "search query must not be empty")
	}
	params := url.Values{"q": {query}}
	if limit > 0 {
		params.Set("n", strconv.Itoa(limit))
	}

	body, err := c.api.Get(ctx, "/api/search/book?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("proxyclient: searching books: %w", err)
	}

	out := []model.LibraryEntry{}
	seen := make(map[string]struct{})
	for _, it := range normalize.Items(body, "items") {
		e := normalize.BookHit(it)
		if e.ID == "" {
			continue
		}
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		out = append(out, e)
	}
	return out, nil
}
