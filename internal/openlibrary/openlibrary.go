// Package openlibrary is a minimal client for the OpenLibrary JSON API:
// title search, works lookup and author names.
package openlibrary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/movi/internal/jsonval"
	"github.com/sakif/movi/internal/metrics"
	"github.com/sakif/movi/internal/normalize"
)

// Upstream is the metrics label for this API.
const Upstream = "openlibrary"

// DefaultBaseURL is the public endpoint.
const DefaultBaseURL = "https://openlibrary.org"

// DefaultLimit is the number of search results when none is requested.
const DefaultLimit = 20

// maxAuthorLookups bounds concurrent author requests for one work.
const maxAuthorLookups = 4

// UpstreamError is a non-2xx OpenLibrary response.
type UpstreamError struct {
	Status int
	Body   jsonval.Value
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("openlibrary: upstream responded with HTTP %d", e.Status)
}

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.Status == http.StatusNotFound
}

// Client talks to OpenLibrary.
type Client struct {
	baseURL string
	http    *http.Client
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Client. An empty baseURL selects DefaultBaseURL; timeout
// <= 0 selects 15s. m may be nil.
func New(baseURL string, timeout time.Duration, m *metrics.Metrics, logger *slog.Logger) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		metrics: m,
		logger:  logger,
	}
}

// BookHit is one trimmed search result.
type BookHit struct {
	ID       string   `json:"id"` // works key, e.g. "/works/OL45804W"
	Title    string   `json:"title"`
	Authors  []string `json:"authors"`
	CoverURL *string  `json:"coverUrl"`
}

// SearchResult is the trimmed search payload.
type SearchResult struct {
	Query string    `json:"query"`
	Count int       `json:"count"`
	Items []BookHit `json:"items"`
}

// SearchBooks searches by title and returns at most limit hits.
func (c *Client) SearchBooks(ctx context.Context, title string, limit int) (SearchResult, error) {
	if limit < 1 {
		limit = DefaultLimit
	}
	q := strings.Join(strings.Fields(strings.ToLower(title)), " ")

	raw, err := c.get(ctx, "/search.json", url.Values{
		"title": {q},
		"limit": {strconv.Itoa(limit)},
	})
	if err != nil {
		return SearchResult{}, err
	}

	out := SearchResult{Query: title, Items: []BookHit{}}
	for i, doc := range raw.Get("docs").Array() {
		if i >= limit {
			break
		}
		out.Items = append(out.Items, shapeHit(doc))
	}
	out.Count = len(out.Items)
	return out, nil
}

func shapeHit(doc jsonval.Value) BookHit {
	h := BookHit{
		ID:       doc.Get("key").TrimmedText(),
		Title:    doc.Get("title").Text(),
		Authors:  []string{},
		CoverURL: normalize.CoverURL(doc.Get("cover_i").Text()),
	}
	for _, a := range doc.Get("author_name").Array() {
		if s := a.TrimmedText(); s != "" {
			h.Authors = append(h.Authors, s)
		}
	}
	return h
}

// Work returns the raw works JSON for id ("OL45804W" or "/works/OL45804W").
func (c *Client) Work(ctx context.Context, id string) (jsonval.Value, error) {
	id = strings.TrimPrefix(strings.TrimSpace(id), "/works/")
	return c.get(ctx, "/works/"+url.PathEscape(id)+".json", nil)
}

// AuthorName returns the display name for an author key ("/authors/OL1A").
func (c *Client) AuthorName(ctx context.Context, key string) (string, error) {
	key = strings.TrimSpace(key)
	if !strings.HasPrefix(key, "/authors/") {
		return "", fmt.Errorf("openlibrary: unexpected author key %q", key)
	}
	v, err := c.get(ctx, key+".json", nil)
	if err != nil {
		return "", err
	}
	return v.Get("name").TrimmedText(), nil
}

// WorkWithAuthors returns the works JSON with an "author_name" list added,
// resolved from the work's author keys. Author lookups are best-effort:
// failures are logged and the name is skipped, never turning a work lookup
// into an error.
func (c *Client) WorkWithAuthors(ctx context.Context, id string) (jsonval.Value, error) {
	work, err := c.Work(ctx, id)
	if err != nil {
		return jsonval.Value{}, err
	}

	var keys []string
	for _, a := range work.Get("authors").Array() {
		if k := a.Path("author", "key").TrimmedText(); k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return work, nil
	}

	names := make([]string, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxAuthorLookups)
	for i, k := range keys {
		g.Go(func() error {
			name, err := c.AuthorName(gctx, k)
			if err != nil {
				c.logger.Warn("author lookup failed", slog.String("key", k), slog.String("error", err.Error()))
				return nil
			}
			names[i] = name
			return nil
		})
	}
	_ = g.Wait()

	var resolved []any
	for _, n := range names {
		if n != "" {
			resolved = append(resolved, n)
		}
	}
	if len(resolved) == 0 {
		return work, nil
	}

	obj, ok := work.Interface().(map[string]any)
	if !ok {
		return work, nil
	}
	obj["author_name"] = resolved
	return jsonval.FromAny(obj), nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (jsonval.Value, error) {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return jsonval.Value{}, fmt.Errorf("openlibrary: building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveUpstream(Upstream, 0, time.Since(start))
		return jsonval.Value{}, fmt.Errorf("openlibrary: GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	c.metrics.ObserveUpstream(Upstream, resp.StatusCode, time.Since(start))

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return jsonval.Value{}, fmt.Errorf("openlibrary: reading %s: %w", path, err)
	}
	body, parseErr := jsonval.Parse(raw)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return jsonval.Value{}, &UpstreamError{Status: resp.StatusCode, Body: body}
	}
	if parseErr != nil {
		return jsonval.Value{}, fmt.Errorf("openlibrary: decoding %s: %w", path, parseErr)
	}
	return body, nil
}
