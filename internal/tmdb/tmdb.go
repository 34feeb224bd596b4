// Package tmdb is a minimal client for The Movie Database v3 API.
//
// It only does what the proxy and the backend catalog need: movie search
// and movie detail. There are no retries and no caching; every call is one
// upstream request, and its outcome is recorded in the metrics.
package tmdb

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

	"github.com/sakif/movi/internal/jsonval"
	"github.com/sakif/movi/internal/metrics"
)

// Upstream is the metrics label for this API.
const Upstream = "tmdb"

// DefaultBaseURL is the public v3 endpoint.
const DefaultBaseURL = "https://api.themoviedb.org/3"

// DetailAppend is appended to title-detail requests.
const DetailAppend = "credits,watch/providers,videos"

// ErrNoAPIKey is returned before any request when no key is configured.
var ErrNoAPIKey = errors.New("TMDB_V3_KEY not set")

// UpstreamError is a non-2xx TMDB response. Body is the parsed body (Null
// when it was not JSON).
type UpstreamError struct {
	Status int
	Body   jsonval.Value
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("tmdb: upstream responded with HTTP %d", e.Status)
}

// Client talks to TMDB.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Client. An empty baseURL selects DefaultBaseURL; timeout
// <= 0 selects 15s. m may be nil.
func New(baseURL, apiKey string, timeout time.Duration, m *metrics.Metrics, logger *slog.Logger) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(apiKey),
		http:    &http.Client{Timeout: timeout},
		metrics: m,
		logger:  logger,
	}
}

// HasKey reports whether an API key is configured.
func (c *Client) HasKey() bool {
	return c.apiKey != ""
}

// SearchMovies runs /search/movie and returns the raw TMDB payload.
func (c *Client) SearchMovies(ctx context.Context, query string, page int) (jsonval.Value, error) {
	if page < 1 {
		page = 1
	}
	return c.get(ctx, "/search/movie", url.Values{
		"query":         {query},
		"include_adult": {"false"},
		"language":      {"en-US"},
		"page":          {strconv.Itoa(page)},
	})
}

// Movie returns the raw detail payload for one movie, with credits, watch
// providers and videos appended.
func (c *Client) Movie(ctx context.Context, id string) (jsonval.Value, error) {
	return c.get(ctx, "/movie/"+url.PathEscape(id), url.Values{
		"language":           {"en-US"},
		"append_to_response": {DetailAppend},
	})
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (jsonval.Value, error) {
	if !c.HasKey() {
		return jsonval.Value{}, ErrNoAPIKey
	}
	params.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return jsonval.Value{}, fmt.Errorf("tmdb: building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveUpstream(Upstream, 0, time.Since(start))
		// The URL carries the API key; never surface it.
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return jsonval.Value{}, fmt.Errorf("tmdb: GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	c.metrics.ObserveUpstream(Upstream, resp.StatusCode, time.Since(start))

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return jsonval.Value{}, fmt.Errorf("tmdb: reading %s: %w", path, err)
	}
	body, parseErr := jsonval.Parse(raw)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("tmdb upstream error",
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
		)
		return jsonval.Value{}, &UpstreamError{Status: resp.StatusCode, Body: body}
	}
	if parseErr != nil {
		return jsonval.Value{}, fmt.Errorf("tmdb: decoding %s: %w", path, parseErr)
	}
	return body, nil
}
