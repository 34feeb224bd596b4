// Package backend is the JSON-over-HTTP client the controllers use to talk
// to the core backend (and, with a different base URL, to the metadata
// proxy).
//
// RESPONSE CONTRACT:
//   - 2xx: the body is parsed into a jsonval.Value (empty body → Null).
//   - non-2xx: an *HTTPError is returned. Its Message is the first of the
//     body's "detail", "error" or "message" fields, else "HTTP <status>".
//   - transport failure: the net/http error is returned wrapped with the
//     method and path, so errors.Is/As still see the original.
//
// Requests carry "Authorization: Bearer <token>" whenever the token source
// returns a non-empty token.
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/sakif/movi/internal/apperror"
	"github.com/sakif/movi/internal/jsonval"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "http://127.0.0.1:5000"

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 << 10

// HTTPError is a non-2xx response.
type HTTPError struct {
	Method string
	Path   string
	Status int
	// Message is the server's detail/error/message field, or "HTTP <status>".
	Message string
	// Body is the parsed response body (Null when it was not JSON).
	Body jsonval.Value
}

func (e *HTTPError) Error() string {
	return e.Message
}

// Unwrap maps well-known statuses onto the apperror sentinels so callers
// can write errors.Is(err, apperror.ErrNotFound) without caring whether
// the failure came from the network.
func (e *HTTPError) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return apperror.ErrValidation
	case http.StatusUnauthorized:
		return apperror.ErrUnauthorized
	case http.StatusForbidden:
		return apperror.ErrForbidden
	case http.StatusNotFound:
		return apperror.ErrNotFound
	case http.StatusConflict:
		return apperror.ErrConflict
	case http.StatusBadGateway:
		return apperror.ErrUpstream
	}
	return nil
}

// StatusOf returns the HTTP status carried by err, or 0 when err is not an
// *HTTPError.
func StatusOf(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Status
	}
	return 0
}

// Getter is the read half of Client. Collections depend on this rather than
// the concrete client so tests can feed them canned payloads.
type Getter interface {
	Get(ctx context.Context, path string) (jsonval.Value, error)
}

// Client sends JSON requests to one base URL.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger

	mu    sync.RWMutex
	token func() string
}

// compile-time check
var _ Getter = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client (10s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for request debug lines.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTokenSource sets the bearer token source.
func WithTokenSource(fn func() string) Option {
	return func(c *Client) { c.token = fn }
}

// New creates a Client. An empty baseURL selects DefaultBaseURL.
func New(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetTokenSource installs the bearer token source after construction. The
// session client needs a backend client to log in, and the backend client
// needs the session's token afterwards, so one side has to be wired late.
func (c *Client) SetTokenSource(fn func() string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = fn
}

func (c *Client) bearer() string {
	c.mu.RLock()
	fn := c.token
	c.mu.RUnlock()
	if fn == nil {
		return ""
	}
	return fn()
}

// Get issues a GET.
func (c *Client) Get(ctx context.Context, path string) (jsonval.Value, error) {
	return c.Do(ctx, http.MethodGet, path, nil)
}

// Post issues a POST with body encoded as JSON. A nil body sends no payload.
func (c *Client) Post(ctx context.Context, path string, body any) (jsonval.Value, error) {
	return c.Do(ctx, http.MethodPost, path, body)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string) (jsonval.Value, error) {
	return c.Do(ctx, http.MethodDelete, path, nil)
}

// Do sends one request and applies the response contract described in the
// package comment.
func (c *Client) Do(ctx context.Context, method, path string, body any) (jsonval.Value, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return jsonval.Value{}, fmt.Errorf("backend: encoding %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return jsonval.Value{}, fmt.Errorf("backend: building %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.bearer(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return jsonval.Value{}, fmt.Errorf("backend: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("backend request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		parsed, _ := jsonval.Parse(raw)
		return jsonval.Value{}, &HTTPError{
			Method:  method,
			Path:    path,
			Status:  resp.StatusCode,
			Message: errorMessage(parsed, resp.StatusCode),
			Body:    parsed,
		}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return jsonval.Value{}, fmt.Errorf("backend: reading %s %s: %w", method, path, err)
	}
	v, err := jsonval.Parse(raw)
	if err != nil {
		return jsonval.Value{}, fmt.Errorf("backend: decoding %s %s: %w", method, path, err)
	}
	return v, nil
}

// errorMessage picks detail → error → message → "HTTP <status>".
func errorMessage(body jsonval.Value, status int) string {
	for _, key := range []string{"detail", "error", "message"} {
		if s := body.Get(key).TrimmedText(); s != "" {
			return s
		}
	}
	return fmt.Sprintf("HTTP %d", status)
}
