// Package app is the client's composition root. It builds the backend and
// proxy clients, the session with its SQLite store, the change bus and the
// screen controllers from one config.ClientConfig, and owns their
// lifetimes.
//
// DEPENDENCY FLOW:
//
//	ClientConfig
//	  → backend.Client (api)    → session.Client ← sqlite session store
//	  → backend.Client (proxy)  → proxyclient.Client → search, feed posters
//	  session (UserSource) + api + bus → library, social, feed
//
// The api client reads its bearer token from the session on every request,
// so signing in or out never rebuilds anything.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/movi/internal/backend"
	"github.com/sakif/movi/internal/bus"
	"github.com/sakif/movi/internal/config"
	"github.com/sakif/movi/internal/feed"
	"github.com/sakif/movi/internal/library"
	"github.com/sakif/movi/internal/model"
	"github.com/sakif/movi/internal/proxyclient"
	sqliteRepo "github.com/sakif/movi/internal/repository/sqlite"
	"github.com/sakif/movi/internal/search"
	"github.com/sakif/movi/internal/session"
	"github.com/sakif/movi/internal/social"
)

// App holds every client component.
type App struct {
	Session  *session.Client
	Bus      *bus.Bus
	Library  *library.Controller
	Social   *social.Controller
	Feed     *feed.Feed
	Search   *search.Searcher
	Proxy    *proxyclient.Client
	API      *backend.Client
	store    *sqliteRepo.DB
	logger   *slog.Logger
}

// Option configures New.
type Option func(*options)

type options struct {
	notify     func(error)
	httpClient *http.Client
}

// WithNotifier receives errors the screens would toast.
func WithNotifier(fn func(error)) Option {
	return func(o *options) { o.notify = fn }
}

// WithHTTPClient replaces the http.Client built from RequestTimeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// New validates cfg, opens the session store and wires the components. A
// persisted session is restored before New returns.
func New(ctx context.Context, cfg config.ClientConfig, logger *slog.Logger, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	o := options{notify: func(error) {}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}

	if cfg.SessionPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.SessionPath), 0o755); err != nil {
			return nil, fmt.Errorf("app: creating session directory: %w", err)
		}
	}
	store, err := sqliteRepo.New(cfg.SessionPath)
	if err != nil {
		return nil, fmt.Errorf("app: opening session store: %w", err)
	}

	api := backend.New(cfg.APIURL, backend.WithHTTPClient(o.httpClient), backend.WithLogger(logger))
	sess := session.New(api, store, logger)
	api.SetTokenSource(sess.Token)

	proxy := proxyclient.New(backend.New(cfg.ProxyURL, backend.WithHTTPClient(o.httpClient), backend.WithLogger(logger)))
	b := bus.New(logger)

	a := &App{
		Session:  sess,
		Bus:      b,
		Library:  library.New(api, b, sess, logger, library.Notifier(o.notify)),
		Social:   social.New(api, sess, logger, social.WithDebounce(cfg.SearchDebounce), social.WithNotifier(o.notify)),
		Feed:     feed.New(api, proxy, sess, logger),
		Search:   search.New(proxy, logger),
		Proxy:    proxy,
		API:      api,
		store:    store,
		logger:   logger,
	}

	if _, err := sess.Restore(ctx); err != nil {
		// A broken record only costs the user a sign-in.
		logger.Warn("session restore failed", slog.String("error", err.Error()))
	}
	return a, nil
}

// SignIn logs in and loads the library and network together.
func (a *App) SignIn(ctx context.Context, email, password string) (model.Session, error) {
	user, err := a.Session.Login(ctx, email, password)
	if err != nil {
		return model.Session{}, err
	}
	return user, a.LoadAll(ctx)
}

// LoadAll loads the library and the follow graph in parallel. Both run to
// completion; their errors are joined.
func (a *App) LoadAll(ctx context.Context) error {
	var g errgroup.Group
	var libErr, netErr error
	g.Go(func() error {
		libErr = a.Library.Load(ctx)
		return nil
	})
	g.Go(func() error {
		_, netErr = a.Social.FetchNetwork(ctx)
		return nil
	})
	_ = g.Wait()
	return errors.Join(libErr, netErr)
}

// SignOut forgets the session and clears everything loaded for the user:
// library, network, user search results and feed.
func (a *App) SignOut(ctx context.Context) error {
	// Logout drops the in-memory session even when clearing the store
	// fails, so the screens are cleared either way.
	err := a.Session.Logout(ctx)
	a.Social.Reset()
	a.Feed.Reset()
	return errors.Join(err, a.Library.Load(ctx))
}

// Close stops background work and closes the session store.
func (a *App) Close() error {
	a.Social.Cancel()
	a.Feed.Cancel()
	a.Library.Close()
	a.Bus.Close()
	return errors.Join(a.Session.Close(), a.store.Close())
}
