// Package feed loads a user's activity log and fills in missing movie
// posters from the metadata proxy.
package feed

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/movi/internal/apperror"
	"github.com/sakif/movi/internal/backend"
	"github.com/sakif/movi/internal/collection"
	"github.com/sakif/movi/internal/model"
	"github.com/sakif/movi/internal/normalize"
)

// posterWorkers bounds concurrent title lookups during enrichment.
const posterWorkers = 4

// PosterSource resolves movie details; proxyclient.Client satisfies it.
type PosterSource interface {
	MovieDetail(ctx context.Context, id string) (model.LibraryEntry, error)
}

// UserSource yields the signed-in user's id.
type UserSource interface {
	UserID() string
}

var activity = collection.Collection[model.ActivityFeedItem]{
	Name:      "activity",
	Path:      backend.ActivityPath,
	Field:     "items",
	Normalize: collection.Always(normalize.Activity),
}

// Feed holds the loaded activity items.
type Feed struct {
	api     backend.Getter
	posters PosterSource
	users   UserSource
	logger  *slog.Logger

	mu     sync.Mutex
	items  []model.ActivityFeedItem
	gen    uint64
	cancel context.CancelFunc
}

// New creates a Feed. posters may be nil, which disables enrichment.
func New(api backend.Getter, posters PosterSource, users UserSource, logger *slog.Logger) *Feed {
	return &Feed{
		api:     api,
		posters: posters,
		users:   users,
		logger:  logger,
		items:   []model.ActivityFeedItem{},
	}
}

// Load fetches the activity log, newest first. A user without a log (404)
// has an empty feed. Any enrichment still running is abandoned.
func (f *Feed) Load(ctx context.Context) ([]model.ActivityFeedItem, error) {
	uid := f.users.UserID()
	if uid == "" {
		return nil, apperror.Unauthorized("not signed in")
	}

	items, err := activity.Fetch(ctx, f.api, uid)
	if errors.Is(err, apperror.ErrNotFound) {
		items, err = []model.ActivityFeedItem{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("feed: %w", err)
	}
	sortNewestFirst(items)

	f.mu.Lock()
	if f.users.UserID() != uid {
		f.mu.Unlock()
		return slices.Clone(items), nil
	}
	f.stopLocked()
	f.items = items
	f.mu.Unlock()
	return slices.Clone(items), nil
}

// sortNewestFirst orders by timestamp descending; items with an unknown
// (zero) timestamp go last, keeping their relative order.
func sortNewestFirst(items []model.ActivityFeedItem) {
	slices.SortStableFunc(items, func(a, b model.ActivityFeedItem) int {
		switch {
		case a.Timestamp.IsZero() && b.Timestamp.IsZero():
			return 0
		case a.Timestamp.IsZero():
			return 1
		case b.Timestamp.IsZero():
			return -1
		}
		return b.Timestamp.Compare(a.Timestamp)
	})
}

// Items returns the current feed.
func (f *Feed) Items() []model.ActivityFeedItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.items)
}

// EnrichPosters looks up a poster for every movie item that has none.
// Lookups that fail are skipped. If Cancel or Load is called while the
// lookups run, their results are discarded and the context error is
// returned.
func (f *Feed) EnrichPosters(ctx context.Context) error {
	if f.posters == nil {
		return nil
	}

	f.mu.Lock()
	f.stopLocked()
	ectx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	gen := f.gen
	var ids []string
	for _, it := range f.items {
		if it.MovieID != "" && it.ImageURL == nil && !slices.Contains(ids, it.MovieID) {
			ids = append(ids, it.MovieID)
		}
	}
	f.mu.Unlock()
	defer cancel()

	if len(ids) == 0 {
		return nil
	}

	var (
		resMu   sync.Mutex
		posters = make(map[string]*string, len(ids))
	)
	var g errgroup.Group
	g.SetLimit(posterWorkers)
	for _, id := range ids {
		g.Go(func() error {
			detail, err := f.posters.MovieDetail(ectx, id)
			if err != nil {
				if ectx.Err() == nil {
					f.logger.Debug("poster lookup failed", slog.String("movie_id", id), slog.String("error", err.Error()))
				}
				return nil
			}
			if detail.ImageURL != nil {
				resMu.Lock()
				posters[id] = detail.ImageURL
				resMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.gen || ectx.Err() != nil {
		return cmp.Or(ectx.Err(), context.Canceled)
	}
	for i, it := range f.items {
		if it.ImageURL != nil {
			continue
		}
		if p, ok := posters[it.MovieID]; ok {
			f.items[i].ImageURL = p
		}
	}
	return nil
}

// Cancel abandons a running EnrichPosters, e.g. when the feed is hidden.
func (f *Feed) Cancel() {
	f.mu.Lock()
	f.stopLocked()
	f.mu.Unlock()
}

// Reset cancels enrichment and empties the feed.
func (f *Feed) Reset() {
	f.mu.Lock()
	f.stopLocked()
	f.items = []model.ActivityFeedItem{}
	f.mu.Unlock()
}

func (f *Feed) stopLocked() {
	f.gen++
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
}
