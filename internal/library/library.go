// Package library is the client-side controller for the four library lists
// (watched, watch later, read, to read) and the user's reviews.
//
// Loads fan out one request per collection and swap the results in at
// once, so the screens never see half a library. Mutations are
// pessimistic: local state changes only after the backend accepted the
// request, then a "library changed" event goes out on the bus so other
// controllers can refresh.
package library

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/xid"
	"golang.org/x/sync/errgroup"

	"github.com/sakif/movi/internal/apperror"
	"github.com/sakif/movi/internal/backend"
	"github.com/sakif/movi/internal/bus"
	"github.com/sakif/movi/internal/collection"
	"github.com/sakif/movi/internal/jsonval"
	"github.com/sakif/movi/internal/model"
	"github.com/sakif/movi/internal/normalize"
	"github.com/sakif/movi/internal/validate"
)

// API is the part of the backend client the controller uses.
type API interface {
	Get(ctx context.Context, path string) (jsonval.Value, error)
	Post(ctx context.Context, path string, body any) (jsonval.Value, error)
	Delete(ctx context.Context, path string) (jsonval.Value, error)
}

// UserSource yields the signed-in user's id ("" when signed out).
type UserSource interface {
	UserID() string
}

// Notifier receives errors the screens should surface (toasts).
type Notifier func(error)

// Controller owns the library state.
type Controller struct {
	id     string
	api    API
	bus    *bus.Bus
	users  UserSource
	logger *slog.Logger
	notify Notifier

	mu    sync.Mutex
	state State
	// gen increments on every Load so a slow, superseded load cannot
	// overwrite a newer one.
	gen    uint64
	closed bool

	// refreshing counts refreshes in flight for the current gen. settled is
	// the phase the last one to finish lands on: the phase seen when the
	// count left zero, or Ready once any of them succeeded.
	refreshing int
	settled    Phase

	unsubscribe func()
	bg          sync.WaitGroup
}

// New creates a controller and subscribes it to b. notify may be nil.
func New(api API, b *bus.Bus, users UserSource, logger *slog.Logger, notify Notifier) *Controller {
	c := &Controller{
		id:     "library-" + xid.New().String(),
		api:    api,
		bus:    b,
		users:  users,
		logger: logger,
		notify: notify,
		state:  empty(),
	}
	c.unsubscribe = b.Subscribe(c.onEvent)
	return c
}

// ID is the Source this controller stamps on its events.
func (c *Controller) ID() string {
	return c.id
}

// State returns a snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// =========================================================================
// LOAD / REFRESH
// =========================================================================

type snapshot struct {
	lists   map[model.List][]model.LibraryEntry
	reviews []model.Review
}

func entryCollection(list model.List) collection.Collection[model.LibraryEntry] {
	norm := normalize.Movie
	if list.Kind() == model.KindBook {
		norm = normalize.Book
	}
	return collection.Collection[model.LibraryEntry]{
		Name:  string(list),
		Path:  func(uid string) string { return backend.ListPath(list, uid) },
		Field: backend.ListField(list),
		Normalize: func(v jsonval.Value) (model.LibraryEntry, bool) {
			e := norm(v)
			return e, e.ID != ""
		},
		Key: func(e model.LibraryEntry) string { return e.ID },
	}
}

var reviewCollection = collection.Collection[model.Review]{
	Name:      "reviews",
	Path:      backend.ReviewsPath,
	Field:     "items",
	Normalize: normalize.Review,
	Key:       func(r model.Review) string { return r.ID },
}

// fetch loads all five collections in parallel. Any failure fails the
// whole fetch.
func (c *Controller) fetch(ctx context.Context, uid string) (snapshot, error) {
	results := make([][]model.LibraryEntry, len(model.Lists))
	var reviews []model.Review

	g, gctx := errgroup.WithContext(ctx)
	for i, list := range model.Lists {
		g.Go(func() error {
			entries, err := entryCollection(list).Fetch(gctx, c.api, uid)
			results[i] = entries
			return err
		})
	}
	g.Go(func() error {
		var err error
		reviews, err = reviewCollection.Fetch(gctx, c.api, uid)
		return err
	})
	if err := g.Wait(); err != nil {
		return snapshot{}, err
	}

	snap := snapshot{lists: make(map[model.List][]model.LibraryEntry, len(model.Lists)), reviews: reviews}
	for i, list := range model.Lists {
		snap.lists[list] = results[i]
	}
	return snap, nil
}

func (s snapshot) apply(st *State) {
	for list, entries := range s.lists {
		st.setList(list, entries)
	}
	st.Reviews = s.reviews
}

// Load replaces the library with a fresh copy. Signed out, it clears the
// library and returns to Idle. On failure the phase is Error and no
// partial data is kept.
func (c *Controller) Load(ctx context.Context) error {
	uid := c.users.UserID()

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.refreshing = 0
	if uid == "" {
		c.state = empty()
		c.mu.Unlock()
		return nil
	}
	c.state = empty()
	c.state.Phase = Loading
	c.mu.Unlock()

	snap, err := c.fetch(ctx, uid)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return nil
	}
	if err != nil {
		c.state = empty()
		c.state.Phase = Error
		c.state.Message = err.Error()
		c.logger.Warn("library load failed", slog.String("user_id", uid), slog.String("error", err.Error()))
		return err
	}
	snap.apply(&c.state)
	c.state.Phase = Ready
	c.state.Message = ""
	return nil
}

// Refresh reloads without clearing. The current data stays visible while
// any refresh is in flight (phase Refreshing). When the last one finishes
// the phase is Ready if any of them succeeded, otherwise the phase from
// before the first one started. Errors go to the notifier.
func (c *Controller) Refresh(ctx context.Context) error {
	uid := c.users.UserID()
	if uid == "" {
		return c.Load(ctx)
	}

	c.mu.Lock()
	if c.state.Phase == Idle || c.state.Phase == Loading {
		c.mu.Unlock()
		return c.Load(ctx)
	}
	gen := c.gen
	if c.refreshing == 0 {
		c.settled = c.state.Phase
	}
	c.refreshing++
	c.state.Phase = Refreshing
	c.mu.Unlock()

	snap, err := c.fetch(ctx, uid)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return nil
	}
	c.refreshing--
	if err == nil {
		snap.apply(&c.state)
		c.settled = Ready
		c.state.Message = ""
	}
	if c.refreshing == 0 {
		c.state.Phase = c.settled
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("library refresh failed", slog.String("user_id", uid), slog.String("error", err.Error()))
		c.report(err)
		return err
	}
	return nil
}

// refreshInBackground starts a tracked refresh; Wait blocks until every
// one started so far has finished.
func (c *Controller) refreshInBackground() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.bg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.bg.Done()
		_ = c.Refresh(context.Background())
	}()
}

// Wait blocks until background refreshes have finished.
func (c *Controller) Wait() {
	c.bg.Wait()
}

// Close unsubscribes from the bus and waits for background work.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.unsubscribe()
	c.bg.Wait()
}

func (c *Controller) onEvent(e bus.Event) {
	if e.Topic != bus.LibraryChanged || e.Source == c.id {
		return
	}
	c.refreshInBackground()
}

func (c *Controller) emit() {
	c.bus.Emit(bus.Event{Topic: bus.LibraryChanged, Source: c.id})
}

func (c *Controller) report(err error) {
	if c.notify != nil && err != nil {
		c.notify(err)
	}
}

// fail reports err and returns it, for mutation failure paths.
func (c *Controller) fail(err error) error {
	c.report(err)
	return err
}

// =========================================================================
// MUTATIONS
// =========================================================================

// checkItem validates the ids a mutation needs before any request.
func (c *Controller) checkItem(entry model.LibraryEntry, list model.List) (string, error) {
	uid := c.users.UserID()
	if uid == "" {
		return "", apperror.Unauthorized("not signed in")
	}
	if strings.TrimSpace(entry.ID) == "" {
		return "", apperror.ValidationFailed("id", "item id is required")
	}
	if list.Kind() == model.KindMovie {
		if _, err := strconv.ParseUint(entry.ID, 10, 64); err != nil {
			return "", apperror.ValidationFailed("id", fmt.Sprintf("movie id %q is not numeric", entry.ID))
		}
	}
	return uid, nil
}

// RemoveItem deletes entry from list.
func (c *Controller) RemoveItem(ctx context.Context, entry model.LibraryEntry, list model.List) error {
	uid, err := c.checkItem(entry, list)
	if err != nil {
		return c.fail(err)
	}
	if _, err := c.api.Delete(ctx, backend.RemoveItemPath(list, uid, entry.ID)); err != nil {
		return c.fail(fmt.Errorf("library: removing %s from %s: %w", entry.ID, list, err))
	}

	c.mu.Lock()
	c.state.setList(list, without(c.state.List(list), entry.ID))
	c.mu.Unlock()

	c.emit()
	return nil
}

// AddItem puts entry at the top of list. Adding to a done list also takes
// the entry off the matching backlog, as the backend does.
func (c *Controller) AddItem(ctx context.Context, entry model.LibraryEntry, list model.List) error {
	uid, err := c.checkItem(entry, list)
	if err != nil {
		return c.fail(err)
	}
	entry.Kind = list.Kind()
	if _, err := c.api.Post(ctx, backend.AddItemPath(list, uid, entry.ID), nil); err != nil {
		return c.fail(fmt.Errorf("library: adding %s to %s: %w", entry.ID, list, err))
	}

	c.mu.Lock()
	c.state.setList(list, prepend(c.state.List(list), entry))
	if backlog, ok := list.Backlog(); ok {
		c.state.setList(backlog, without(c.state.List(backlog), entry.ID))
	}
	c.mu.Unlock()

	c.emit()
	return nil
}

// PromoteItem marks a backlog entry as done: later → watched, toread →
// read. A background refresh follows to pick up server-side metadata.
func (c *Controller) PromoteItem(ctx context.Context, entry model.LibraryEntry, from model.List) error {
	to, ok := from.Promoted()
	if !ok {
		return c.fail(apperror.ValidationFailed("list", fmt.Sprintf("%s items cannot be promoted", from)))
	}
	uid, err := c.checkItem(entry, from)
	if err != nil {
		return c.fail(err)
	}
	if _, err := c.api.Post(ctx, backend.AddItemPath(to, uid, entry.ID), nil); err != nil {
		return c.fail(fmt.Errorf("library: moving %s to %s: %w", entry.ID, to, err))
	}

	c.mu.Lock()
	c.state.setList(from, without(c.state.List(from), entry.ID))
	c.state.setList(to, prepend(c.state.List(to), entry))
	c.mu.Unlock()

	c.emit()
	c.refreshInBackground()
	return nil
}

// ReviewInput is the review form.
type ReviewInput struct {
	Kind   model.Kind `validate:"oneof=movie book"`
	ItemID string     `validate:"required"`
	// Rating is the raw form text; see validate.ParseRating.
	Rating string `validate:"rating"`
	Title  string `validate:"max=200"`
	Body   string `validate:"required,max=10000"`
}

// SubmitReview validates the form locally, posts it, then refreshes in the
// background so the new review shows up with its server id.
func (c *Controller) SubmitReview(ctx context.Context, in ReviewInput) error {
	in.ItemID = strings.TrimSpace(in.ItemID)
	in.Rating = strings.TrimSpace(in.Rating)
	in.Title = strings.TrimSpace(in.Title)
	in.Body = strings.TrimSpace(in.Body)

	uid := c.users.UserID()
	if uid == "" {
		return c.fail(apperror.Unauthorized("not signed in"))
	}
	if err := validate.Struct(in); err != nil {
		return c.fail(err)
	}
	rating, _ := validate.ParseRating(in.Rating)

	idField := "movieId"
	if in.Kind == model.KindBook {
		idField = "bookId"
	}
	payload := map[string]any{
		"userId": uid,
		idField:  in.ItemID,
		"rating": rating,
		"title":  in.Title,
		"body":   in.Body,
	}
	if _, err := c.api.Post(ctx, backend.CreateReviewPath(in.Kind), payload); err != nil {
		return c.fail(fmt.Errorf("library: submitting review of %s %s: %w", in.Kind, in.ItemID, err))
	}

	c.emit()
	c.refreshInBackground()
	return nil
}

// DeleteReview deletes a review and drops it locally.
func (c *Controller) DeleteReview(ctx context.Context, r model.Review) error {
	if c.users.UserID() == "" {
		return c.fail(apperror.Unauthorized("not signed in"))
	}
	if r.ID == "" {
		return c.fail(apperror.ValidationFailed("id", "review id is required"))
	}
	kind := r.Kind
	if kind == "" {
		kind = model.KindMovie
	}
	if _, err := c.api.Delete(ctx, backend.DeleteReviewPath(kind, r.ID)); err != nil {
		return c.fail(fmt.Errorf("library: deleting review %s: %w", r.ID, err))
	}

	c.mu.Lock()
	reviews := make([]model.Review, 0, len(c.state.Reviews))
	for _, x := range c.state.Reviews {
		if x.ID != r.ID {
			reviews = append(reviews, x)
		}
	}
	c.state.Reviews = reviews
	c.mu.Unlock()

	c.emit()
	return nil
}
