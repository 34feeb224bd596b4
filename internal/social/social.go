// Package social is the client-side controller for the follow graph: the
// following/followers lists, user search and follow/unfollow.
package social

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/movi/internal/apperror"
	"github.com/sakif/movi/internal/backend"
	"github.com/sakif/movi/internal/collection"
	"github.com/sakif/movi/internal/jsonval"
	"github.com/sakif/movi/internal/model"
	"github.com/sakif/movi/internal/normalize"
)

// DefaultDebounce is the pause after the last keystroke before a search
// request goes out.
const DefaultDebounce = 350 * time.Millisecond

// MinQueryLength is the shortest trimmed query that is searched.
const MinQueryLength = 2

// API is the part of the backend client the controller uses.
type API interface {
	Get(ctx context.Context, path string) (jsonval.Value, error)
	Post(ctx context.Context, path string, body any) (jsonval.Value, error)
	Delete(ctx context.Context, path string) (jsonval.Value, error)
}

// UserSource yields the signed-in user's id.
type UserSource interface {
	UserID() string
}

// Network is both sides of the user's follow graph.
type Network struct {
	Following []model.FriendProfile
	Followers []model.FriendProfile
}

// FollowError reports which of the two writes of a follow or unfollow
// failed. Step 1 is the acting user's following list, step 2 the target's
// followers list. A step 2 failure leaves step 1 in place; there is no
// rollback.
type FollowError struct {
	Op   string // "follow" or "unfollow"
	Step int
	Err  error
}

func (e *FollowError) Error() string {
	return fmt.Sprintf("%s failed at step %d of 2: %v", e.Op, e.Step, e.Err)
}

func (e *FollowError) Unwrap() error {
	return e.Err
}

// Option configures a Controller.
type Option func(*Controller)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(c *Controller) { c.debounce = d }
}

// WithOnResults registers a callback for every applied search result.
func WithOnResults(fn func([]model.UserSummary)) Option {
	return func(c *Controller) { c.onResults = fn }
}

// WithNotifier registers a sink for search failures, which have no caller
// to return to.
func WithNotifier(fn func(error)) Option {
	return func(c *Controller) { c.notify = fn }
}

// Controller owns the network lists and the user search.
type Controller struct {
	api       API
	users     UserSource
	logger    *slog.Logger
	debounce  time.Duration
	onResults func([]model.UserSummary)
	notify    func(error)

	mu      sync.Mutex
	network Network
	results []model.UserSummary

	// Search bookkeeping: gen identifies the latest query; only its
	// response is applied.
	gen    uint64
	timer  *time.Timer
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Controller.
func New(api API, users UserSource, logger *slog.Logger, opts ...Option) *Controller {
	c := &Controller{
		api:      api,
		users:    users,
		logger:   logger,
		debounce: DefaultDebounce,
		network: Network{
			Following: []model.FriendProfile{},
			Followers: []model.FriendProfile{},
		},
		results: []model.UserSummary{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// =========================================================================
// NETWORK
// =========================================================================

func networkCollection(side model.Relationship) collection.Collection[model.FriendProfile] {
	return collection.Collection[model.FriendProfile]{
		Name:  string(side),
		Path:  func(uid string) string { return backend.NetworkPath(side, uid) },
		Field: backend.NetworkField(side),
		Normalize: func(v jsonval.Value) (model.FriendProfile, bool) {
			return normalize.Friend(v, side)
		},
		Key: func(p model.FriendProfile) string { return p.ID },
	}
}

// FetchNetwork loads following and followers in parallel.
func (c *Controller) FetchNetwork(ctx context.Context) (Network, error) {
	uid := c.users.UserID()
	if uid == "" {
		return Network{}, apperror.Unauthorized("not signed in")
	}

	var n Network
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		n.Following, err = networkCollection(model.Following).Fetch(gctx, c.api, uid)
		return err
	})
	g.Go(func() error {
		var err error
		n.Followers, err = networkCollection(model.Follower).Fetch(gctx, c.api, uid)
		return err
	})
	if err := g.Wait(); err != nil {
		return Network{}, fmt.Errorf("social: loading network: %w", err)
	}

	c.mu.Lock()
	// Signed out (or switched user) while the requests ran.
	if c.users.UserID() == uid {
		c.network = n
	}
	c.mu.Unlock()
	return cloneNetwork(n), nil
}

// Network returns the last loaded network.
func (c *Controller) Network() Network {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneNetwork(c.network)
}

func cloneNetwork(n Network) Network {
	return Network{Following: slices.Clone(n.Following), Followers: slices.Clone(n.Followers)}
}

// =========================================================================
// SEARCH
// =========================================================================

// SearchUsers schedules a search for query after the debounce. A newer
// call cancels whatever is pending or in flight. Queries shorter than
// MinQueryLength clear the results without a request.
func (c *Controller) SearchUsers(ctx context.Context, query string) {
	query = strings.TrimSpace(query)

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.stopLocked()

	if utf8.RuneCountInString(query) < MinQueryLength {
		c.results = []model.UserSummary{}
		c.mu.Unlock()
		c.publish([]model.UserSummary{})
		return
	}

	sctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg.Add(1)
	c.timer = time.AfterFunc(c.debounce, func() {
		defer c.wg.Done()
		c.runSearch(sctx, gen, query)
	})
	c.mu.Unlock()
}

// stopLocked cancels the pending timer and in-flight request.
func (c *Controller) stopLocked() {
	if c.timer != nil && c.timer.Stop() {
		// The callback will never run, so balance its Add here.
		c.wg.Done()
	}
	c.timer = nil
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Cancel abandons any pending search.
func (c *Controller) Cancel() {
	c.mu.Lock()
	c.gen++
	c.stopLocked()
	c.mu.Unlock()
}

// Reset abandons any pending search and forgets the network and results.
// Called on sign-out.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.gen++
	c.stopLocked()
	c.network = Network{Following: []model.FriendProfile{}, Followers: []model.FriendProfile{}}
	c.results = []model.UserSummary{}
	c.mu.Unlock()
}

func (c *Controller) runSearch(ctx context.Context, gen uint64, query string) {
	if ctx.Err() != nil {
		return
	}
	uid := c.users.UserID()
	if uid == "" {
		return
	}

	body, err := c.api.Get(ctx, backend.SearchUsersPath(uid, query))

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.mu.Unlock()
		if errors.Is(err, context.Canceled) {
			return
		}
		c.logger.Warn("user search failed", slog.String("query", query), slog.String("error", err.Error()))
		if c.notify != nil {
			c.notify(fmt.Errorf("social: searching users: %w", err))
		}
		return
	}

	followed := make(map[string]struct{}, len(c.network.Following))
	for _, f := range c.network.Following {
		followed[f.ID] = struct{}{}
	}
	hits := []model.UserSummary{}
	seen := map[string]struct{}{}
	for _, v := range normalize.Items(body, "items") {
		u, ok := normalize.User(v)
		if !ok || u.ID == uid {
			continue
		}
		if _, dup := followed[u.ID]; dup {
			continue
		}
		if _, dup := seen[u.ID]; dup {
			continue
		}
		seen[u.ID] = struct{}{}
		hits = append(hits, u)
	}
	c.results = hits
	c.mu.Unlock()

	c.publish(slices.Clone(hits))
}

func (c *Controller) publish(results []model.UserSummary) {
	if c.onResults != nil {
		c.onResults(results)
	}
}

// Results returns the latest applied search results.
func (c *Controller) Results() []model.UserSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.results)
}

// Wait blocks until scheduled searches have finished or been cancelled.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// =========================================================================
// FOLLOW / UNFOLLOW
// =========================================================================

// FollowUser adds target to the user's following list, then the user to
// target's followers list.
func (c *Controller) FollowUser(ctx context.Context, targetID string) error {
	uid, err := c.checkTarget(targetID)
	if err != nil {
		return err
	}
	if _, err := c.api.Post(ctx, backend.EdgePath(model.Following, uid, targetID, true), nil); err != nil {
		return &FollowError{Op: "follow", Step: 1, Err: err}
	}
	if _, err := c.api.Post(ctx, backend.EdgePath(model.Follower, targetID, uid, true), nil); err != nil {
		return &FollowError{Op: "follow", Step: 2, Err: err}
	}

	c.mu.Lock()
	profile := model.FriendProfile{ID: targetID, Username: targetID}
	for _, r := range c.results {
		if r.ID == targetID {
			profile = model.FriendProfile{ID: r.ID, Name: r.Name, Username: r.Username}
			break
		}
	}
	seed := profile.Username
	profile.Accent = normalize.Accent(seed)
	profile.Relationship = model.Following
	profile.Note = model.Following.Note()
	if !slices.ContainsFunc(c.network.Following, func(p model.FriendProfile) bool { return p.ID == targetID }) {
		c.network.Following = append(c.network.Following, profile)
	}
	c.results = slices.DeleteFunc(c.results, func(u model.UserSummary) bool { return u.ID == targetID })
	c.mu.Unlock()

	c.logger.Info("followed user", slog.String("user_id", uid), slog.String("target_id", targetID))
	return nil
}

// UnfollowUser mirrors FollowUser with deletes.
func (c *Controller) UnfollowUser(ctx context.Context, targetID string) error {
	uid, err := c.checkTarget(targetID)
	if err != nil {
		return err
	}
	if _, err := c.api.Delete(ctx, backend.EdgePath(model.Following, uid, targetID, false)); err != nil {
		return &FollowError{Op: "unfollow", Step: 1, Err: err}
	}
	if _, err := c.api.Delete(ctx, backend.EdgePath(model.Follower, targetID, uid, false)); err != nil {
		return &FollowError{Op: "unfollow", Step: 2, Err: err}
	}

	c.mu.Lock()
	c.network.Following = slices.DeleteFunc(c.network.Following, func(p model.FriendProfile) bool {
		return p.ID == targetID
	})
	c.mu.Unlock()

	c.logger.Info("unfollowed user", slog.String("user_id", uid), slog.String("target_id", targetID))
	return nil
}

func (c *Controller) checkTarget(targetID string) (string, error) {
	uid := c.users.UserID()
	if uid == "" {
		return "", apperror.Unauthorized("not signed in")
	}
	if strings.TrimSpace(targetID) == "" {
		return "", apperror.ValidationFailed("targetId", "target user id is required")
	}
	if targetID == uid {
		return "", apperror.ValidationFailed("targetId", "you cannot follow yourself")
	}
	return uid, nil
}
