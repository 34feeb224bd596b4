// Package session owns the signed-in user on the client: login, register,
// logout, the persisted session record and profile edits.
//
// There is exactly one live session per Client. Reads (Current, Token,
// UserID) never block on the network or the store; profile edits are
// applied in memory first and persisted in the background.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sakif/movi/internal/apperror"
	"github.com/sakif/movi/internal/backend"
	"github.com/sakif/movi/internal/jsonval"
	"github.com/sakif/movi/internal/model"
	"github.com/sakif/movi/internal/normalize"
	"github.com/sakif/movi/internal/repository"
)

// API is the part of the backend client the session needs.
type API interface {
	Get(ctx context.Context, path string) (jsonval.Value, error)
	Post(ctx context.Context, path string, body any) (jsonval.Value, error)
}

// Client holds the current session.
type Client struct {
	api     API
	store   repository.SessionStore
	logger  *slog.Logger
	onLogin func(model.Session)
	now     func() time.Time

	mu    sync.RWMutex
	token string
	user  model.Session
	// gen changes on every login and logout; background writes started
	// under an older generation are dropped.
	gen uint64

	// writeMu serializes store writes so they land in the order they were
	// requested.
	writeMu  sync.Mutex
	writeSeq uint64
	lastSeq  uint64
	pending  sync.WaitGroup
}

// Option configures a Client.
type Option func(*Client)

// WithOnLogin registers a callback fired after every successful login,
// once the session is stored. Screens use it to navigate.
func WithOnLogin(fn func(model.Session)) Option {
	return func(c *Client) { c.onLogin = fn }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a Client with no session. Call Restore to load a persisted
// one.
func New(api API, store repository.SessionStore, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		api:    api,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// =========================================================================
// READS
// =========================================================================

// Current returns the signed-in user; ok is false when signed out.
func (c *Client) Current() (model.Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user, !c.user.IsZero()
}

// Token returns the bearer token, or "" when signed out.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// UserID returns the signed-in user's id, or "".
func (c *Client) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user.ID
}

// =========================================================================
// LOGIN / REGISTER / LOGOUT
// =========================================================================

// Login authenticates and installs the session.
//
// A 401 becomes apperror.ErrInvalidCredentials; every other failure,
// including transport errors, becomes apperror.ErrLoginFailed carrying the
// server's detail when there was one.
func (c *Client) Login(ctx context.Context, email, password string) (model.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	password = strings.TrimSpace(password)
	if email == "" {
		return model.Session{}, apperror.ValidationFailed("email", "email is required")
	}
	if password == "" {
		return model.Session{}, apperror.ValidationFailed("password", "password is required")
	}

	body, err := c.api.Post(ctx, backend.LoginPath, map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return model.Session{}, loginError(err)
	}

	token := body.Get("token").TrimmedText()
	user := normalize.Session(body.Get("user"))
	if token == "" || user.IsZero() {
		return model.Session{}, apperror.LoginFailed("response carried no token or user")
	}

	rec := repository.PersistedSession{
		Version: repository.SessionVersion,
		Token:   token,
		User:    user,
		SavedAt: c.now().UTC(),
	}
	if err := c.save(ctx, rec); err != nil {
		// The session still works for this run; it just won't survive a
		// restart.
		c.logger.Error("persisting session failed", slog.String("error", err.Error()))
	}

	c.install(token, user)
	c.logger.Info("logged in", slog.String("user_id", user.ID))

	if c.onLogin != nil {
		c.onLogin(user)
	}
	return user, nil
}

func loginError(err error) error {
	var he *backend.HTTPError
	if errors.As(err, &he) {
		if he.Status == 401 {
			return apperror.InvalidCredentials()
		}
		return apperror.LoginFailed(he.Message)
	}
	return apperror.LoginFailed(err.Error())
}

// Register creates an account. It does not sign in; the current session,
// if any, is left untouched.
//
// A 409 is classified by its message: "username" → ErrUsernameExists,
// "email" → ErrEmailExists, anything else → ErrConflict.
func (c *Client) Register(ctx context.Context, name, email, password string) error {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	password = strings.TrimSpace(password)
	switch {
	case name == "":
		return apperror.ValidationFailed("name", "name is required")
	case email == "":
		return apperror.ValidationFailed("email", "email is required")
	case password == "":
		return apperror.ValidationFailed("password", "password is required")
	}

	first, last, _ := strings.Cut(name, " ")
	_, err := c.api.Post(ctx, backend.RegisterPath, map[string]any{
		"name":     map[string]string{"first": first, "last": strings.TrimSpace(last)},
		"email":    email,
		"password": password,
	})
	if err == nil {
		return nil
	}

	var he *backend.HTTPError
	if errors.As(err, &he) {
		if he.Status == 409 {
			msg := strings.ToLower(he.Message)
			switch {
			case strings.Contains(msg, "username"):
				return apperror.UsernameExists("")
			case strings.Contains(msg, "email"):
				return apperror.EmailExists(email)
			}
			return &apperror.AppError{Err: apperror.ErrConflict, Message: he.Message}
		}
		return fmt.Errorf("registration failed: %s: %w", he.Message, err)
	}
	return fmt.Errorf("registration failed: %w", err)
}

// Logout forgets the session in memory and in the store. Calling it while
// signed out is a no-op apart from clearing the store again.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	c.token = ""
	c.user = model.Session{}
	c.gen++
	c.mu.Unlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.store.Delete(ctx, repository.SessionKey, repository.LegacyTokenKey, repository.LegacyUserKey); err != nil {
		return fmt.Errorf("session: clearing store: %w", err)
	}
	return nil
}

func (c *Client) install(token string, user model.Session) {
	c.mu.Lock()
	c.token = token
	c.user = user
	c.gen++
	c.mu.Unlock()
}

// =========================================================================
// PROFILE UPDATES
// =========================================================================

// UpdateUser merges patch into the current session. The in-memory change
// is visible immediately; the store write happens in the background and
// failures are only logged. Signed out, it does nothing.
func (c *Client) UpdateUser(patch model.UserPatch) {
	if patch.IsEmpty() {
		return
	}

	c.mu.Lock()
	if c.user.IsZero() {
		c.mu.Unlock()
		return
	}
	c.user = patch.Apply(c.user)
	rec := repository.PersistedSession{
		Version: repository.SessionVersion,
		Token:   c.token,
		User:    c.user,
		SavedAt: c.now().UTC(),
	}
	gen := c.gen
	c.mu.Unlock()

	c.writeMu.Lock()
	c.writeSeq++
	seq := c.writeSeq
	c.writeMu.Unlock()

	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		c.persistAsync(rec, gen, seq)
	}()
}

func (c *Client) persistAsync(rec repository.PersistedSession, gen, seq uint64) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	// A newer write already landed, or the user logged out / switched.
	if seq < c.lastSeq {
		return
	}
	c.mu.RLock()
	stale := gen != c.gen
	c.mu.RUnlock()
	if stale {
		return
	}

	if err := c.write(context.Background(), rec); err != nil {
		c.logger.Error("persisting profile update failed",
			slog.String("user_id", rec.User.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	c.lastSeq = seq
}

// Flush waits for background writes started so far.
func (c *Client) Flush() {
	c.pending.Wait()
}

// Close flushes pending writes.
func (c *Client) Close() error {
	c.Flush()
	return nil
}

// RefreshProfile reloads the user's profile from the backend and merges
// it into the session.
func (c *Client) RefreshProfile(ctx context.Context) (model.Session, error) {
	id := c.UserID()
	if id == "" {
		return model.Session{}, apperror.Unauthorized("not signed in")
	}
	body, err := c.api.Get(ctx, backend.ProfilePath(id))
	if err != nil {
		return model.Session{}, fmt.Errorf("session: loading profile: %w", err)
	}
	c.UpdateUser(profilePatch(normalize.Session(profileUser(body))))
	cur, _ := c.Current()
	return cur, nil
}

// UpdateBio saves a new bio and mirrors it into the session.
func (c *Client) UpdateBio(ctx context.Context, bio string) error {
	id := c.UserID()
	if id == "" {
		return apperror.Unauthorized("not signed in")
	}
	bio = strings.TrimSpace(bio)
	if _, err := c.api.Post(ctx, backend.BioPath(id), map[string]string{"bio": bio}); err != nil {
		return fmt.Errorf("session: updating bio: %w", err)
	}
	c.UpdateUser(model.UserPatch{Bio: &bio})
	return nil
}

// profileUser accepts both {user: {...}} and a bare user object.
func profileUser(body jsonval.Value) jsonval.Value {
	if u := body.Get("user"); u.Kind() == jsonval.Object {
		return u
	}
	return body
}

// profilePatch copies the fields a profile read is authoritative for.
// Empty strings are skipped so a sparse response cannot wipe the session.
func profilePatch(s model.Session) model.UserPatch {
	var p model.UserPatch
	set := func(dst **string, v string) {
		if v != "" {
			*dst = &v
		}
	}
	set(&p.Name, s.Name)
	set(&p.Email, s.Email)
	set(&p.Username, s.Username)
	set(&p.AvatarURL, s.AvatarURL)
	if s.Bio != "" || s.ID != "" {
		bio := s.Bio
		p.Bio = &bio
	}
	return p
}
