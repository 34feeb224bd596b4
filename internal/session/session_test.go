package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/movi/internal/apperror"
	"github.com/sakif/movi/internal/backend"
	"github.com/sakif/movi/internal/model"
	"github.com/sakif/movi/internal/repository"
	"github.com/sakif/movi/internal/repository/sqlite"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestStore(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// newTestClient wires a session client to an httptest backend.
func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) (*Client, *sqlite.DB) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	store := newTestStore(t)
	api := backend.New(srv.URL)
	c := New(api, store, testLogger(), opts...)
	api.SetTokenSource(c.Token)
	t.Cleanup(func() { c.Close() })
	return c, store
}

func loginOK(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte(`{"token": "tok-1", "user": {"_id": "u1", "name": {"first": "Ada", "last": "Lovelace"},
		"email": "Ada@Example.com", "username": "ada"}}`))
}

func storedRecord(t *testing.T, store repository.SessionStore) repository.PersistedSession {
	t.Helper()
	raw, ok, err := store.Get(context.Background(), repository.SessionKey)
	require.NoError(t, err)
	require.True(t, ok, "no persisted session")
	var rec repository.PersistedSession
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))
	return rec
}

// =========================================================================
// LOGIN TESTS
// =========================================================================

func TestLogin_Success(t *testing.T) {
	var gotBody map[string]string
	var fired model.Session
	c, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, backend.LoginPath, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		loginOK(w, r)
	}, WithOnLogin(func(s model.Session) { fired = s }))

	s, err := c.Login(context.Background(), "  ADA@example.com ", " secret ")
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"email": "ada@example.com", "password": "secret"}, gotBody)
	assert.Equal(t, "u1", s.ID)
	assert.Equal(t, "Ada Lovelace", s.Name)
	assert.Equal(t, "ada@example.com", s.Email)
	assert.Equal(t, "tok-1", c.Token())
	assert.Equal(t, "u1", c.UserID())
	assert.Equal(t, s, fired)

	rec := storedRecord(t, store)
	assert.Equal(t, repository.SessionVersion, rec.Version)
	assert.Equal(t, "tok-1", rec.Token)
	assert.Equal(t, s, rec.User)
}

func TestLogin_EmptyFieldsRejectedLocally(t *testing.T) {
	calls := 0
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { calls++ })

	_, err := c.Login(context.Background(), "   ", "pw")
	assert.ErrorIs(t, err, apperror.ErrValidation)
	_, err = c.Login(context.Background(), "a@b.c", "  ")
	assert.ErrorIs(t, err, apperror.ErrValidation)
	assert.Zero(t, calls)
}

func TestLogin_401IsInvalidCredentials(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": "invalid_credentials"}`))
	})

	_, err := c.Login(context.Background(), "a@b.c", "wrong")
	assert.ErrorIs(t, err, apperror.ErrInvalidCredentials)
	_, ok := c.Current()
	assert.False(t, ok)
}

func TestLogin_OtherFailuresAreLoginFailed(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "internal_error", "detail": "db down"}`))
	})

	_, err := c.Login(context.Background(), "a@b.c", "pw")
	assert.ErrorIs(t, err, apperror.ErrLoginFailed)
	assert.Contains(t, err.Error(), "db down")
}

func TestLogin_TransportFailureIsLoginFailed(t *testing.T) {
	c := New(backend.New("http://127.0.0.1:1"), newTestStore(t), testLogger())
	_, err := c.Login(context.Background(), "a@b.c", "pw")
	assert.ErrorIs(t, err, apperror.ErrLoginFailed)
}

// =========================================================================
// REGISTER TESTS
// =========================================================================

func TestRegister_SplitsName(t *testing.T) {
	var got map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, backend.RegisterPath, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		loginOK(w, r)
	})

	require.NoError(t, c.Register(context.Background(), " Ada  King Lovelace ", "ADA@x.io", "pw"))
	assert.Equal(t, map[string]any{"first": "Ada", "last": "King Lovelace"}, got["name"])
	assert.Equal(t, "ada@x.io", got["email"])

	// Registering never signs in.
	_, ok := c.Current()
	assert.False(t, ok)
}

func TestRegister_ConflictClassification(t *testing.T) {
	tests := []struct {
		name   string
		detail string
		want   error
	}{
		{"username", "username already taken", apperror.ErrUsernameExists},
		{"email", "that Email is registered", apperror.ErrEmailExists},
		{"other", "duplicate_entry", apperror.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusConflict)
				json.NewEncoder(w).Encode(map[string]string{"error": "conflict", "detail": tt.detail})
			})
			err := c.Register(context.Background(), "Ada", "a@b.c", "pw")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRegister_GenericFailureCarriesDetail(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "password too short"}`))
	})
	err := c.Register(context.Background(), "Ada", "a@b.c", "pw")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password too short")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

// =========================================================================
// LOGOUT / UPDATE TESTS
// =========================================================================

func TestLogout_ClearsMemoryAndStore(t *testing.T) {
	c, store := newTestClient(t, loginOK)
	_, err := c.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)

	require.NoError(t, c.Logout(context.Background()))
	require.NoError(t, c.Logout(context.Background()))

	assert.Empty(t, c.Token())
	_, ok := c.Current()
	assert.False(t, ok)
	_, found, _ := store.Get(context.Background(), repository.SessionKey)
	assert.False(t, found)
}

func TestUpdateUser_AppliesNowPersistsLater(t *testing.T) {
	c, store := newTestClient(t, loginOK)
	_, err := c.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)

	for _, bio := range []string{"one", "two", "three"} {
		b := bio
		c.UpdateUser(model.UserPatch{Bio: &b})
	}
	cur, _ := c.Current()
	assert.Equal(t, "three", cur.Bio)
	assert.Equal(t, "u1", cur.ID)

	c.Flush()
	assert.Equal(t, "three", storedRecord(t, store).User.Bio)
}

func TestUpdateUser_SignedOutIsNoop(t *testing.T) {
	c, store := newTestClient(t, loginOK)
	name := "x"
	c.UpdateUser(model.UserPatch{Name: &name})
	c.Flush()

	_, ok := c.Current()
	assert.False(t, ok)
	_, found, _ := store.Get(context.Background(), repository.SessionKey)
	assert.False(t, found)
}

func TestUpdateUser_DroppedAfterLogout(t *testing.T) {
	c, store := newTestClient(t, loginOK)
	_, err := c.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)

	bio := "late"
	c.UpdateUser(model.UserPatch{Bio: &bio})
	require.NoError(t, c.Logout(context.Background()))
	c.Flush()

	_, found, _ := store.Get(context.Background(), repository.SessionKey)
	assert.False(t, found)
}

func TestConcurrentReadsDuringUpdates(t *testing.T) {
	c, _ := newTestClient(t, loginOK)
	_, err := c.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			name := "n"
			c.UpdateUser(model.UserPatch{Name: &name})
		}()
		go func() {
			defer wg.Done()
			_ = c.Token()
			_, _ = c.Current()
		}()
	}
	wg.Wait()
	c.Flush()
}

// =========================================================================
// PROFILE TESTS
// =========================================================================

func TestRefreshProfileAndUpdateBio(t *testing.T) {
	var bioBody map[string]string
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", loginOK)
	mux.HandleFunc("GET /users/u1/profile", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		w.Write([]byte(`{"user": {"id": "u1", "username": "ada", "name": "Ada L.", "bio": "Engines", "avatarUrl": "https://a/x.png"}}`))
	})
	mux.HandleFunc("POST /users/u1/bio", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&bioBody)
		w.Write([]byte(`{"ok": true}`))
	})
	c, _ := newTestClient(t, mux.ServeHTTP)

	_, err := c.RefreshProfile(context.Background())
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	_, err = c.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)

	s, err := c.RefreshProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", s.Name)
	assert.Equal(t, "Engines", s.Bio)
	assert.Equal(t, "https://a/x.png", s.AvatarURL)

	require.NoError(t, c.UpdateBio(context.Background(), "  Notes on the engine  "))
	assert.Equal(t, "Notes on the engine", bioBody["bio"])
	cur, _ := c.Current()
	assert.Equal(t, "Notes on the engine", cur.Bio)
}

// =========================================================================
// RESTORE / MIGRATE TESTS
// =========================================================================

func TestRestore_CurrentRecord(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	rec := repository.PersistedSession{Version: 2, Token: "tok", User: model.Session{ID: "u9", Name: "Sam"}}
	raw, _ := json.Marshal(rec)
	require.NoError(t, store.Set(ctx, repository.SessionKey, string(raw)))

	c := New(backend.New(""), store, testLogger())
	ok, err := c.Restore(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "u9", c.UserID())
	assert.Equal(t, "tok", c.Token())
}

func TestMigrate_LegacyV1(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, repository.LegacyTokenKey, `"legacy-token"`))
	require.NoError(t, store.Set(ctx, repository.LegacyUserKey,
		`{"_id": {"$oid": "65f0c0ffee"}, "name": {"first": "Jo", "last": "March"}, "email": "JO@x.io", "extra": [1,2]}`))

	rec, ok, err := Migrate(ctx, store)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, repository.SessionVersion, rec.Version)
	assert.Equal(t, "legacy-token", rec.Token)
	assert.Equal(t, model.Session{ID: "65f0c0ffee", Name: "Jo March", Email: "jo@x.io"}, rec.User)

	// Written back as v2, legacy keys gone.
	assert.Equal(t, rec.User, storedRecord(t, store).User)
	_, found, _ := store.Get(ctx, repository.LegacyTokenKey)
	assert.False(t, found)
	_, found, _ = store.Get(ctx, repository.LegacyUserKey)
	assert.False(t, found)

	// Second read sees the migrated record.
	again, ok, err := Migrate(ctx, store)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, rec.Token, again.Token)
}

func TestMigrate_LegacyWithoutUserIsDiscarded(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, repository.LegacyTokenKey, "orphan"))

	_, ok, err := Migrate(ctx, store)
	require.NoError(t, err)
	assert.False(t, ok)
	_, found, _ := store.Get(ctx, repository.LegacyTokenKey)
	assert.False(t, found)
}

func TestMigrate_FutureVersionErrors(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, repository.SessionKey, `{"version": 7, "token": "t", "user": {"id": "u"}}`))

	c := New(backend.New(""), store, testLogger())
	ok, err := c.Restore(ctx)
	assert.False(t, ok)
	assert.True(t, errors.Is(err, ErrUnsupportedVersion))
	_, signedIn := c.Current()
	assert.False(t, signedIn)
}

func TestRestore_ExpiredTokenDiscarded(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
	}).SignedString([]byte("irrelevant-on-the-client"))
	require.NoError(t, err)

	raw, _ := json.Marshal(repository.PersistedSession{Version: 2, Token: tok, User: model.Session{ID: "u1"}})
	require.NoError(t, store.Set(ctx, repository.SessionKey, string(raw)))

	c := New(backend.New(""), store, testLogger(), WithClock(func() time.Time { return now }))
	ok, err := c.Restore(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	_, found, _ := store.Get(ctx, repository.SessionKey)
	assert.False(t, found)
}

func TestTokenExpired(t *testing.T) {
	now := time.Now()
	assert.False(t, tokenExpired("not-a-jwt", now))

	live, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString([]byte("k"))
	assert.False(t, tokenExpired(live, now))
	assert.True(t, tokenExpired(live, now.Add(2*time.Hour)))
}
