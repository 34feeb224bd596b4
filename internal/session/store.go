package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/movi/internal/jsonval"
	"github.com/sakif/movi/internal/normalize"
	"github.com/sakif/movi/internal/repository"
)

// ErrUnsupportedVersion is returned for a persisted record newer than this
// build understands.
var ErrUnsupportedVersion = errors.New("session: unsupported persisted version")

// save writes rec synchronously, superseding any queued profile write.
func (c *Client) save(ctx context.Context, rec repository.PersistedSession) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.write(ctx, rec); err != nil {
		return err
	}
	c.writeSeq++
	c.lastSeq = c.writeSeq
	return nil
}

// write encodes and stores rec. Callers hold writeMu.
func (c *Client) write(ctx context.Context, rec repository.PersistedSession) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("session: encoding record: %w", err)
	}
	if err := c.store.Set(ctx, repository.SessionKey, string(raw)); err != nil {
		return fmt.Errorf("session: writing record: %w", err)
	}
	return nil
}

// Restore loads the persisted session, migrating older layouts, and
// installs it. It reports whether a session was restored.
//
// A record whose token has already expired is discarded: the backend
// would reject it on the first request anyway.
func (c *Client) Restore(ctx context.Context) (bool, error) {
	rec, ok, err := Migrate(ctx, c.store)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	if tokenExpired(rec.Token, c.now()) {
		c.logger.Info("persisted session expired", slog.String("user_id", rec.User.ID))
		return false, c.Logout(ctx)
	}

	c.install(rec.Token, rec.User)
	c.logger.Info("session restored", slog.String("user_id", rec.User.ID))
	return true, nil
}

// Migrate reads the persisted session, upgrading it to the current
// version in place.
//
//   - current record: returned as is
//   - newer record: ErrUnsupportedVersion, nothing changed
//   - legacy v1 keys (loose "token" and "user" blobs): the user blob is
//     normalized, written back as a current record, and the legacy keys
//     are deleted
//
// ok is false when there is no usable session.
func Migrate(ctx context.Context, store repository.SessionStore) (repository.PersistedSession, bool, error) {
	raw, found, err := store.Get(ctx, repository.SessionKey)
	if err != nil {
		return repository.PersistedSession{}, false, fmt.Errorf("session: reading record: %w", err)
	}
	if found {
		var rec repository.PersistedSession
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return repository.PersistedSession{}, false, fmt.Errorf("session: decoding record: %w", err)
		}
		if rec.Version != repository.SessionVersion {
			return repository.PersistedSession{}, false, fmt.Errorf("%w: %d", ErrUnsupportedVersion, rec.Version)
		}
		if rec.Token == "" || rec.User.IsZero() {
			return repository.PersistedSession{}, false, nil
		}
		return rec, true, nil
	}

	return migrateLegacy(ctx, store)
}

func migrateLegacy(ctx context.Context, store repository.SessionStore) (repository.PersistedSession, bool, error) {
	token, hasToken, err := store.Get(ctx, repository.LegacyTokenKey)
	if err != nil {
		return repository.PersistedSession{}, false, fmt.Errorf("session: reading legacy token: %w", err)
	}
	userRaw, hasUser, err := store.Get(ctx, repository.LegacyUserKey)
	if err != nil {
		return repository.PersistedSession{}, false, fmt.Errorf("session: reading legacy user: %w", err)
	}
	if !hasToken && !hasUser {
		return repository.PersistedSession{}, false, nil
	}

	// Older builds sometimes stored the token JSON-quoted.
	if v, err := jsonval.Parse([]byte(token)); err == nil && v.Kind() == jsonval.String {
		token = v.Text()
	}

	var user jsonval.Value
	if v, err := jsonval.Parse([]byte(userRaw)); err == nil {
		user = v
	}
	rec := repository.PersistedSession{
		Version: repository.SessionVersion,
		Token:   token,
		User:    normalize.Session(user),
		SavedAt: time.Now().UTC(),
	}

	ok := rec.Token != "" && !rec.User.IsZero()
	if ok {
		encoded, err := json.Marshal(rec)
		if err != nil {
			return repository.PersistedSession{}, false, fmt.Errorf("session: encoding migrated record: %w", err)
		}
		if err := store.Set(ctx, repository.SessionKey, string(encoded)); err != nil {
			return repository.PersistedSession{}, false, fmt.Errorf("session: writing migrated record: %w", err)
		}
	}
	if err := store.Delete(ctx, repository.LegacyTokenKey, repository.LegacyUserKey); err != nil {
		return repository.PersistedSession{}, false, fmt.Errorf("session: deleting legacy keys: %w", err)
	}
	if !ok {
		return repository.PersistedSession{}, false, nil
	}
	return rec, true, nil
}

// tokenExpired reads the exp claim without verifying the signature; the
// client has no key and only wants to skip a dead session. Tokens that
// are not JWTs, or carry no exp, never expire here.
func tokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !now.Before(exp.Time)
}
