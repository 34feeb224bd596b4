package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sakif/movi/internal/repository"
)

var _ repository.SessionStore = (*DB)(nil)

// Get reads one key of the client store.
func (db *DB) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := db.conn.GetContext(ctx, &value, `SELECT value FROM session_kv WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sqlite: reading %q: %w", key, err)
	}
	return value, true, nil
}

// Set writes one key, replacing any previous value.
func (db *DB) Set(ctx context.Context, key, value string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO session_kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("sqlite: writing %q: %w", key, err)
	}
	return nil
}

// Delete removes keys; absent keys are ignored.
func (db *DB) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM session_kv WHERE key IN (?)`, keys)
	if err != nil {
		return fmt.Errorf("sqlite: building delete: %w", err)
	}
	if _, err := db.conn.ExecContext(ctx, db.conn.Rebind(query), args...); err != nil {
		return fmt.Errorf("sqlite: deleting %v: %w", keys, err)
	}
	return nil
}
