// Package sqlite implements the repository interfaces on SQLite.
//
// WHY modernc.org/sqlite?
// It is a pure Go translation of SQLite: no C compiler, and cross-compiling
// the backend and the client stays a plain `go build`.
//
// WHY sqlx ON TOP OF database/sql?
// sqlx keeps the database/sql model (pool, contexts, placeholders) and adds
// struct scanning through `db:"..."` tags, so a SELECT into []model.User
// is one GetContext/SelectContext call instead of a Scan per column.
//
// The same schema backs two programs: the backend uses the users, library,
// network, reviews and activities tables; the client uses only session_kv.
// Running every migration in both is harmless and keeps New single-purpose.
package sqlite

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps an sqlx pool and implements every repository interface.
type DB struct {
	conn *sqlx.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
//
//   - "data/movi.db" → file-based database
//   - ":memory:"     → in-memory database, used by tests
func New(dbPath string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// One connection: SQLite serializes writers anyway, and every
	// connection to ":memory:" would otherwise see its own empty database.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}
	return db, nil
}

// Close closes the pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. Every statement is idempotent.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			username      TEXT NOT NULL UNIQUE,
			first_name    TEXT NOT NULL DEFAULT '',
			last_name     TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// Profile columns arrived after the first release.
	if err := db.addColumnIfNotExists("users", "bio", "TEXT NOT NULL DEFAULT ''"); err != nil {
		return fmt.Errorf("adding bio to users: %w", err)
	}
	if err := db.addColumnIfNotExists("users", "avatar_url", "TEXT NOT NULL DEFAULT ''"); err != nil {
		return fmt.Errorf("adding avatar_url to users: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS library_items (
			user_id  TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			list     TEXT NOT NULL,
			item_id  TEXT NOT NULL,
			added_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, list, item_id)
		);

		CREATE TABLE IF NOT EXISTS network (
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			side       TEXT NOT NULL,
			other_id   TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, side, other_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating library and network tables: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS reviews (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			kind       TEXT NOT NULL,
			item_id    TEXT NOT NULL,
			rating     REAL NOT NULL,
			title      TEXT NOT NULL DEFAULT '',
			body       TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_reviews_user_id ON reviews(user_id, created_at);

		CREATE TABLE IF NOT EXISTS activities (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			activity   TEXT NOT NULL,
			meta       TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_activities_user_id ON activities(user_id, created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating reviews and activities tables: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS session_kv (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating session_kv table: %w", err)
	}

	return nil
}

// addColumnIfNotExists adds a column only when pragma_table_info does not
// list it, which makes ALTER TABLE migrations re-runnable.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.Get(&count,
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}

// uniqueViolation reports whether err is a UNIQUE or PRIMARY KEY failure
// on column (as "table.column"); an empty column matches any.
func uniqueViolation(err error, column string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") {
		return false
	}
	return column == "" || strings.Contains(msg, column)
}
