package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/xid"

	"github.com/sakif/movi/internal/apperror"
	"github.com/sakif/movi/internal/model"
	"github.com/sakif/movi/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, email, username, first_name, last_name, bio, avatar_url,
	password_hash, created_at, updated_at`

// defaultSearchLimit caps SearchUsers when opts.Limit is zero.
const defaultSearchLimit = 20

// CreateUser inserts a new account. The id and timestamps are set on user.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.NamedExecContext(ctx,
		`INSERT INTO users (id, email, username, first_name, last_name, bio, avatar_url,
			password_hash, created_at, updated_at)
		 VALUES (:id, :email, :username, :first_name, :last_name, :bio, :avatar_url,
			:password_hash, :created_at, :updated_at)`,
		user,
	)
	switch {
	case uniqueViolation(err, "users.email"):
		return apperror.EmailExists(user.Email)
	case uniqueViolation(err, "users.username"):
		return apperror.UsernameExists(user.Username)
	case err != nil:
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Email, err)
	}
	return nil
}

// GetUserByID returns apperror.ErrNotFound when no row matches.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := db.conn.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return &u, nil
}

// GetUserByEmail matches the lower-cased email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var u model.User
	err := db.conn.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return &u, nil
}

// GetUsersByIDs loads several users at once. Missing ids are absent from
// the map.
func (db *DB) GetUsersByIDs(ctx context.Context, ids []string) (map[string]model.User, error) {
	out := make(map[string]model.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`SELECT `+userColumns+` FROM users WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("sqlite: building user batch query: %w", err)
	}
	var users []model.User
	if err := db.conn.SelectContext(ctx, &users, db.conn.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("sqlite: loading %d users: %w", len(ids), err)
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

// SearchUsers matches query as a case-insensitive substring of the
// username or either name, excluding excludeID.
func (db *DB) SearchUsers(ctx context.Context, query, excludeID string, opts repository.ListOptions) ([]model.User, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(query))) + "%"

	users := []model.User{}
	err := db.conn.SelectContext(ctx, &users,
		`SELECT `+userColumns+` FROM users
		 WHERE id != ?
		   AND (lower(username) LIKE ? ESCAPE '\'
		     OR lower(first_name) LIKE ? ESCAPE '\'
		     OR lower(last_name) LIKE ? ESCAPE '\'
		     OR lower(first_name || ' ' || last_name) LIKE ? ESCAPE '\')
		 ORDER BY username
		 LIMIT ? OFFSET ?`,
		excludeID, pattern, pattern, pattern, pattern, limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: searching users: %w", err)
	}
	return users, nil
}

// UpdateBio sets the bio and returns the updated row.
func (db *DB) UpdateBio(ctx context.Context, id, bio string) (*model.User, error) {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET bio = ?, updated_at = ? WHERE id = ?`,
		bio, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: updating bio of %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperror.NotFound("user", id)
	}
	return db.GetUserByID(ctx, id)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
