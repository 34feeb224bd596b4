package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/xid"

	"github.com/sakif/movi/internal/apperror"
	"github.com/sakif/movi/internal/model"
	"github.com/sakif/movi/internal/repository"
)

var (
	_ repository.ReviewRepository   = (*DB)(nil)
	_ repository.ActivityRepository = (*DB)(nil)
)

// defaultActivityLimit matches the activity route's default page.
const defaultActivityLimit = 50

// CreateReview inserts a review, assigning its id and timestamps.
func (db *DB) CreateReview(ctx context.Context, review *model.ReviewRecord) error {
	now := time.Now().UTC()
	review.ID = xid.New().String()
	review.CreatedAt = now
	review.UpdatedAt = now

	_, err := db.conn.NamedExecContext(ctx,
		`INSERT INTO reviews (id, user_id, kind, item_id, rating, title, body, created_at, updated_at)
		 VALUES (:id, :user_id, :kind, :item_id, :rating, :title, :body, :created_at, :updated_at)`,
		review,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting review of %s %s: %w", review.Kind, review.ItemID, err)
	}
	return nil
}

// GetReview returns apperror.ErrNotFound when no row matches.
func (db *DB) GetReview(ctx context.Context, id string) (*model.ReviewRecord, error) {
	var r model.ReviewRecord
	err := db.conn.GetContext(ctx, &r,
		`SELECT id, user_id, kind, item_id, rating, title, body, created_at, updated_at
		 FROM reviews WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("review", id)
		}
		return nil, fmt.Errorf("sqlite: getting review %s: %w", id, err)
	}
	return &r, nil
}

// ListReviews returns a user's reviews newest first.
func (db *DB) ListReviews(ctx context.Context, userID string) ([]model.ReviewRecord, error) {
	reviews := []model.ReviewRecord{}
	err := db.conn.SelectContext(ctx, &reviews,
		`SELECT id, user_id, kind, item_id, rating, title, body, created_at, updated_at
		 FROM reviews WHERE user_id = ?
		 ORDER BY created_at DESC, rowid DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing reviews of %s: %w", userID, err)
	}
	return reviews, nil
}

// DeleteReview returns apperror.ErrNotFound when nothing was deleted.
func (db *DB) DeleteReview(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM reviews WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting review %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("review", id)
	}
	return nil
}

// AppendActivity stores one log entry. An empty Meta is stored as "{}".
func (db *DB) AppendActivity(ctx context.Context, rec *model.ActivityRecord) error {
	rec.ID = xid.New().String()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Meta == "" {
		rec.Meta = "{}"
	}
	_, err := db.conn.NamedExecContext(ctx,
		`INSERT INTO activities (id, user_id, activity, meta, created_at)
		 VALUES (:id, :user_id, :activity, :meta, :created_at)`,
		rec,
	)
	if err != nil {
		return fmt.Errorf("sqlite: appending activity for %s: %w", rec.UserID, err)
	}
	return nil
}

// ListActivities returns a user's log newest first.
func (db *DB) ListActivities(ctx context.Context, userID string, opts repository.ListOptions) ([]model.ActivityRecord, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	recs := []model.ActivityRecord{}
	err := db.conn.SelectContext(ctx, &recs,
		`SELECT id, user_id, activity, meta, created_at FROM activities
		 WHERE user_id = ?
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ? OFFSET ?`,
		userID, limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing activities of %s: %w", userID, err)
	}
	return recs, nil
}

// CountActivities returns the size of a user's log.
func (db *DB) CountActivities(ctx context.Context, userID string) (int, error) {
	var n int
	if err := db.conn.GetContext(ctx, &n, `SELECT COUNT(*) FROM activities WHERE user_id = ?`, userID); err != nil {
		return 0, fmt.Errorf("sqlite: counting activities of %s: %w", userID, err)
	}
	return n, nil
}

// ListActivitiesForUsers merges several users' logs newest first.
func (db *DB) ListActivitiesForUsers(ctx context.Context, userIDs []string, opts repository.ListOptions) ([]model.ActivityRecord, error) {
	recs := []model.ActivityRecord{}
	if len(userIDs) == 0 {
		return recs, nil
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	query, args, err := sqlx.In(
		`SELECT id, user_id, activity, meta, created_at FROM activities
		 WHERE user_id IN (?)
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ? OFFSET ?`,
		userIDs, limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: building activity batch query: %w", err)
	}
	if err := db.conn.SelectContext(ctx, &recs, db.conn.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("sqlite: listing activities of %d users: %w", len(userIDs), err)
	}
	return recs, nil
}

// DeleteActivitiesForReview removes the log entries pointing at reviewID.
func (db *DB) DeleteActivitiesForReview(ctx context.Context, userID, reviewID string) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM activities
		 WHERE user_id = ? AND json_extract(meta, '$.reviewId') = ?`,
		userID, reviewID,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: deleting activities of review %s: %w", reviewID, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
