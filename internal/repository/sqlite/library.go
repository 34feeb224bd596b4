package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/sakif/movi/internal/apperror"
	"github.com/sakif/movi/internal/model"
	"github.com/sakif/movi/internal/repository"
)

var (
	_ repository.LibraryRepository = (*DB)(nil)
	_ repository.NetworkRepository = (*DB)(nil)
)

// AddItem lists itemID under list for userID.
func (db *DB) AddItem(ctx context.Context, userID string, list model.List, itemID string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO library_items (user_id, list, item_id, added_at) VALUES (?, ?, ?, ?)`,
		userID, list, itemID, time.Now().UTC(),
	)
	if uniqueViolation(err, "") {
		return apperror.Conflict(string(list)+" item", itemID)
	}
	if err != nil {
		return fmt.Errorf("sqlite: adding %s to %s of %s: %w", itemID, list, userID, err)
	}
	return nil
}

// CompleteItem lists itemID under done and takes it off backlog in one
// transaction. A duplicate on done leaves backlog untouched.
func (db *DB) CompleteItem(ctx context.Context, userID string, done, backlog model.List, itemID string) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning %s transaction: %w", done, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO library_items (user_id, list, item_id, added_at) VALUES (?, ?, ?, ?)`,
		userID, done, itemID, time.Now().UTC(),
	)
	if uniqueViolation(err, "") {
		return apperror.Conflict(string(done)+" item", itemID)
	}
	if err != nil {
		return fmt.Errorf("sqlite: adding %s to %s of %s: %w", itemID, done, userID, err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM library_items WHERE user_id = ? AND list = ? AND item_id = ?`,
		userID, backlog, itemID,
	); err != nil {
		return fmt.Errorf("sqlite: removing %s from %s of %s: %w", itemID, backlog, userID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing %s: %w", done, err)
	}
	return nil
}

// RemoveItem deletes the membership row, reporting whether one existed.
func (db *DB) RemoveItem(ctx context.Context, userID string, list model.List, itemID string) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM library_items WHERE user_id = ? AND list = ? AND item_id = ?`,
		userID, list, itemID,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: removing %s from %s of %s: %w", itemID, list, userID, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListItems returns the list newest first. Rows added in the same instant
// keep reverse insertion order.
func (db *DB) ListItems(ctx context.Context, userID string, list model.List) ([]model.LibraryItem, error) {
	items := []model.LibraryItem{}
	err := db.conn.SelectContext(ctx, &items,
		`SELECT user_id, list, item_id, added_at FROM library_items
		 WHERE user_id = ? AND list = ?
		 ORDER BY added_at DESC, rowid DESC`,
		userID, list,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing %s of %s: %w", list, userID, err)
	}
	return items, nil
}

// AddEdge records otherID in userID's side collection.
func (db *DB) AddEdge(ctx context.Context, userID string, side model.Relationship, otherID string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO network (user_id, side, other_id, created_at) VALUES (?, ?, ?, ?)`,
		userID, side, otherID, time.Now().UTC(),
	)
	if uniqueViolation(err, "") {
		return apperror.Conflict(string(side), otherID)
	}
	if err != nil {
		return fmt.Errorf("sqlite: adding %s edge %s -> %s: %w", side, userID, otherID, err)
	}
	return nil
}

// RemoveEdge deletes one edge, reporting whether it existed.
func (db *DB) RemoveEdge(ctx context.Context, userID string, side model.Relationship, otherID string) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM network WHERE user_id = ? AND side = ? AND other_id = ?`,
		userID, side, otherID,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: removing %s edge %s -> %s: %w", side, userID, otherID, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListEdges returns one side of the network in the order it was built.
func (db *DB) ListEdges(ctx context.Context, userID string, side model.Relationship) ([]model.NetworkEdge, error) {
	edges := []model.NetworkEdge{}
	err := db.conn.SelectContext(ctx, &edges,
		`SELECT user_id, side, other_id, created_at FROM network
		 WHERE user_id = ? AND side = ?
		 ORDER BY created_at, rowid`,
		userID, side,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing %s of %s: %w", side, userID, err)
	}
	return edges, nil
}
