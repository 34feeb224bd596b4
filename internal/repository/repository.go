// Package repository declares the storage interfaces. The backend services
// depend on these, not on SQLite, so their tests can run against in-memory
// fakes. The sqlite subpackage is the only implementation.
package repository

import (
	"context"
	"time"

	"github.com/sakif/movi/internal/model"
)

// ListOptions bounds a listing query. Zero Limit means the repository's
// default.
type ListOptions struct {
	Limit  int
	Offset int
}

// UserRepository stores accounts.
//
// CreateUser returns apperror.ErrEmailExists or apperror.ErrUsernameExists
// when the matching unique column is taken.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]model.User, error)
	SearchUsers(ctx context.Context, query, excludeID string, opts ListOptions) ([]model.User, error)
	UpdateBio(ctx context.Context, id, bio string) (*model.User, error)
}

// LibraryRepository stores list membership. Lists are returned newest
// first.
type LibraryRepository interface {
	// AddItem returns apperror.ErrConflict when the item is already listed.
	AddItem(ctx context.Context, userID string, list model.List, itemID string) error
	// CompleteItem adds itemID to done and removes it from backlog
	// atomically. ErrConflict when it is already on done.
	CompleteItem(ctx context.Context, userID string, done, backlog model.List, itemID string) error
	// RemoveItem reports whether a row was deleted.
	RemoveItem(ctx context.Context, userID string, list model.List, itemID string) (bool, error)
	ListItems(ctx context.Context, userID string, list model.List) ([]model.LibraryItem, error)
}

// NetworkRepository stores the following and followers collections. The
// two sides are independent rows.
type NetworkRepository interface {
	// AddEdge returns apperror.ErrConflict when the edge already exists.
	AddEdge(ctx context.Context, userID string, side model.Relationship, otherID string) error
	RemoveEdge(ctx context.Context, userID string, side model.Relationship, otherID string) (bool, error)
	ListEdges(ctx context.Context, userID string, side model.Relationship) ([]model.NetworkEdge, error)
}

// ReviewRepository stores reviews.
type ReviewRepository interface {
	CreateReview(ctx context.Context, review *model.ReviewRecord) error
	GetReview(ctx context.Context, id string) (*model.ReviewRecord, error)
	ListReviews(ctx context.Context, userID string) ([]model.ReviewRecord, error)
	DeleteReview(ctx context.Context, id string) error
}

// ActivityRepository stores the per-user activity log.
type ActivityRepository interface {
	AppendActivity(ctx context.Context, rec *model.ActivityRecord) error
	ListActivities(ctx context.Context, userID string, opts ListOptions) ([]model.ActivityRecord, error)
	CountActivities(ctx context.Context, userID string) (int, error)
	// ListActivitiesForUsers merges the logs of several users, newest
	// first.
	ListActivitiesForUsers(ctx context.Context, userIDs []string, opts ListOptions) ([]model.ActivityRecord, error)
	// DeleteActivitiesForReview removes the entries whose meta.reviewId is
	// reviewID and returns how many went.
	DeleteActivitiesForReview(ctx context.Context, userID, reviewID string) (int64, error)
}

// =========================================================================
// CLIENT SESSION STORAGE
// =========================================================================

// SessionVersion is the current PersistedSession layout.
const SessionVersion = 2

// Keys in the client key-value store.
const (
	SessionKey = "movi.session"

	// Version 1 kept the token and the raw user blob under two loose keys.
	LegacyTokenKey = "token"
	LegacyUserKey  = "user"
)

// PersistedSession is the signed-in state written to the client's local
// store.
type PersistedSession struct {
	Version int           `json:"version"`
	Token   string        `json:"token"`
	User    model.Session `json:"user"`
	SavedAt time.Time     `json:"savedAt"`
}

// SessionStore is a small durable key-value store on the client. Writes
// are serialized by the implementation.
type SessionStore interface {
	// Get returns ok == false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}
