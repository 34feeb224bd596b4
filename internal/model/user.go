package model

import (
	"strings"
	"time"
)

// User is a backend account row.
//
// WHY FirstName/LastName AND NOT Name?
// The register payload sends {"name": {"first": ..., "last": ...}} and the
// profile screen edits them separately, so the table keeps both halves.
// DisplayName joins them back for the network lists and search results.
//
// PasswordHash is a bcrypt hash and is never serialised (json:"-").
type User struct {
	ID           string    `json:"id"        db:"id"`
	Email        string    `json:"email"     db:"email"`
	Username     string    `json:"username"  db:"username"`
	FirstName    string    `json:"-"         db:"first_name"`
	LastName     string    `json:"-"         db:"last_name"`
	Bio          string    `json:"bio"       db:"bio"`
	AvatarURL    string    `json:"avatarUrl" db:"avatar_url"`
	PasswordHash string    `json:"-"         db:"password_hash"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// DisplayName is "First Last", falling back to the username.
func (u User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// LibraryItem is one membership row of a library list.
type LibraryItem struct {
	UserID  string    `db:"user_id"`
	List    List      `db:"list"`
	ItemID  string    `db:"item_id"`
	AddedAt time.Time `db:"added_at"`
}

// NetworkEdge is one row of a user's following or followers collection.
// The two collections are stored independently: A following B and B
// having A as a follower are separate rows.
type NetworkEdge struct {
	UserID    string       `db:"user_id"`
	Side      Relationship `db:"side"`
	OtherID   string       `db:"other_id"`
	CreatedAt time.Time    `db:"created_at"`
}

// ReviewRecord is a stored review.
type ReviewRecord struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Kind      Kind      `db:"kind"`
	ItemID    string    `db:"item_id"`
	Rating    float64   `db:"rating"`
	Title     string    `db:"title"`
	Body      string    `db:"body"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// ActivityRecord is a stored activity-log entry. Meta is a JSON object
// kept as text; its fields are loosely typed on purpose (the feed
// normalizer absorbs the variation).
type ActivityRecord struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Activity  string    `db:"activity"`
	Meta      string    `db:"meta"`
	CreatedAt time.Time `db:"created_at"`
}
