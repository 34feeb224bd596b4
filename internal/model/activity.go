package model

import "time"

// ActivityFeedItem is one row of the activity feed.
type ActivityFeedItem struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Highlight string    `json:"highlight,omitempty"`
	Chips     []string  `json:"chips"`
	Timestamp time.Time `json:"timestamp"` // zero when the upstream value was unreadable
	MovieID   string    `json:"movieId,omitempty"`
	BookID    string    `json:"bookId,omitempty"`
	ImageURL  *string   `json:"imageUrl,omitempty"`

	// Local is set when the upstream omitted an id and ID was generated on
	// the client. Such ids change on every load.
	Local bool `json:"-"`
}
