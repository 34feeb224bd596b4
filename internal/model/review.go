package model

import "time"

// Review is a user's review of a movie or book, with enough of the item
// attached to render it without another lookup.
type Review struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	ItemID     string    `json:"itemId"`
	ItemTitle  string    `json:"itemTitle"`
	ItemAuthor string    `json:"itemAuthor,omitempty"`
	ItemYear   *int      `json:"itemYear,omitempty"`
	ItemImage  *string   `json:"itemImage,omitempty"`
	Rating     *float64  `json:"rating,omitempty"`
	Title      string    `json:"title,omitempty"`
	Body       string    `json:"body,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
