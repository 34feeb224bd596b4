package model

import "fmt"

// Kind tags a library item as a movie or a book.
type Kind string

const (
	KindMovie Kind = "movie"
	KindBook  Kind = "book"
)

// ParseKind accepts "movie" or "book".
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindMovie, KindBook:
		return Kind(s), nil
	}
	return "", fmt.Errorf("model: unknown kind %q", s)
}

// List names one of the four library collections.
type List string

const (
	ListWatched List = "watched" // movies seen
	ListLater   List = "later"   // movies to watch
	ListRead    List = "read"    // books read
	ListToRead  List = "toread"  // books to read
)

// Lists is every list in display order.
var Lists = []List{ListWatched, ListLater, ListRead, ListToRead}

// ParseList accepts one of the four list names.
func ParseList(s string) (List, error) {
	for _, l := range Lists {
		if string(l) == s {
			return l, nil
		}
	}
	return "", fmt.Errorf("model: unknown list %q", s)
}

// Kind is the item kind a list holds.
func (l List) Kind() Kind {
	if l == ListRead || l == ListToRead {
		return KindBook
	}
	return KindMovie
}

// Promoted is the "done" list an item moves to when marked finished.
// Only the later/to-read lists can be promoted.
func (l List) Promoted() (List, bool) {
	switch l {
	case ListLater:
		return ListWatched, true
	case ListToRead:
		return ListRead, true
	}
	return "", false
}

// Backlog is the inverse of Promoted: the list an item leaves when it is
// added to a done list.
func (l List) Backlog() (List, bool) {
	switch l {
	case ListWatched:
		return ListLater, true
	case ListRead:
		return ListToRead, true
	}
	return "", false
}

// LibraryEntry is a movie or book as shown in a library list.
type LibraryEntry struct {
	Kind     Kind     `json:"kind"`
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Year     string   `json:"year,omitempty"`
	Creator  string   `json:"creator,omitempty"` // director or author
	Extent   *int     `json:"extent,omitempty"`  // runtime minutes or pages
	ImageURL *string  `json:"imageUrl"`
	Rating   *float64 `json:"rating,omitempty"`
}
