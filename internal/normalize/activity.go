package normalize

import (
	"strconv"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/sakif/movi/internal/jsonval"
	"github.com/sakif/movi/internal/model"
)

// DefaultActivityMessage is shown when an entry carries no text.
const DefaultActivityMessage = "Activity"

// LocalIDPrefix marks ids generated on the client. Backend ids are hex or
// xid strings and never contain a dash, so the two spaces cannot collide.
const LocalIDPrefix = "local-"

// LocalID returns a fresh client-side id in the form local-<nanoid>.
func LocalID() string {
	id, err := gonanoid.New()
	if err != nil {
		return LocalIDPrefix + strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return LocalIDPrefix + id
}

// Activity normalizes one activity-log entry.
//
//	id        → id, _id (string or {$oid}), else a local id (Local = true)
//	message   → activity, message, else DefaultActivityMessage
//	highlight → meta.title, meta.name, "Movie #<movieId>", "Book #<bookId>"
//	chips     → rating, status, movie id, book id; deduplicated, first seen wins
func Activity(v jsonval.Value) model.ActivityFeedItem {
	meta := v.Get("meta")
	movieID := idOf(meta.Get("movieId"))
	bookID := idOf(meta.Get("bookId"))

	item := model.ActivityFeedItem{
		ID:        firstID(v, "id", "_id"),
		Message:   firstText(v, "activity", "message"),
		Highlight: firstText(meta, "title", "name"),
		MovieID:   movieID,
		BookID:    bookID,
		ImageURL:  optString(firstString(meta, "coverUrl", "posterUrl", "imageUrl")),
	}
	if item.ID == "" {
		item.ID = LocalID()
		item.Local = true
	}
	if item.Message == "" {
		item.Message = DefaultActivityMessage
	}
	if item.Highlight == "" {
		switch {
		case movieID != "":
			item.Highlight = "Movie #" + movieID
		case bookID != "":
			item.Highlight = "Book #" + bookID
		}
	}

	var chips chipSet
	if r, ok := meta.Get("rating").Float(); ok {
		chips.add("Rated " + strconv.FormatFloat(r, 'f', -1, 64) + "/10")
	}
	chips.add(meta.Get("status").TrimmedText())
	if movieID != "" {
		chips.add("Movie #" + movieID)
	}
	if bookID != "" {
		chips.add("Book #" + bookID)
	}
	item.Chips = chips.list()

	for _, key := range []string{"createdAt", "timestamp", "date"} {
		if ts := Timestamp(v.Get(key)); !ts.IsZero() {
			item.Timestamp = ts
			break
		}
	}
	return item
}

// chipSet keeps insertion order and drops blanks and repeats.
type chipSet struct {
	seen  map[string]struct{}
	order []string
}

func (c *chipSet) add(s string) {
	if s == "" {
		return
	}
	if c.seen == nil {
		c.seen = make(map[string]struct{})
	}
	if _, dup := c.seen[s]; dup {
		return
	}
	c.seen[s] = struct{}{}
	c.order = append(c.order, s)
}

func (c *chipSet) list() []string {
	if c.order == nil {
		return []string{}
	}
	return c.order
}
