package normalize

import (
	"strings"

	"github.com/sakif/movi/internal/jsonval"
	"github.com/sakif/movi/internal/model"
)

// Review normalizes a backend review. Reviews without an id are dropped
// (ok == false) rather than given a made-up one: they could never be
// deleted.
func Review(v jsonval.Value) (model.Review, bool) {
	id := firstID(v, "id", "_id")
	if id == "" {
		return model.Review{}, false
	}

	r := model.Review{
		ID:         id,
		Kind:       reviewKind(v),
		ItemID:     firstID(v, "itemId", "movieId", "bookId"),
		ItemTitle:  firstText(v, "itemTitle"),
		ItemAuthor: firstText(v, "itemAuthor"),
		ItemImage:  optString(firstString(v, "itemImage", "itemPoster", "itemCover")),
		Rating:     optFloat(v.Get("rating")),
		Title:      firstText(v, "title"),
		Body:       firstText(v, "body"),
		CreatedAt:  Timestamp(v.Get("createdAt")),
	}

	if f, ok := v.Get("itemYear").Float(); ok {
		year := int(f)
		r.ItemYear = &year
	}
	return r, true
}

// Reviews normalizes a list, dropping invalid entries.
func Reviews(items []jsonval.Value) []model.Review {
	out := make([]model.Review, 0, len(items))
	for _, it := range items {
		if r, ok := Review(it); ok {
			out = append(out, r)
		}
	}
	return out
}

func reviewKind(v jsonval.Value) model.Kind {
	if k, err := model.ParseKind(strings.ToLower(v.Get("kind").TrimmedText())); err == nil {
		return k
	}
	if v.Has("bookId") || v.Has("itemCover") || v.Has("itemAuthor") {
		return model.KindBook
	}
	return model.KindMovie
}
