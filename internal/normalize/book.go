package normalize

import (
	"regexp"
	"strings"

	"github.com/sakif/movi/internal/jsonval"
	"github.com/sakif/movi/internal/model"
)

// CoverBase is the OpenLibrary covers prefix; URLs are CoverBase + id + "-M.jpg".
const CoverBase = "https://covers.openlibrary.org/b/id/"

// CoverURL builds the medium cover URL for an OpenLibrary cover id.
func CoverURL(id string) *string {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	url := CoverBase + id + "-M.jpg"
	return &url
}

var yearPattern = regexp.MustCompile(`\d{4}`)

// bookYearFields are scanned in order; the first 4-digit run found wins.
var bookYearFields = []string{"first_publish_year", "first_publish_date", "publish_date", "created"}

// Book normalizes an OpenLibrary work (search doc or works JSON).
//
//	id       → trailing segment of key ("/works/OL1W" → "OL1W"), else id
//	creator  → authors (objects joined by name, or strings), else author_name
//	year     → first 4-digit run of first_publish_year, first_publish_date,
//	           publish_date, created (number, string or {value} wrapper)
//	imageUrl → covers[0], else coverUrl, else cover_i, else nil
//	extent   → number_of_pages, else number_of_pages_median
func Book(v jsonval.Value) model.LibraryEntry {
	e := model.LibraryEntry{
		Kind:     model.KindBook,
		ID:       BookID(v),
		Title:    firstText(v, "title"),
		Creator:  bookAuthors(v),
		Year:     bookYear(v),
		ImageURL: bookCover(v),
	}

	e.Extent = optPositiveInt(v.Get("number_of_pages"))
	if e.Extent == nil {
		e.Extent = optPositiveInt(v.Get("number_of_pages_median"))
	}
	return e
}

// BookID derives the book id from key, falling back to id.
func BookID(v jsonval.Value) string {
	if key := trailingSegment(v.Get("key").TrimmedText()); key != "" {
		return key
	}
	return trailingSegment(idOf(v.Get("id")))
}

// BookHit normalizes an item of the proxy's book search payload
// ({id: "/works/OL1W", title, authors: [...], coverUrl}).
func BookHit(v jsonval.Value) model.LibraryEntry {
	return model.LibraryEntry{
		Kind:     model.KindBook,
		ID:       BookID(v),
		Title:    firstText(v, "title"),
		Creator:  bookAuthors(v),
		Year:     bookYear(v),
		ImageURL: bookCover(v),
	}
}

func trailingSegment(s string) string {
	s = strings.TrimRight(strings.TrimSpace(s), "/")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}

func bookAuthors(v jsonval.Value) string {
	if names := authorNames(v.Get("authors")); len(names) > 0 {
		return strings.Join(names, ", ")
	}
	if names := authorNames(v.Get("author_name")); len(names) > 0 {
		return strings.Join(names, ", ")
	}
	return ""
}

// authorNames reads a list of author objects ({name}) or plain strings.
// A bare string is treated as a one-element list.
func authorNames(v jsonval.Value) []string {
	if v.Kind() == jsonval.String {
		if s := v.TrimmedText(); s != "" {
			return []string{s}
		}
		return nil
	}
	var names []string
	for _, a := range v.Array() {
		var n string
		switch a.Kind() {
		case jsonval.String:
			n = a.TrimmedText()
		case jsonval.Object:
			n = nameOf(a.Get("name"))
		}
		if n != "" {
			names = append(names, n)
		}
	}
	return names
}

func bookYear(v jsonval.Value) string {
	for _, field := range bookYearFields {
		if y := Year(v.Get(field)); y != "" {
			return y
		}
	}
	return ""
}

// Year finds the first 4-digit run in a number, a string, or a
// {"value": ...} wrapper around either.
func Year(v jsonval.Value) string {
	if v.Kind() == jsonval.Object {
		v = v.Get("value")
	}
	return yearPattern.FindString(v.Text())
}

func bookCover(v jsonval.Value) *string {
	if first := v.Get("covers").Index(0); !first.IsNull() {
		if url := CoverURL(first.Text()); url != nil {
			return url
		}
	}
	if url := firstString(v, "coverUrl"); url != "" {
		return &url
	}
	return CoverURL(v.Get("cover_i").Text())
}
