package normalize

import (
	"strings"

	"github.com/sakif/movi/internal/jsonval"
	"github.com/sakif/movi/internal/model"
)

// PosterBase is the TMDB image prefix poster paths are appended to.
const PosterBase = "https://image.tmdb.org/t/p/w342"

// PosterURL builds the poster URL for a TMDB poster_path fragment.
// An empty fragment yields nil rather than a dangling base URL.
func PosterURL(path string) *string {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	url := PosterBase + path
	return &url
}

// Movie normalizes a TMDB-shaped movie (search result or detail).
//
//	id       → textual id
//	title    → title, then original_title
//	year     → first four characters of release_date when they are digits
//	imageUrl → poster base + poster_path, nil when poster_path is absent
//
// Detail payloads additionally yield the director (credits.crew), the
// runtime and the vote average.
func Movie(v jsonval.Value) model.LibraryEntry {
	e := model.LibraryEntry{
		Kind:  model.KindMovie,
		ID:    idOf(v.Get("id")),
		Title: firstText(v, "title", "original_title"),
		Year:  leadingYear(v.Get("release_date").TrimmedText()),
	}

	if p, ok := v.Get("poster_path").Str(); ok {
		e.ImageURL = PosterURL(p)
	}

	for _, member := range v.Path("credits", "crew").Array() {
		if member.Get("job").Text() == "Director" {
			e.Creator = member.Get("name").TrimmedText()
			break
		}
	}

	e.Extent = optPositiveInt(v.Get("runtime"))
	e.Rating = optFloat(v.Get("vote_average"))
	return e
}

// MovieHit normalizes an item of the proxy's simple search payload
// ({id, title, year, posterUrl, ...}), where the poster URL is already
// absolute.
func MovieHit(v jsonval.Value) model.LibraryEntry {
	year := v.Get("year").TrimmedText()
	if year == "" {
		year = leadingYear(v.Get("release_date").TrimmedText())
	}
	return model.LibraryEntry{
		Kind:     model.KindMovie,
		ID:       idOf(v.Get("id")),
		Title:    firstText(v, "title", "original_title"),
		Year:     year,
		ImageURL: optString(firstString(v, "posterUrl")),
	}
}

func leadingYear(date string) string {
	if len(date) < 4 {
		return ""
	}
	for _, r := range date[:4] {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return date[:4]
}
