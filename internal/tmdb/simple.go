package tmdb

import (
	"github.com/sakif/movi/internal/jsonval"
	"github.com/sakif/movi/internal/normalize"
)

// SimpleMovie is the trimmed, UI-friendly shape of one search result.
type SimpleMovie struct {
	ID          jsonval.Value `json:"id"` // kept as sent (a number)
	Title       string        `json:"title"`
	Year        string        `json:"year"`
	Overview    string        `json:"overview"`
	PosterURL   *string       `json:"posterUrl"`
	ReleaseDate *string       `json:"release_date"`
}

// SimpleSearch is the trimmed search payload.
type SimpleSearch struct {
	Query        string        `json:"query"`
	Page         int           `json:"page"`
	TotalPages   int           `json:"total_pages"`
	TotalResults int           `json:"total_results"`
	Items        []SimpleMovie `json:"items"`
}

// Simplify reshapes a raw /search/movie payload.
func Simplify(raw jsonval.Value, query string) SimpleSearch {
	out := SimpleSearch{
		Query:        query,
		Page:         intOr(raw.Get("page"), 1),
		TotalPages:   intOr(raw.Get("total_pages"), 1),
		TotalResults: intOr(raw.Get("total_results"), 0),
		Items:        []SimpleMovie{},
	}
	for _, r := range raw.Get("results").Array() {
		out.Items = append(out.Items, SimplifyMovie(r))
	}
	return out
}

// SimplifyMovie reshapes one movie. Year is the first four characters of
// release_date, whatever they are.
func SimplifyMovie(r jsonval.Value) SimpleMovie {
	title := r.Get("title").TrimmedText()
	if title == "" {
		title = r.Get("original_title").TrimmedText()
	}
	release, _ := r.Get("release_date").Str()

	m := SimpleMovie{
		ID:       r.Get("id"),
		Title:    title,
		Overview: r.Get("overview").Text(),
	}
	if len(release) >= 4 {
		m.Year = release[:4]
	} else {
		m.Year = release
	}
	if release != "" {
		m.ReleaseDate = &release
	}
	if p, ok := r.Get("poster_path").Str(); ok {
		m.PosterURL = normalize.PosterURL(p)
	}
	return m
}

func intOr(v jsonval.Value, def int) int {
	if n, ok := v.Int(); ok {
		return n
	}
	return def
}
