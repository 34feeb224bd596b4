package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/sakif/movi/internal/jsonval"
	"github.com/sakif/movi/internal/model"
	"github.com/sakif/movi/internal/normalize"
	"github.com/sakif/movi/internal/openlibrary"
	"github.com/sakif/movi/internal/tmdb"
)

// Catalog resolves item metadata for list responses, reviews and activity
// meta. The backend stores only ids.
type Catalog interface {
	Movie(ctx context.Context, id string) (jsonval.Value, error)
	Book(ctx context.Context, id string) (jsonval.Value, error)
}

// RemoteCatalog reads TMDB and OpenLibrary.
type RemoteCatalog struct {
	movies *tmdb.Client
	books  *openlibrary.Client
}

// NewRemoteCatalog wires the two metadata clients.
func NewRemoteCatalog(movies *tmdb.Client, books *openlibrary.Client) *RemoteCatalog {
	return &RemoteCatalog{movies: movies, books: books}
}

var _ Catalog = (*RemoteCatalog)(nil)

func (c *RemoteCatalog) Movie(ctx context.Context, id string) (jsonval.Value, error) {
	return c.movies.Movie(ctx, id)
}

func (c *RemoteCatalog) Book(ctx context.Context, id string) (jsonval.Value, error) {
	return c.books.WorkWithAuthors(ctx, id)
}

// catalogNotFound reports whether err is an upstream 404, i.e. the id does
// not exist rather than the lookup failing.
func catalogNotFound(err error) bool {
	var te *tmdb.UpstreamError
	if errors.As(err, &te) {
		return te.Status == http.StatusNotFound
	}
	return openlibrary.IsNotFound(err)
}

// lookupItem fetches an item's metadata. On failure it returns a stub
// together with the error; failures other than a 404 are logged.
func lookupItem(ctx context.Context, catalog Catalog, logger *slog.Logger, kind model.Kind, id string) (jsonval.Value, error) {
	if catalog == nil {
		return stubItem(kind, id), nil
	}
	var (
		v   jsonval.Value
		err error
	)
	if kind == model.KindBook {
		v, err = catalog.Book(ctx, id)
	} else {
		v, err = catalog.Movie(ctx, id)
	}
	if err != nil {
		if !catalogNotFound(err) {
			logger.Warn("catalog lookup failed",
				slog.String("kind", string(kind)),
				slog.String("id", id),
				slog.String("error", err.Error()),
			)
		}
		return stubItem(kind, id), err
	}
	return v, nil
}

// stubItem is what a list shows for an item whose metadata could not be
// fetched: just its id, in the shape the client normalizer expects.
func stubItem(kind model.Kind, id string) jsonval.Value {
	if kind == model.KindBook {
		return jsonval.FromAny(map[string]any{"key": "/works/" + strings.TrimPrefix(id, "/works/")})
	}
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return jsonval.FromAny(map[string]any{"id": n})
	}
	return jsonval.FromAny(map[string]any{"id": id})
}

// itemSummary extracts the fields activity meta and reviews carry, using
// the same normalizers the client applies to list payloads.
type itemSummary struct {
	Title    string
	ImageURL string
	Year     string
	Author   string
}

func summarize(kind model.Kind, v jsonval.Value) itemSummary {
	var e model.LibraryEntry
	if kind == model.KindBook {
		e = normalize.Book(v)
	} else {
		e = normalize.Movie(v)
	}
	s := itemSummary{Title: e.Title, Year: e.Year, Author: e.Creator}
	if e.ImageURL != nil {
		s.ImageURL = *e.ImageURL
	}
	return s
}
