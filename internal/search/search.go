// Package search runs the combined movie and book search behind the search
// screen.
package search

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/movi/internal/apperror"
	"github.com/sakif/movi/internal/model"
	"github.com/sakif/movi/internal/proxyclient"
)

// DefaultBookLimit is how many book hits are requested.
const DefaultBookLimit = 20

// Source is the proxy client.
type Source interface {
	SearchMovies(ctx context.Context, query string, page int) (proxyclient.MovieResults, error)
	SearchBooks(ctx context.Context, query string, limit int) ([]model.LibraryEntry, error)
}

// Section is one titled group of results.
type Section struct {
	Kind  model.Kind
	Title string
	Items []model.LibraryEntry
}

// Searcher queries both catalogs.
type Searcher struct {
	src       Source
	logger    *slog.Logger
	bookLimit int
}

// New creates a Searcher.
func New(src Source, logger *slog.Logger) *Searcher {
	return &Searcher{src: src, logger: logger, bookLimit: DefaultBookLimit}
}

// Search queries movies and books in parallel. Sections without hits are
// left out. When one catalog fails, the other's section is still returned
// together with the error.
func (s *Searcher) Search(ctx context.Context, query string) ([]Section, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperror.ValidationFailed("q", "search query must not be empty")
	}

	var (
		movies, books     []model.LibraryEntry
		movieErr, bookErr error
	)
	// Neither search cancels the other, so a plain Group rather than
	// WithContext.
	var g errgroup.Group
	g.Go(func() error {
		res, err := s.src.SearchMovies(ctx, query, 1)
		movies, movieErr = res.Items, err
		return nil
	})
	g.Go(func() error {
		books, bookErr = s.src.SearchBooks(ctx, query, s.bookLimit)
		return nil
	})
	_ = g.Wait()

	sections := make([]Section, 0, 2)
	if movieErr == nil && len(movies) > 0 {
		sections = append(sections, Section{Kind: model.KindMovie, Title: "Movies", Items: movies})
	}
	if bookErr == nil && len(books) > 0 {
		sections = append(sections, Section{Kind: model.KindBook, Title: "Books", Items: books})
	}

	err := errors.Join(movieErr, bookErr)
	if err != nil {
		s.logger.Warn("search partially failed",
			slog.String("query", query),
			slog.Int("sections", len(sections)),
			slog.String("error", err.Error()),
		)
	}
	return sections, err
}
