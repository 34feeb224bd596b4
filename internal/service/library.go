package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/movi/internal/apperror"
	"github.com/sakif/movi/internal/jsonval"
	"github.com/sakif/movi/internal/model"
	"github.com/sakif/movi/internal/repository"
)

// catalogWorkers bounds concurrent metadata lookups per list.
const catalogWorkers = 6

// listStatus is the activity status and message label per list.
var listStatus = map[model.List]string{
	model.ListWatched: "Watched",
	model.ListLater:   "Watch Later",
	model.ListRead:    "Read",
	model.ListToRead:  "Read Later",
}

// LibraryService manages the four lists.
type LibraryService struct {
	users      repository.UserRepository
	library    repository.LibraryRepository
	activities *ActivityService
	catalog    Catalog
	logger     *slog.Logger
}

// NewLibraryService creates a LibraryService. catalog may be nil, in which
// case list items carry only their id.
func NewLibraryService(
	users repository.UserRepository,
	library repository.LibraryRepository,
	activities *ActivityService,
	catalog Catalog,
	logger *slog.Logger,
) *LibraryService {
	return &LibraryService{
		users:      users,
		library:    library,
		activities: activities,
		catalog:    catalog,
		logger:     logger,
	}
}

// CheckItemID validates an item id for a list's kind. Movie ids are TMDB
// integers.
func CheckItemID(kind model.Kind, id string) error {
	if strings.TrimSpace(id) == "" {
		return apperror.ValidationFailed("itemId", "item id is required")
	}
	if kind == model.KindMovie {
		if _, err := strconv.ParseUint(id, 10, 64); err != nil {
			return apperror.ValidationFailed("movieId", fmt.Sprintf("movie id %q must be numeric", id))
		}
	}
	return nil
}

// requireUser returns ErrNotFound ("user_not_found") for an unknown id.
func requireUser(ctx context.Context, users repository.UserRepository, id string) (*model.User, error) {
	u, err := users.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Coded(apperror.ErrNotFound, "user_not_found", "The requested user was not found")
		}
		return nil, err
	}
	return u, nil
}

// List returns a list's items as catalog payloads, newest first. Items
// whose metadata cannot be fetched are returned as id-only stubs.
func (s *LibraryService) List(ctx context.Context, userID string, list model.List) ([]jsonval.Value, error) {
	if _, err := requireUser(ctx, s.users, userID); err != nil {
		return nil, err
	}
	rows, err := s.library.ListItems(ctx, userID, list)
	if err != nil {
		return nil, fmt.Errorf("service/library: %w", err)
	}

	out := make([]jsonval.Value, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(catalogWorkers)
	for i, row := range rows {
		g.Go(func() error {
			out[i], _ = lookupItem(gctx, s.catalog, s.logger, list.Kind(), row.ItemID)
			return nil
		})
	}
	_ = g.Wait()
	return out, nil
}

// Add puts an item on a list. Adding to a done list (watched, read) takes
// the item off the matching backlog. The item must exist in the catalog
// when one is configured.
func (s *LibraryService) Add(ctx context.Context, userID string, list model.List, itemID string) error {
	kind := list.Kind()
	if err := CheckItemID(kind, itemID); err != nil {
		return err
	}
	if _, err := requireUser(ctx, s.users, userID); err != nil {
		return err
	}

	meta, err := lookupItem(ctx, s.catalog, s.logger, kind, itemID)
	if err != nil && catalogNotFound(err) {
		return apperror.Coded(apperror.ErrNotFound, string(kind)+"_not_found", "The requested "+string(kind)+" was not found")
	}

	// Done lists pull the item off their backlog in the same write.
	if backlog, ok := list.Backlog(); ok {
		err = s.library.CompleteItem(ctx, userID, list, backlog, itemID)
	} else {
		err = s.library.AddItem(ctx, userID, list, itemID)
	}
	if err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return apperror.Coded(apperror.ErrConflict, "duplicate_entry",
				"The requested entry to add is already registered as "+strings.ToLower(listStatus[list]))
		}
		return fmt.Errorf("service/library: %w", err)
	}

	sum := summarize(kind, meta)
	s.activities.log(ctx, userID, fmt.Sprintf("Added %s to %s", kind, listStatus[list]), itemMeta(kind, itemID, map[string]any{
		"status":   listStatus[list],
		"title":    sum.Title,
		"coverUrl": sum.ImageURL,
	}))
	return nil
}

// RemoveResult reports what Remove did.
type RemoveResult struct {
	Modified bool
	NewCount int
}

// Remove takes an item off a list. Removing an absent item is not an
// error; Modified is false.
func (s *LibraryService) Remove(ctx context.Context, userID string, list model.List, itemID string) (RemoveResult, error) {
	if err := CheckItemID(list.Kind(), itemID); err != nil {
		return RemoveResult{}, err
	}
	if _, err := requireUser(ctx, s.users, userID); err != nil {
		return RemoveResult{}, err
	}
	modified, err := s.library.RemoveItem(ctx, userID, list, itemID)
	if err != nil {
		return RemoveResult{}, fmt.Errorf("service/library: %w", err)
	}
	rows, err := s.library.ListItems(ctx, userID, list)
	if err != nil {
		return RemoveResult{}, fmt.Errorf("service/library: %w", err)
	}
	return RemoveResult{Modified: modified, NewCount: len(rows)}, nil
}

// itemMeta builds activity meta for an item, dropping empty strings.
func itemMeta(kind model.Kind, itemID string, extra map[string]any) map[string]any {
	meta := map[string]any{"type": string(kind)}
	if kind == model.KindBook {
		meta["bookId"] = itemID
	} else if n, err := strconv.ParseInt(itemID, 10, 64); err == nil {
		meta["movieId"] = n
	} else {
		meta["movieId"] = itemID
	}
	for k, v := range extra {
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		meta[k] = v
	}
	return meta
}
