package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/movi/internal/apperror"
	"github.com/sakif/movi/internal/model"
	"github.com/sakif/movi/internal/normalize"
)

func codeOf(err error) string {
	var ae *apperror.AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// =========================================================================
// ADD TESTS
// =========================================================================

func TestLibraryAdd_WatchedClearsWatchLater(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "neo@example.com", "", "")

	require.NoError(t, env.library.Add(ctx, u.ID, model.ListLater, "603"))
	require.NoError(t, env.library.Add(ctx, u.ID, model.ListWatched, "603"))

	later, err := env.library.List(ctx, u.ID, model.ListLater)
	require.NoError(t, err)
	assert.Empty(t, later)

	watched, err := env.library.List(ctx, u.ID, model.ListWatched)
	require.NoError(t, err)
	require.Len(t, watched, 1)
	entry := normalize.Movie(watched[0])
	assert.Equal(t, "603", entry.ID)
	assert.Equal(t, "The Matrix", entry.Title)
}

func TestLibraryAdd_Duplicate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "neo@example.com", "", "")

	require.NoError(t, env.library.Add(ctx, u.ID, model.ListRead, "OL1W"))
	err := env.library.Add(ctx, u.ID, model.ListRead, "OL1W")

	assert.ErrorIs(t, err, apperror.ErrConflict)
	assert.Equal(t, "duplicate_entry", codeOf(err))
	assert.Contains(t, err.Error(), "already registered as read")
}

func TestLibraryAdd_DuplicateDoneKeepsBacklog(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "neo@example.com", "", "")

	require.NoError(t, env.library.Add(ctx, u.ID, model.ListRead, "OL1W"))
	require.NoError(t, env.library.Add(ctx, u.ID, model.ListToRead, "OL1W"))

	err := env.library.Add(ctx, u.ID, model.ListRead, "OL1W")
	assert.Equal(t, "duplicate_entry", codeOf(err))

	toRead, err := env.library.List(ctx, u.ID, model.ListToRead)
	require.NoError(t, err)
	assert.Len(t, toRead, 1, "a rejected add must not touch the backlog")
}

func TestLibraryAdd_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "neo@example.com", "", "")

	err := env.library.Add(ctx, u.ID, model.ListWatched, "tt0133093")
	assert.ErrorIs(t, err, apperror.ErrValidation, "movie ids are numeric")

	err = env.library.Add(ctx, "missing-user", model.ListWatched, "603")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.Equal(t, "user_not_found", codeOf(err))

	err = env.library.Add(ctx, u.ID, model.ListToRead, "OL404W")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.Equal(t, "book_not_found", codeOf(err))
}

func TestLibraryAdd_LogsActivity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "neo@example.com", "", "")

	require.NoError(t, env.library.Add(ctx, u.ID, model.ListWatched, "603"))

	items, err := env.activity.List(ctx, u.ID, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Added movie to Watched", items[0].Activity)

	feed := normalize.Activity(jsonvalOf(t, items[0]))
	assert.Equal(t, "603", feed.MovieID)
	assert.Equal(t, "The Matrix", feed.Highlight)
	assert.Contains(t, feed.Chips, "Watched")
	require.NotNil(t, feed.ImageURL)
	assert.Contains(t, *feed.ImageURL, "/matrix.jpg")
}

// =========================================================================
// LIST AND REMOVE TESTS
// =========================================================================

func TestLibraryList_UpstreamFailureYieldsStub(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "neo@example.com", "", "")
	require.NoError(t, env.library.Add(ctx, u.ID, model.ListWatched, "550"))

	env.catalog.failing["550"] = true
	items, err := env.library.List(ctx, u.ID, model.ListWatched)
	require.NoError(t, err)
	require.Len(t, items, 1)

	n, ok := items[0].Get("id").Int()
	assert.True(t, ok)
	assert.Equal(t, 550, n)
	assert.False(t, items[0].Has("title"))
}

func TestLibraryRemove(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "neo@example.com", "", "")
	require.NoError(t, env.library.Add(ctx, u.ID, model.ListLater, "603"))
	require.NoError(t, env.library.Add(ctx, u.ID, model.ListLater, "550"))

	res, err := env.library.Remove(ctx, u.ID, model.ListLater, "603")
	require.NoError(t, err)
	assert.Equal(t, RemoveResult{Modified: true, NewCount: 1}, res)

	res, err = env.library.Remove(ctx, u.ID, model.ListLater, "603")
	require.NoError(t, err)
	assert.Equal(t, RemoveResult{Modified: false, NewCount: 1}, res)
}

func TestItemMeta(t *testing.T) {
	meta := itemMeta(model.KindMovie, "603", map[string]any{"title": "", "status": "Watched"})
	assert.Equal(t, map[string]any{"type": "movie", "movieId": int64(603), "status": "Watched"}, meta)

	meta = itemMeta(model.KindBook, "OL1W", nil)
	assert.Equal(t, map[string]any{"type": "book", "bookId": "OL1W"}, meta)
}
