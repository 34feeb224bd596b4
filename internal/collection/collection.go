// Package collection is the one remote-collection abstraction the library,
// social and feed controllers share: GET a path, pull an array out of the
// body, normalize every element, drop rejects and duplicates.
package collection

import (
	"context"
	"fmt"

	"github.com/sakif/movi/internal/backend"
	"github.com/sakif/movi/internal/jsonval"
	"github.com/sakif/movi/internal/normalize"
)

// Collection describes one remote resource.
type Collection[T any] struct {
	// Name is used in error messages ("watched", "followers", ...).
	Name string
	// Path builds the GET path for a user.
	Path func(userID string) string
	// Field is the array field of the response body. A bare array body is
	// accepted too.
	Field string
	// Normalize converts one element; ok == false drops it.
	Normalize func(jsonval.Value) (T, bool)
	// Key identifies an element for de-duplication. Nil keeps duplicates.
	Key func(T) string
}

// Fetch loads the collection for userID. The result is never nil.
func (c Collection[T]) Fetch(ctx context.Context, g backend.Getter, userID string) ([]T, error) {
	body, err := g.Get(ctx, c.Path(userID))
	if err != nil {
		return nil, fmt.Errorf("collection %s: %w", c.Name, err)
	}
	return c.Decode(body), nil
}

// Decode normalizes an already fetched body.
func (c Collection[T]) Decode(body jsonval.Value) []T {
	raw := normalize.Items(body, c.Field)
	out := make([]T, 0, len(raw))

	var seen map[string]struct{}
	if c.Key != nil {
		seen = make(map[string]struct{}, len(raw))
	}

	for _, v := range raw {
		item, ok := c.Normalize(v)
		if !ok {
			continue
		}
		if seen != nil {
			k := c.Key(item)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
		}
		out = append(out, item)
	}
	return out
}

// Always adapts a total normalizer (one that never rejects) to the
// Normalize signature.
func Always[T any](fn func(jsonval.Value) T) func(jsonval.Value) (T, bool) {
	return func(v jsonval.Value) (T, bool) { return fn(v), true }
}
