package handler

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/movi/internal/apperror"
	"github.com/sakif/movi/internal/auth"
)

// pathParam returns a decoded chi URL parameter. chi matches on the raw
// path when one is present, so escaped book ids arrive still escaped.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if s, err := url.PathUnescape(raw); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(raw)
}

// queryInt reads an integer query parameter, returning def when it is
// absent or unreadable.
func queryInt(r *http.Request, name string, def int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get(name))); err == nil {
		return n
	}
	return def
}

// queryFlag reports whether a query parameter is set to 1 or true.
func queryFlag(r *http.Request, name string) bool {
	switch strings.ToLower(r.URL.Query().Get(name)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// requireSelf rejects a write made on behalf of another user. RequireAuth
// has already put the token's subject in the context.
func requireSelf(r *http.Request, userID string) error {
	actor, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return apperror.Unauthorized("sign in required")
	}
	if actor != userID {
		return apperror.Forbidden("you can only change your own data")
	}
	return nil
}
