package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/movi/internal/backend"
	"github.com/sakif/movi/internal/model"
	"github.com/sakif/movi/internal/service"
)

// LibraryHandler serves the four list routes. One handler value covers
// every list; the route table binds each list with HandleList(list) etc.
type LibraryHandler struct {
	library *service.LibraryService
	logger  *slog.Logger
}

// NewLibraryHandler creates a LibraryHandler.
func NewLibraryHandler(library *service.LibraryService, logger *slog.Logger) *LibraryHandler {
	return &LibraryHandler{library: library, logger: logger}
}

// itemParam is the URL parameter naming the item for a list's kind.
func itemParam(list model.List) string {
	if list.Kind() == model.KindBook {
		return "bookID"
	}
	return "movieID"
}

// itemKey is the response key echoing the item id.
func itemKey(list model.List) string {
	if list.Kind() == model.KindBook {
		return "bookId"
	}
	return "movieId"
}

// HandleList returns a list's items as catalog payloads.
//
// HTTP: GET /movies/user/{userID} → {userId, count, items}
// (read and toberead answer under readBooks and toBeReadBooks)
func (h *LibraryHandler) HandleList(list model.List) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := pathParam(r, "userID")
		items, err := h.library.List(r.Context(), userID, list)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"userId":                 userID,
			"count":                  len(items),
			backend.ListField(list): items,
		})
	}
}

// HandleAdd puts an item on a list.
//
// HTTP: POST /addwatchedmovie/user/{userID}/movie/{movieID} → {ok, userId, movieId}
func (h *LibraryHandler) HandleAdd(list model.List) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := pathParam(r, "userID")
		itemID := pathParam(r, itemParam(list))
		if err := requireSelf(r, userID); err != nil {
			writeError(w, err)
			return
		}
		if err := h.library.Add(r.Context(), userID, list, itemID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":          true,
			"userId":      userID,
			itemKey(list): itemID,
		})
	}
}

// HandleRemove takes an item off a list. Removing an absent item answers
// 200 with modified=false.
//
// HTTP: DELETE /read/user/{userID}/book/{bookID} → {ok, userId, bookId, newCount, modified}
func (h *LibraryHandler) HandleRemove(list model.List) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := pathParam(r, "userID")
		itemID := pathParam(r, itemParam(list))
		if err := requireSelf(r, userID); err != nil {
			writeError(w, err)
			return
		}
		res, err := h.library.Remove(r.Context(), userID, list, itemID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":          true,
			"userId":      userID,
			itemKey(list): itemID,
			"newCount":    res.NewCount,
			"modified":    res.Modified,
		})
	}
}
