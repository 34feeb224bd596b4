package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/movi/internal/apperror"
	"github.com/sakif/movi/internal/auth"
	"github.com/sakif/movi/internal/backend"
	"github.com/sakif/movi/internal/model"
	"github.com/sakif/movi/internal/service"
)

// NetworkHandler serves the following and followers collections.
type NetworkHandler struct {
	network *service.NetworkService
	logger  *slog.Logger
}

// NewNetworkHandler creates a NetworkHandler.
func NewNetworkHandler(network *service.NetworkService, logger *slog.Logger) *NetworkHandler {
	return &NetworkHandler{network: network, logger: logger}
}

// edgeActor checks who may change an edge. Following someone writes two
// rows: the follower's "following" and the target's "followers", so the
// caller may be either end.
func edgeActor(r *http.Request, userID, otherID string) error {
	actor, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return apperror.Unauthorized("sign in required")
	}
	if actor != userID && actor != otherID {
		return apperror.Forbidden("you can only change edges you are part of")
	}
	return nil
}

// HandleList returns one side of a user's network.
//
// HTTP: GET /following/user/{userID} → {userId, count, following}
func (h *NetworkHandler) HandleList(side model.Relationship) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := pathParam(r, "userID")
		entries, err := h.network.List(r.Context(), userID, side)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"userId":                   userID,
			"count":                    len(entries),
			backend.NetworkField(side): entries,
		})
	}
}

// HandleAdd records an edge.
//
// HTTP: POST /following/user/{userID}/usertoadd/{otherID} → {ok, userId, userAddedId}
func (h *NetworkHandler) HandleAdd(side model.Relationship) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, otherID := pathParam(r, "userID"), pathParam(r, "otherID")
		if err := edgeActor(r, userID, otherID); err != nil {
			writeError(w, err)
			return
		}
		if err := h.network.Add(r.Context(), userID, side, otherID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":          true,
			"userId":      userID,
			"userAddedId": otherID,
		})
	}
}

// HandleRemove deletes an edge; removing an absent edge is not an error.
//
// HTTP: DELETE /following/user/{userID}/usertoremove/{otherID}
// → {ok, userId, userRemovedId, modified}
func (h *NetworkHandler) HandleRemove(side model.Relationship) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, otherID := pathParam(r, "userID"), pathParam(r, "otherID")
		if err := edgeActor(r, userID, otherID); err != nil {
			writeError(w, err)
			return
		}
		modified, err := h.network.Remove(r.Context(), userID, side, otherID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":            true,
			"userId":        userID,
			"userRemovedId": otherID,
			"modified":      modified,
		})
	}
}
