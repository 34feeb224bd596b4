package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/movi/internal/service"
)

// UserHandler serves user search, profiles and the activity log.
type UserHandler struct {
	users    *service.UserService
	activity *service.ActivityService
	logger   *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(users *service.UserService, activity *service.ActivityService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, activity: activity, logger: logger}
}

// HandleSearch finds other users by username or name.
//
// HTTP: GET /users/{userID}/searchUsers/{query} → {ok, count, items}
func (h *UserHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.Search(r.Context(), pathParam(r, "userID"), pathParam(r, "query"))
	if err != nil {
		writeError(w, err)
		return
	}
	items := make([]userResponse, len(users))
	for i := range users {
		items[i] = toUserResponse(&users[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"count": len(items),
		"items": items,
	})
}

// HandleProfile returns a user's public profile.
//
// HTTP: GET /users/{userID}/profile → {user}
func (h *UserHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.Profile(r.Context(), pathParam(r, "userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": toUserResponse(u)})
}

// HandleUpdateBio replaces the caller's bio.
//
// HTTP: POST /users/{userID}/bio {bio} → {ok, user}
func (h *UserHandler) HandleUpdateBio(w http.ResponseWriter, r *http.Request) {
	userID := pathParam(r, "userID")
	if err := requireSelf(r, userID); err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Bio string `json:"bio"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	u, err := h.users.UpdateBio(r.Context(), userID, req.Bio)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "user": toUserResponse(u)})
}

// HandleListActivity returns a user's log newest first.
//
// HTTP: GET /users/{userID}/activity?limit=N → {ok, count, items}
func (h *UserHandler) HandleListActivity(w http.ResponseWriter, r *http.Request) {
	items, err := h.activity.List(r.Context(), pathParam(r, "userID"), queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"count": len(items),
		"items": items,
	})
}

// HandleFriendsActivity merges a user's log with their friends' logs.
//
// HTTP: GET /users/{userID}/activity/friends?friends=id1,id2&limit=N
// → {ok, userId, friendCount, count, items}
func (h *UserHandler) HandleFriendsActivity(w http.ResponseWriter, r *http.Request) {
	userID := pathParam(r, "userID")
	var friends []string
	if raw := strings.TrimSpace(r.URL.Query().Get("friends")); raw != "" {
		friends = strings.Split(raw, ",")
	}
	feed, err := h.activity.ListWithFriends(r.Context(), userID, friends, queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"userId":      userID,
		"friendCount": feed.FriendCount,
		"count":       len(feed.Items),
		"items":       feed.Items,
	})
}

// HandleAppendActivity adds an entry to the caller's log.
//
// HTTP: POST /users/{userID}/activity {activity, meta}
// → 201 {ok, activityId, userId, activitiesCount}
func (h *UserHandler) HandleAppendActivity(w http.ResponseWriter, r *http.Request) {
	userID := pathParam(r, "userID")
	if err := requireSelf(r, userID); err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Activity string         `json:"activity"`
		Meta     map[string]any `json:"meta"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.activity.Append(r.Context(), userID, req.Activity, req.Meta)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"ok":              true,
		"activityId":      res.ID,
		"userId":          userID,
		"activitiesCount": res.Count,
	})
}
