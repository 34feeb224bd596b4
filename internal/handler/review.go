package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/movi/internal/auth"
	"github.com/sakif/movi/internal/jsonval"
	"github.com/sakif/movi/internal/model"
	"github.com/sakif/movi/internal/service"
)

// ReviewHandler serves review creation, listing and deletion.
type ReviewHandler struct {
	reviews *service.ReviewService
	logger  *slog.Logger
}

// NewReviewHandler creates a ReviewHandler.
func NewReviewHandler(reviews *service.ReviewService, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{reviews: reviews, logger: logger}
}

// reviewRequest accepts movieId or bookId. Ids and the rating may arrive
// as numbers or strings, so they decode as raw values.
type reviewRequest struct {
	UserID  string        `json:"userId"`
	MovieID jsonval.Value `json:"movieId"`
	BookID  jsonval.Value `json:"bookId"`
	Rating  jsonval.Value `json:"rating"`
	Title   string        `json:"title"`
	Body    string        `json:"body"`
}

// HandleCreate stores a review of kind.
//
// HTTP: POST /createmoviereview, /createbookreview
// → 201 {ok, id, userId, movieId|bookId, rating}
func (h *ReviewHandler) HandleCreate(kind model.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reviewRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
		if err := requireSelf(r, req.UserID); err != nil {
			writeError(w, err)
			return
		}

		itemID, key := req.MovieID.TrimmedText(), "movieId"
		if kind == model.KindBook {
			itemID, key = req.BookID.TrimmedText(), "bookId"
		}

		rec, err := h.reviews.Create(r.Context(), kind, service.ReviewInput{
			UserID: req.UserID,
			ItemID: itemID,
			Rating: req.Rating.TrimmedText(),
			Title:  req.Title,
			Body:   req.Body,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"ok":     true,
			"id":     rec.ID,
			"userId": rec.UserID,
			key:      rec.ItemID,
			"rating": rec.Rating,
		})
	}
}

// HandleList returns a user's reviews with item metadata, newest first.
//
// HTTP: GET /reviews/user/{userID} → {ok, userId, count, items}
func (h *ReviewHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID := pathParam(r, "userID")
	items, err := h.reviews.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"userId": userID,
		"count":  len(items),
		"items":  items,
	})
}

// HandleDelete deletes one of the caller's reviews and its activity
// entries.
//
// HTTP: DELETE /reviews/{kind}/{reviewID} → {ok, kind, reviewId, deleted, userId}
func (h *ReviewHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.UserIDFromContext(r.Context())
	res, err := h.reviews.Delete(r.Context(), actor, pathParam(r, "kind"), pathParam(r, "reviewID"))
	if err != nil {
		writeError(w, err)
		return
	}
	h.logger.Info("review deleted",
		slog.String("reviewID", res.ReviewID),
		slog.Int64("activitiesRemoved", res.ActivitiesRemoved),
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"kind":     res.Kind,
		"reviewId": res.ReviewID,
		"deleted":  true,
		"userId":   res.UserID,
	})
}
