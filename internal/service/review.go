package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/movi/internal/apperror"
	"github.com/sakif/movi/internal/model"
	"github.com/sakif/movi/internal/repository"
	"github.com/sakif/movi/internal/validate"
)

// ReviewService writes and reads reviews. Creating a review also marks the
// item done and records an activity.
type ReviewService struct {
	users      repository.UserRepository
	reviews    repository.ReviewRepository
	library    repository.LibraryRepository
	activities repository.ActivityRepository
	log        *ActivityService
	catalog    Catalog
	logger     *slog.Logger
}

// NewReviewService creates a ReviewService. catalog may be nil.
func NewReviewService(
	users repository.UserRepository,
	reviews repository.ReviewRepository,
	library repository.LibraryRepository,
	activities *ActivityService,
	catalog Catalog,
	logger *slog.Logger,
) *ReviewService {
	return &ReviewService{
		users:      users,
		reviews:    reviews,
		library:    library,
		activities: activities.activities,
		log:        activities,
		catalog:    catalog,
		logger:     logger,
	}
}

// ReviewInput is a create-review payload after decoding. Rating is kept as
// text so "7", "7.5" and 7.5 all arrive the same way.
type ReviewInput struct {
	UserID string `validate:"required"`
	ItemID string `validate:"required"`
	Rating string
	Title  string `validate:"max=200"`
	Body   string `validate:"max=10000"`
}

// checkRating accepts 1 to 10 with at most one decimal.
func checkRating(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if r, ok := validate.ParseRating(s); ok {
		return r, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && (f < validate.MinRating || f > validate.MaxRating) {
		return 0, apperror.Coded(apperror.ErrValidation, "rating_out_of_range", "rating must be between 1 and 10")
	}
	return 0, apperror.Coded(apperror.ErrValidation, "invalid_rating", "rating must be a number from 1 to 10 with at most one decimal")
}

// doneList is where a reviewed item lands.
func doneList(kind model.Kind) model.List {
	if kind == model.KindBook {
		return model.ListRead
	}
	return model.ListWatched
}

// Create stores a review, puts the item on the done list (taking it off
// the backlog) and logs "Reviewed <kind>".
func (s *ReviewService) Create(ctx context.Context, kind model.Kind, in ReviewInput) (*model.ReviewRecord, error) {
	in.UserID = strings.TrimSpace(in.UserID)
	in.ItemID = strings.TrimSpace(in.ItemID)
	in.Title = strings.TrimSpace(in.Title)
	in.Body = strings.TrimSpace(in.Body)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if err := CheckItemID(kind, in.ItemID); err != nil {
		return nil, err
	}
	rating, err := checkRating(in.Rating)
	if err != nil {
		return nil, err
	}
	if in.Body == "" {
		return nil, apperror.Coded(apperror.ErrValidation, "missing_body", "review body is required")
	}
	if _, err := requireUser(ctx, s.users, in.UserID); err != nil {
		return nil, err
	}

	meta, err := lookupItem(ctx, s.catalog, s.logger, kind, in.ItemID)
	if err != nil && catalogNotFound(err) {
		return nil, apperror.Coded(apperror.ErrNotFound, string(kind)+"_not_found", "The requested "+string(kind)+" was not found")
	}
	sum := summarize(kind, meta)

	review := &model.ReviewRecord{
		UserID: in.UserID,
		Kind:   kind,
		ItemID: in.ItemID,
		Rating: rating,
		Title:  in.Title,
		Body:   in.Body,
	}
	if err := s.reviews.CreateReview(ctx, review); err != nil {
		return nil, fmt.Errorf("service/review: %w", err)
	}

	done := doneList(kind)
	if err := s.library.AddItem(ctx, in.UserID, done, in.ItemID); err != nil && !errors.Is(err, apperror.ErrConflict) {
		return nil, fmt.Errorf("service/review: adding to %s: %w", done, err)
	}
	if backlog, ok := done.Backlog(); ok {
		if _, err := s.library.RemoveItem(ctx, in.UserID, backlog, in.ItemID); err != nil {
			return nil, fmt.Errorf("service/review: clearing %s: %w", backlog, err)
		}
	}

	title := sum.Title
	if title == "" {
		title = in.Title
	}
	s.log.log(ctx, in.UserID, "Reviewed "+string(kind), itemMeta(kind, in.ItemID, map[string]any{
		"rating":   rating,
		"title":    title,
		"reviewId": review.ID,
		"coverUrl": sum.ImageURL,
	}))

	s.logger.Info("review created",
		slog.String("reviewID", review.ID),
		slog.String("userID", review.UserID),
		slog.String("kind", string(kind)),
	)
	return review, nil
}

// ReviewView is a review with the item's metadata attached.
type ReviewView struct {
	ID         string     `json:"id"`
	Kind       model.Kind `json:"kind"`
	ItemID     string     `json:"itemId"`
	ItemTitle  string     `json:"itemTitle"`
	ItemPoster string     `json:"itemPoster,omitempty"`
	ItemCover  string     `json:"itemCover,omitempty"`
	ItemAuthor string     `json:"itemAuthor,omitempty"`
	ItemYear   *int       `json:"itemYear,omitempty"`
	Rating     float64    `json:"rating"`
	Title      string     `json:"title,omitempty"`
	Body       string     `json:"body"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// List returns a user's reviews newest first.
func (s *ReviewService) List(ctx context.Context, userID string) ([]ReviewView, error) {
	if _, err := requireUser(ctx, s.users, userID); err != nil {
		return nil, err
	}
	recs, err := s.reviews.ListReviews(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/review: %w", err)
	}

	out := make([]ReviewView, len(recs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(catalogWorkers)
	for i, rec := range recs {
		g.Go(func() error {
			meta, _ := lookupItem(gctx, s.catalog, s.logger, rec.Kind, rec.ItemID)
			out[i] = reviewView(rec, summarize(rec.Kind, meta))
			return nil
		})
	}
	_ = g.Wait()
	return out, nil
}

func reviewView(rec model.ReviewRecord, sum itemSummary) ReviewView {
	v := ReviewView{
		ID:         rec.ID,
		Kind:       rec.Kind,
		ItemID:     rec.ItemID,
		ItemTitle:  sum.Title,
		ItemAuthor: sum.Author,
		Rating:     rec.Rating,
		Title:      rec.Title,
		Body:       rec.Body,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
	}
	if rec.Kind == model.KindBook {
		v.ItemCover = sum.ImageURL
	} else {
		v.ItemPoster = sum.ImageURL
	}
	if y, err := strconv.Atoi(sum.Year); err == nil {
		v.ItemYear = &y
	}
	return v
}

// DeleteResult reports a deleted review.
type DeleteResult struct {
	Kind              model.Kind
	ReviewID          string
	UserID            string
	ActivitiesRemoved int64
}

// Delete removes a review owned by actorID together with the activity
// entries that point at it. kind must match the stored review.
func (s *ReviewService) Delete(ctx context.Context, actorID, kind, reviewID string) (DeleteResult, error) {
	k, err := model.ParseKind(strings.ToLower(kind))
	if err != nil {
		return DeleteResult{}, apperror.Coded(apperror.ErrValidation, "invalid_kind", "kind must be movie or book")
	}
	notFound := apperror.Coded(apperror.ErrNotFound, "review_not_found", "The requested review was not found")

	rec, err := s.reviews.GetReview(ctx, reviewID)
	if errors.Is(err, apperror.ErrNotFound) {
		return DeleteResult{}, notFound
	}
	if err != nil {
		return DeleteResult{}, fmt.Errorf("service/review: %w", err)
	}
	if rec.Kind != k {
		return DeleteResult{}, notFound
	}
	if rec.UserID != actorID {
		return DeleteResult{}, apperror.Forbidden("you can only delete your own reviews")
	}

	if err := s.reviews.DeleteReview(ctx, reviewID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return DeleteResult{}, notFound
		}
		return DeleteResult{}, fmt.Errorf("service/review: %w", err)
	}
	n, err := s.activities.DeleteActivitiesForReview(ctx, rec.UserID, reviewID)
	if err != nil {
		s.logger.Warn("review activities not removed",
			slog.String("reviewID", reviewID),
			slog.String("error", err.Error()),
		)
	}
	return DeleteResult{Kind: k, ReviewID: reviewID, UserID: rec.UserID, ActivitiesRemoved: n}, nil
}
