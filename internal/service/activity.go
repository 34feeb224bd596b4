package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/sakif/movi/internal/apperror"
	"github.com/sakif/movi/internal/jsonval"
	"github.com/sakif/movi/internal/model"
	"github.com/sakif/movi/internal/repository"
)

// Activity page bounds.
const (
	DefaultActivityLimit = 50
	DefaultFriendsLimit  = 100
	MaxActivityLimit     = 500
)

// ActivityView is an activity-log entry as the API returns it.
type ActivityView struct {
	ID        string        `json:"id"`
	UserID    string        `json:"userId"`
	Activity  string        `json:"activity"`
	Meta      jsonval.Value `json:"meta"`
	CreatedAt time.Time     `json:"createdAt"`
}

// ActivityService reads and appends the per-user activity log.
type ActivityService struct {
	activities repository.ActivityRepository
	users      repository.UserRepository
	network    repository.NetworkRepository
	logger     *slog.Logger
}

// NewActivityService creates an ActivityService. network resolves the
// default friend set of ListWithFriends.
func NewActivityService(
	activities repository.ActivityRepository,
	users repository.UserRepository,
	network repository.NetworkRepository,
	logger *slog.Logger,
) *ActivityService {
	return &ActivityService{activities: activities, users: users, network: network, logger: logger}
}

// ClampLimit maps a requested page size into [1, MaxActivityLimit]. Zero
// or negative means def.
func ClampLimit(limit, def int) int {
	switch {
	case limit <= 0:
		return def
	case limit > MaxActivityLimit:
		return MaxActivityLimit
	}
	return limit
}

// List returns a user's log newest first.
func (s *ActivityService) List(ctx context.Context, userID string, limit int) ([]ActivityView, error) {
	if _, err := requireUser(ctx, s.users, userID); err != nil {
		return nil, err
	}
	recs, err := s.activities.ListActivities(ctx, userID, repository.ListOptions{Limit: ClampLimit(limit, DefaultActivityLimit)})
	if err != nil {
		return nil, fmt.Errorf("service/activity: %w", err)
	}
	return s.views(recs), nil
}

// FriendsFeed is a merged log of a user and their friends.
type FriendsFeed struct {
	FriendCount int
	Items       []ActivityView
}

// ListWithFriends merges userID's log with the logs of friendIDs, newest
// first. With no friendIDs the user's following list is used.
func (s *ActivityService) ListWithFriends(ctx context.Context, userID string, friendIDs []string, limit int) (FriendsFeed, error) {
	if _, err := requireUser(ctx, s.users, userID); err != nil {
		return FriendsFeed{}, err
	}
	if len(friendIDs) == 0 {
		edges, err := s.network.ListEdges(ctx, userID, model.Following)
		if err != nil {
			return FriendsFeed{}, fmt.Errorf("service/activity: %w", err)
		}
		for _, e := range edges {
			friendIDs = append(friendIDs, e.OtherID)
		}
	}

	ids := []string{userID}
	seen := map[string]bool{userID: true}
	for _, id := range friendIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}

	recs, err := s.activities.ListActivitiesForUsers(ctx, ids, repository.ListOptions{Limit: ClampLimit(limit, DefaultFriendsLimit)})
	if err != nil {
		return FriendsFeed{}, fmt.Errorf("service/activity: %w", err)
	}
	return FriendsFeed{FriendCount: len(ids) - 1, Items: s.views(recs)}, nil
}

func (s *ActivityService) views(recs []model.ActivityRecord) []ActivityView {
	out := make([]ActivityView, 0, len(recs))
	for _, rec := range recs {
		meta, err := jsonval.Parse([]byte(rec.Meta))
		if err != nil {
			s.logger.Warn("unreadable activity meta",
				slog.String("activityID", rec.ID),
				slog.String("error", err.Error()),
			)
			meta = jsonval.FromAny(map[string]any{})
		}
		out = append(out, ActivityView{
			ID:        rec.ID,
			UserID:    rec.UserID,
			Activity:  rec.Activity,
			Meta:      meta,
			CreatedAt: rec.CreatedAt,
		})
	}
	return out
}

// AppendResult is what Append stored and the log's new size.
type AppendResult struct {
	ID    string
	Count int
}

// Append adds an entry from the API. meta may be nil.
func (s *ActivityService) Append(ctx context.Context, userID, activity string, meta map[string]any) (AppendResult, error) {
	activity = strings.TrimSpace(activity)
	if activity == "" {
		return AppendResult{}, apperror.Coded(apperror.ErrValidation, "missing_activity", "activity is required")
	}
	if _, err := requireUser(ctx, s.users, userID); err != nil {
		return AppendResult{}, err
	}

	rec, err := s.append(ctx, userID, activity, meta)
	if err != nil {
		return AppendResult{}, err
	}
	n, err := s.activities.CountActivities(ctx, userID)
	if err != nil {
		return AppendResult{}, fmt.Errorf("service/activity: %w", err)
	}
	return AppendResult{ID: rec.ID, Count: n}, nil
}

func (s *ActivityService) append(ctx context.Context, userID, activity string, meta map[string]any) (*model.ActivityRecord, error) {
	if meta == nil {
		meta = map[string]any{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, apperror.ValidationFailed("meta", "meta must be a JSON object")
	}
	rec := &model.ActivityRecord{UserID: userID, Activity: activity, Meta: string(raw)}
	if err := s.activities.AppendActivity(ctx, rec); err != nil {
		return nil, fmt.Errorf("service/activity: %w", err)
	}
	return rec, nil
}

// log records a side-effect entry. Failures are logged, never returned:
// the action that triggered it has already succeeded.
func (s *ActivityService) log(ctx context.Context, userID, activity string, meta map[string]any) {
	if s == nil {
		return
	}
	if _, err := s.append(ctx, userID, activity, meta); err != nil {
		s.logger.Warn("activity not recorded",
			slog.String("userID", userID),
			slog.String("activity", activity),
			slog.String("error", err.Error()),
		)
	}
}
