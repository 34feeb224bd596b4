package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/movi/internal/apperror"
	"github.com/sakif/movi/internal/model"
	"github.com/sakif/movi/internal/repository"
)

// NetworkEntry is one row of a following or followers listing.
type NetworkEntry struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	UserID   string `json:"userId"`
}

// NetworkService manages the two follow collections. Following and
// followers are stored independently; a client that follows someone
// writes both sides itself.
type NetworkService struct {
	users   repository.UserRepository
	network repository.NetworkRepository
	logger  *slog.Logger
}

// NewNetworkService creates a NetworkService.
func NewNetworkService(users repository.UserRepository, network repository.NetworkRepository, logger *slog.Logger) *NetworkService {
	return &NetworkService{users: users, network: network, logger: logger}
}

// List returns one side of a user's network in the order it was built. Edges to
// deleted accounts are skipped.
func (s *NetworkService) List(ctx context.Context, userID string, side model.Relationship) ([]NetworkEntry, error) {
	if _, err := requireUser(ctx, s.users, userID); err != nil {
		return nil, err
	}
	edges, err := s.network.ListEdges(ctx, userID, side)
	if err != nil {
		return nil, fmt.Errorf("service/network: %w", err)
	}
	ids := make([]string, len(edges))
	for i, e := range edges {
		ids[i] = e.OtherID
	}
	profiles, err := s.users.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("service/network: %w", err)
	}

	out := make([]NetworkEntry, 0, len(edges))
	for _, e := range edges {
		u, ok := profiles[e.OtherID]
		if !ok {
			continue
		}
		out = append(out, NetworkEntry{Name: u.DisplayName(), Username: u.Username, UserID: u.ID})
	}
	return out, nil
}

func (s *NetworkService) checkPair(ctx context.Context, userID, otherID string) error {
	otherID = strings.TrimSpace(otherID)
	if otherID == "" {
		return apperror.ValidationFailed("userId", "target user id is required")
	}
	if otherID == userID {
		return apperror.Coded(apperror.ErrValidation, "self_reference", "a user cannot follow themselves")
	}
	if _, err := requireUser(ctx, s.users, userID); err != nil {
		return err
	}
	if _, err := requireUser(ctx, s.users, otherID); err != nil {
		return err
	}
	return nil
}

// Add records otherID on userID's side collection.
func (s *NetworkService) Add(ctx context.Context, userID string, side model.Relationship, otherID string) error {
	if err := s.checkPair(ctx, userID, otherID); err != nil {
		return err
	}
	if err := s.network.AddEdge(ctx, userID, side, otherID); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return apperror.Coded(apperror.ErrConflict, "duplicate_entry",
				fmt.Sprintf("The requested user is already in %s", side))
		}
		return fmt.Errorf("service/network: %w", err)
	}
	s.logger.Debug("network edge added",
		slog.String("userID", userID),
		slog.String("side", string(side)),
		slog.String("otherID", otherID),
	)
	return nil
}

// Remove deletes an edge. Removing an absent edge is not an error; the
// result says whether anything changed.
func (s *NetworkService) Remove(ctx context.Context, userID string, side model.Relationship, otherID string) (bool, error) {
	if err := s.checkPair(ctx, userID, otherID); err != nil {
		return false, err
	}
	modified, err := s.network.RemoveEdge(ctx, userID, side, otherID)
	if err != nil {
		return false, fmt.Errorf("service/network: %w", err)
	}
	return modified, nil
}
