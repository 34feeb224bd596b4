package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/movi/internal/apperror"
	"github.com/sakif/movi/internal/model"
	"github.com/sakif/movi/internal/repository"
)

// Limits for user search and profiles.
const (
	SearchLimit  = 20
	MaxBioLength = 500
)

// UserService serves user search and profiles.
type UserService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

// NewUserService creates a UserService.
func NewUserService(users repository.UserRepository, logger *slog.Logger) *UserService {
	return &UserService{users: users, logger: logger}
}

// Search finds users whose username or name contains query, never
// returning the searching user.
func (s *UserService) Search(ctx context.Context, userID, query string) ([]model.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperror.ValidationFailed("query", "query is required")
	}
	if _, err := requireUser(ctx, s.users, userID); err != nil {
		return nil, err
	}
	users, err := s.users.SearchUsers(ctx, query, userID, repository.ListOptions{Limit: SearchLimit})
	if err != nil {
		return nil, fmt.Errorf("service/users: %w", err)
	}
	return users, nil
}

// Profile returns a user's account row.
func (s *UserService) Profile(ctx context.Context, userID string) (*model.User, error) {
	return requireUser(ctx, s.users, userID)
}

// UpdateBio replaces a user's bio. Surrounding whitespace is dropped.
func (s *UserService) UpdateBio(ctx context.Context, userID, bio string) (*model.User, error) {
	bio = strings.TrimSpace(bio)
	if utf8.RuneCountInString(bio) > MaxBioLength {
		return nil, apperror.Coded(apperror.ErrValidation, "bio_too_long",
			fmt.Sprintf("bio must be at most %d characters", MaxBioLength))
	}
	if _, err := requireUser(ctx, s.users, userID); err != nil {
		return nil, err
	}
	u, err := s.users.UpdateBio(ctx, userID, bio)
	if err != nil {
		return nil, fmt.Errorf("service/users: %w", err)
	}
	s.logger.Info("bio updated", slog.String("userID", userID))
	return u, nil
}
