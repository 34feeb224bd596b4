// Package service holds the backend's business rules. Handlers parse HTTP
// and call these; these validate, enforce the rules and call the
// repositories.
//
//	Handler (HTTP) → Service (rules) → Repository (SQLite)
//	                               ↘ Catalog (TMDB / OpenLibrary)
//
// Services take repository interfaces, never *sqlite.DB, so tests can run
// them against fakes or an in-memory database.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/sakif/movi/internal/apperror"
	"github.com/sakif/movi/internal/auth"
	"github.com/sakif/movi/internal/model"
	"github.com/sakif/movi/internal/repository"
	"github.com/sakif/movi/internal/validate"
)

// usernameAttempts bounds the retries when a derived username is taken.
const usernameAttempts = 5

// AuthService registers and signs in users.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAuthService creates an AuthService.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the user and the issued token.
type AuthResult struct {
	User  *model.User
	Token string
}

// RegisterInput is the register payload after decoding.
type RegisterInput struct {
	Email     string `validate:"required,email,max=254"`
	Password  string `validate:"required,min=6,max=72"`
	FirstName string `validate:"max=100"`
	LastName  string `validate:"max=100"`
	Username  string `validate:"omitempty,min=2,max=32"`
}

// Register creates an account and signs it in. Without a username one is
// derived from the email's local part; if that is taken a short numeric
// suffix is tried. An explicit username that is taken is an error.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Username = strings.TrimSpace(in.Username)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	explicit := in.Username != ""
	base := in.Username
	if !explicit {
		base = usernameFromEmail(in.Email)
	}

	user := &model.User{
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: hash,
	}
	for attempt := 0; ; attempt++ {
		user.Username = base
		if attempt > 0 {
			suffix, err := gonanoid.Generate("0123456789", 4)
			if err != nil {
				return nil, fmt.Errorf("service/auth: generating username suffix: %w", err)
			}
			user.Username = base + suffix
		}

		err = s.users.CreateUser(ctx, user)
		if err == nil {
			break
		}
		if errors.Is(err, apperror.ErrUsernameExists) && !explicit && attempt+1 < usernameAttempts {
			continue
		}
		return nil, err
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)
	return s.issue(user)
}

// usernameFromEmail keeps the letters, digits, dots and underscores of the
// local part, lowercased.
func usernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	var b strings.Builder
	for _, r := range strings.ToLower(local) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '_' {
			b.WriteRune(r)
		}
	}
	name := b.String()
	if len([]rune(name)) < 2 {
		name = "user" + name
	}
	return name
}

// Login checks the password and issues a token. Unknown email and wrong
// password are the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperror.Coded(apperror.ErrValidation, "missing_credentials", "email and password are required")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.InvalidCredentials()
	}
	if err != nil {
		return nil, fmt.Errorf("service/auth: loading user: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Info("login rejected", slog.String("userID", user.ID))
			return nil, apperror.InvalidCredentials()
		}
		return nil, fmt.Errorf("service/auth: %w", err)
	}
	return s.issue(user)
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}
