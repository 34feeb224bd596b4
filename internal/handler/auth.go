package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/movi/internal/model"
	"github.com/sakif/movi/internal/service"
)

// AuthHandler serves registration and login.
//
// Both return {token, user}. The token is a short-lived HS256 JWT the
// client sends back as "Authorization: Bearer <token>"; there are no
// cookies and no refresh tokens.
type AuthHandler struct {
	auth   *service.AuthService
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(auth *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

type nameBody struct {
	First string `json:"first"`
	Last  string `json:"last"`
}

type registerRequest struct {
	Name     nameBody `json:"name"`
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Username string   `json:"username"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userResponse is the public shape of an account.
type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Name      nameBody  `json:"name"`
	Bio       string    `json:"bio"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		Name:      nameBody{First: u.FirstName, Last: u.LastName},
		Bio:       u.Bio,
		AvatarURL: u.AvatarURL,
		CreatedAt: u.CreatedAt,
	}
}

type authResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

// HandleRegister creates an account.
//
// HTTP: POST /auth/register → 201 {token, user}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.auth.Register(r.Context(), service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.Name.First,
		LastName:  req.Name.Last,
		Username:  req.Username,
	})
	if err != nil {
		h.logger.Info("registration rejected", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{Token: res.Token, User: toUserResponse(res.User)})
}

// HandleLogin signs a user in.
//
// HTTP: POST /auth/login → 200 {token, user}; 400 missing_credentials;
// 401 invalid_credentials
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Token: res.Token, User: toUserResponse(res.User)})
}
