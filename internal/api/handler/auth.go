package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/snowballr/snowballr-api/internal/api/middleware"
	"github.com/snowballr/snowballr-api/internal/api/response"
	"github.com/snowballr/snowballr-api/internal/api/validation"
	"github.com/snowballr/snowballr-api/internal/auth"
	"github.com/snowballr/snowballr-api/internal/user"
)

// Token headers.
const (
	InvitationTokenHeader = "invitationToken"
	ResetTokenHeader      = "resetToken"
	RefreshTokenHeader    = "refreshToken"
)

// AuthService is the subset of auth.Service used by the handlers.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*auth.Session, error)
	Logout(ctx context.Context, raw string) error
	Refresh(ctx context.Context, raw string) (*auth.Session, error)
	IssueToken(ctx context.Context, kind auth.Kind, u *user.User) (string, error)
	CheckToken(ctx context.Context, raw string, kind auth.Kind, userID int64) error
	RevokeToken(ctx context.Context, raw string) error
	RevokeAll(ctx context.Context, userID int64) error
	HashPassword(password string) (string, error)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token        string       `json:"token"`
	RefreshToken string       `json:"refreshToken"`
	User         userResponse `json:"user"`
}

type successResponse struct {
	Success bool `json:"success"`
}

// AuthHandler handles login, logout and token refresh.
type AuthHandler struct {
	v    *validation.Validator
	auth AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(v *validation.Validator, authService AuthService) *AuthHandler {
	return &AuthHandler{v: v, auth: authService}
}

// Login handles POST /login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	in, ok := h.v.ValidateUserEntry(w, r, validation.Entry{
		Body:   true,
		Params: []string{"email", "password"},
	})
	if !ok {
		return
	}

	var req loginRequest
	if err := in.Body.Decode(&req); err != nil {
		response.Err(w, http.StatusUnprocessableEntity, "invalid json body")
		return
	}

	sess, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			response.Err(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		response.Internal(w, middleware.GetRequestID(r.Context()), "login failed", err)
		return
	}

	response.Success(w, http.StatusOK, toSessionResponse(sess))
}

// Logout handles GET /logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	raw := r.Header.Get(middleware.AuthenticationHeader)
	if raw == "" {
		validation.NotAuthorized(w)
		return
	}

	if err := h.auth.Logout(r.Context(), raw); err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			validation.NotAuthorized(w)
			return
		}
		response.Internal(w, middleware.GetRequestID(r.Context()), "logout failed", err)
		return
	}

	response.Success(w, http.StatusOK, successResponse{Success: true})
}

// Refresh handles POST /refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	raw := r.Header.Get(RefreshTokenHeader)
	if raw == "" {
		validation.NotAuthorized(w)
		return
	}

	sess, err := h.auth.Refresh(r.Context(), raw)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			validation.NotAuthorized(w)
			return
		}
		response.Internal(w, middleware.GetRequestID(r.Context()), "token refresh failed", err)
		return
	}

	response.Success(w, http.StatusOK, toSessionResponse(sess))
}

func toSessionResponse(s *auth.Session) sessionResponse {
	return sessionResponse{
		Token:        s.Token,
		RefreshToken: s.RefreshToken,
		User:         toUserResponse(s.User),
	}
}
