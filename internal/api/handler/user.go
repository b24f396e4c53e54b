package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/snowballr/snowballr-api/internal/api/middleware"
	"github.com/snowballr/snowballr-api/internal/api/response"
	"github.com/snowballr/snowballr-api/internal/api/validation"
	"github.com/snowballr/snowballr-api/internal/auth"
	"github.com/snowballr/snowballr-api/internal/mail"
	"github.com/snowballr/snowballr-api/internal/user"
)

type createUserRequest struct {
	Email string `json:"email"`
}

type patchUserRequest struct {
	Email     *string `json:"email"`
	Password  *string `json:"password"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	IsAdmin   *bool   `json:"isAdmin"`
	Status    *string `json:"status"`
}

type resetRequest struct {
	Email string `json:"email"`
}

type userListResponse struct {
	Users []userResponse `json:"users"`
}

// UserHandler handles user endpoints.
type UserHandler struct {
	v       *validation.Validator
	users   user.Repository
	auth    AuthService
	mailer  mail.Sender
	siteURL string
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(v *validation.Validator, users user.Repository, authService AuthService, mailer mail.Sender, siteURL string) *UserHandler {
	return &UserHandler{
		v:       v,
		users:   users,
		auth:    authService,
		mailer:  mailer,
		siteURL: strings.TrimSpace(siteURL),
	}
}

// Create handles POST /users. It creates an unregistered user and mails an
// invitation link.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	in, ok := h.v.ValidateUserEntry(w, r, validation.Entry{
		Requirement: validation.Require(auth.NeedsPO{}),
		Body:        true,
		Params:      []string{"email"},
	})
	if !ok {
		return
	}

	if h.siteURL == "" {
		response.Err(w, http.StatusUnauthorized, "site url not configured")
		return
	}

	var req createUserRequest
	if err := in.Body.Decode(&req); err != nil {
		response.Err(w, http.StatusUnprocessableEntity, "invalid json body")
		return
	}
	if fieldErrors := validation.ValidateEmail("email", req.Email); len(fieldErrors) > 0 {
		response.Err(w, http.StatusUnprocessableEntity, validation.Summary(fieldErrors))
		return
	}

	u := &user.User{Email: req.Email, Status: user.StatusUnregistered}
	if err := h.users.Create(r.Context(), u); err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			response.Err(w, http.StatusUnprocessableEntity, "email already exists")
			return
		}
		response.Internal(w, requestID, "failed to create user", err)
		return
	}

	token, err := h.auth.IssueToken(r.Context(), auth.KindInvitation, u)
	if err != nil {
		response.Internal(w, requestID, "failed to issue invitation token", err)
		return
	}

	if err := h.mailer.Send(r.Context(), mail.InvitationMessage(u.Email, h.siteURL, token)); err != nil {
		slog.Error("failed to send invitation", "error", err, "userId", u.ID, "requestId", requestID)
	}

	response.Success(w, http.StatusCreated, toUserResponse(u))
}

// List handles GET /users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.v.ValidateUserEntry(w, r, validation.Entry{
		Requirement: validation.Require(auth.NeedsPO{}),
	}); !ok {
		return
	}

	users, err := h.users.List(r.Context())
	if err != nil {
		response.Internal(w, middleware.GetRequestID(r.Context()), "failed to list users", err)
		return
	}

	response.Success(w, http.StatusOK, userListResponse{Users: toUserResponses(users)})
}

// GetByID handles GET /users/{id}.
func (h *UserHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	in, ok := h.v.ValidateUserEntry(w, r, validation.Entry{
		PathIDs: []string{"id"},
		Requirement: func(ids validation.IDs) auth.Requirement {
			return auth.NeedsSameUserOrPO{UserID: ids["id"]}
		},
	})
	if !ok {
		return
	}

	u, err := h.users.GetByID(r.Context(), in.IDs["id"])
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			response.Err(w, http.StatusNotFound, "user not found")
			return
		}
		response.Internal(w, middleware.GetRequestID(r.Context()), "failed to get user", err)
		return
	}

	response.Success(w, http.StatusOK, toUserResponse(u))
}

// Update handles PATCH /users/{id}. A request carrying an invitationToken or
// resetToken header is authorized by that single-use token instead of the
// session; the token is consumed once the update succeeds.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	ids, ok := validation.PathIDs(w, r, "id")
	if !ok {
		return
	}
	id := ids["id"]

	var (
		token string
		kind  auth.Kind
	)
	switch {
	case r.Header.Get(InvitationTokenHeader) != "":
		token, kind = r.Header.Get(InvitationTokenHeader), auth.KindInvitation
	case r.Header.Get(ResetTokenHeader) != "":
		token, kind = r.Header.Get(ResetTokenHeader), auth.KindReset
	}

	p := auth.PrincipalFromContext(r.Context())
	if token != "" {
		if err := h.auth.CheckToken(r.Context(), token, kind, id); err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				validation.NotAuthorized(w)
				return
			}
			response.Internal(w, requestID, "failed to check token", err)
			return
		}
	} else if !h.v.Authorize(w, r, p, auth.NeedsSameUserOrPO{UserID: id}) {
		return
	}

	body, ok := validation.ReadBody(w, r)
	if !ok {
		return
	}
	if token != "" && !validation.RequireParams(w, body, "password") {
		return
	}

	var req patchUserRequest
	if err := body.Decode(&req); err != nil {
		response.Err(w, http.StatusUnprocessableEntity, "invalid json body")
		return
	}

	if fieldErrors := validation.ValidateUserPatch(validation.UserPatch{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Status:    req.Status,
	}); len(fieldErrors) > 0 {
		response.Err(w, http.StatusUnprocessableEntity, validation.Summary(fieldErrors))
		return
	}

	privileged := req.IsAdmin != nil || req.Status != nil
	if privileged && (token != "" || !p.IsAdmin) {
		validation.NotAuthorized(w)
		return
	}

	// Session claims carry isAdmin and status; tokens issued under the old
	// values are revoked below.
	var before *user.User
	if privileged {
		var err error
		before, err = h.users.GetByID(r.Context(), id)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				response.Err(w, http.StatusNotFound, "user not found")
				return
			}
			response.Internal(w, requestID, "failed to load user", err)
			return
		}
	}

	fields := user.UpdateFields{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		IsAdmin:   req.IsAdmin,
		Status:    req.Status,
	}
	if req.Password != nil {
		hash, err := h.auth.HashPassword(*req.Password)
		if err != nil {
			response.Internal(w, requestID, "failed to hash password", err)
			return
		}
		fields.PasswordHash = &hash
	}
	if kind == auth.KindInvitation {
		registered := user.StatusRegistered
		fields.Status = &registered
	}

	u, err := h.users.Update(r.Context(), id, fields)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrNotFound):
			response.Err(w, http.StatusNotFound, "user not found")
		case errors.Is(err, user.ErrDuplicateEmail):
			response.Err(w, http.StatusUnprocessableEntity, "email already exists")
		default:
			response.Internal(w, requestID, "failed to update user", err)
		}
		return
	}

	if token != "" {
		if err := h.auth.RevokeToken(r.Context(), token); err != nil {
			slog.Error("failed to consume token", "error", err, "userId", id, "requestId", requestID)
		}
	}

	if before != nil && (before.IsAdmin != u.IsAdmin || before.Status != u.Status) {
		if err := h.auth.RevokeAll(r.Context(), id); err != nil {
			response.Internal(w, requestID, "failed to revoke user tokens", err)
			return
		}
	}

	response.Success(w, http.StatusOK, toUserResponse(u))
}

// Delete handles DELETE /users/{id}. Users are soft-deleted and every token
// they hold is revoked.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	in, ok := h.v.ValidateUserEntry(w, r, validation.Entry{
		PathIDs:     []string{"id"},
		Requirement: validation.Require(auth.NeedsAdmin{}),
	})
	if !ok {
		return
	}
	id := in.IDs["id"]

	deleted := user.StatusDeleted
	if _, err := h.users.Update(r.Context(), id, user.UpdateFields{Status: &deleted}); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			response.Err(w, http.StatusNotFound, "user not found")
			return
		}
		response.Internal(w, requestID, "failed to delete user", err)
		return
	}

	if err := h.auth.RevokeAll(r.Context(), id); err != nil {
		response.Internal(w, requestID, "failed to revoke user tokens", err)
		return
	}

	response.NoContent(w)
}

// RequestReset handles POST /users/reset. The response is the same whether
// or not the address belongs to an account.
func (h *UserHandler) RequestReset(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	in, ok := h.v.ValidateUserEntry(w, r, validation.Entry{
		Body:   true,
		Params: []string{"email"},
	})
	if !ok {
		return
	}

	if h.siteURL == "" {
		response.Err(w, http.StatusUnauthorized, "site url not configured")
		return
	}

	var req resetRequest
	if err := in.Body.Decode(&req); err != nil {
		response.Err(w, http.StatusUnprocessableEntity, "invalid json body")
		return
	}

	u, err := h.users.GetByEmail(r.Context(), req.Email)
	switch {
	case errors.Is(err, user.ErrNotFound):
	case err != nil:
		response.Internal(w, requestID, "failed to look up user", err)
		return
	case u.Status != user.StatusDeleted:
		token, err := h.auth.IssueToken(r.Context(), auth.KindReset, u)
		if err != nil {
			response.Internal(w, requestID, "failed to issue reset token", err)
			return
		}
		if err := h.mailer.Send(r.Context(), mail.ResetMessage(u.Email, h.siteURL, token)); err != nil {
			slog.Error("failed to send reset mail", "error", err, "userId", u.ID, "requestId", requestID)
		}
	}

	response.Success(w, http.StatusOK, successResponse{Success: true})
}
