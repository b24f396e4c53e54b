package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/snowballr/snowballr-api/internal/api/middleware"
	"github.com/snowballr/snowballr-api/internal/api/response"
	"github.com/snowballr/snowballr-api/internal/api/validation"
	"github.com/snowballr/snowballr-api/internal/auth"
	"github.com/snowballr/snowballr-api/internal/project"
)

type createProjectRequest struct {
	Name    string `json:"name"`
	OwnerID *int64 `json:"ownerId"`
}

type addMemberRequest struct {
	UserID  int64 `json:"userId"`
	IsOwner bool  `json:"isOwner"`
}

type memberListResponse struct {
	Members []memberResponse `json:"members"`
}

// ProjectHandler handles projects and their membership.
type ProjectHandler struct {
	v        *validation.Validator
	projects project.Repository
}

// NewProjectHandler creates a new ProjectHandler.
func NewProjectHandler(v *validation.Validator, projects project.Repository) *ProjectHandler {
	return &ProjectHandler{v: v, projects: projects}
}

// Create handles POST /projects. The optional ownerId becomes the first
// project owner.
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	in, ok := h.v.ValidateUserEntry(w, r, validation.Entry{
		Requirement: validation.Require(auth.NeedsAdmin{}),
		Body:        true,
		Params:      []string{"name"},
	})
	if !ok {
		return
	}

	var req createProjectRequest
	if err := in.Body.Decode(&req); err != nil {
		response.Err(w, http.StatusUnprocessableEntity, "invalid json body")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > 255 {
		response.Err(w, http.StatusUnprocessableEntity, "name must be between 1 and 255 characters")
		return
	}

	p := &project.Project{Name: name}
	if err := h.projects.Create(r.Context(), p); err != nil {
		response.Internal(w, requestID, "failed to create project", err)
		return
	}

	if req.OwnerID != nil {
		if err := h.projects.AddMember(r.Context(), &project.Member{UserID: *req.OwnerID, ProjectID: p.ID, IsOwner: true}); err != nil {
			if errors.Is(err, project.ErrUnknownReference) {
				response.Err(w, http.StatusUnprocessableEntity, err.Error())
				return
			}
			response.Internal(w, requestID, "failed to add project owner", err)
			return
		}
	}

	response.Success(w, http.StatusCreated, toProjectResponse(p))
}

// Members handles GET /projects/{id}/members.
func (h *ProjectHandler) Members(w http.ResponseWriter, r *http.Request) {
	in, ok := h.v.ValidateUserEntry(w, r, validation.Entry{
		PathIDs: []string{"id"},
		Requirement: func(ids validation.IDs) auth.Requirement {
			return auth.NeedsMemberOfProject{ProjectID: ids["id"]}
		},
	})
	if !ok {
		return
	}

	members, err := h.projects.ListMembers(r.Context(), in.IDs["id"])
	if err != nil {
		response.Internal(w, middleware.GetRequestID(r.Context()), "failed to list members", err)
		return
	}
	response.Success(w, http.StatusOK, memberListResponse{Members: toMemberResponses(members)})
}

// AddMember handles POST /projects/{id}/members.
func (h *ProjectHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	in, ok := h.v.ValidateUserEntry(w, r, validation.Entry{
		PathIDs: []string{"id"},
		Requirement: func(ids validation.IDs) auth.Requirement {
			return auth.NeedsPOOfProject{ProjectID: ids["id"]}
		},
		Body:   true,
		Params: []string{"userId"},
	})
	if !ok {
		return
	}

	var req addMemberRequest
	if err := in.Body.Decode(&req); err != nil {
		response.Err(w, http.StatusUnprocessableEntity, "invalid json body")
		return
	}

	m := &project.Member{UserID: req.UserID, ProjectID: in.IDs["id"], IsOwner: req.IsOwner}
	if err := h.projects.AddMember(r.Context(), m); err != nil {
		if errors.Is(err, project.ErrUnknownReference) {
			response.Err(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		response.Internal(w, middleware.GetRequestID(r.Context()), "failed to add member", err)
		return
	}

	response.Success(w, http.StatusCreated, toMemberResponses([]project.Member{*m})[0])
}

// RemoveMember handles DELETE /projects/{id}/members/{userId}. Members may
// only remove themselves; admins may remove anyone.
func (h *ProjectHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	in, ok := h.v.ValidateUserEntry(w, r, validation.Entry{
		PathIDs: []string{"id", "userId"},
		Requirement: func(ids validation.IDs) auth.Requirement {
			return auth.NeedsSameMemberOfProject{ProjectID: ids["id"], UserID: ids["userId"]}
		},
	})
	if !ok {
		return
	}

	if err := h.projects.RemoveMember(r.Context(), in.IDs["id"], in.IDs["userId"]); err != nil {
		if errors.Is(err, project.ErrMemberNotFound) {
			response.Err(w, http.StatusNotFound, "membership not found")
			return
		}
		response.Internal(w, middleware.GetRequestID(r.Context()), "failed to remove member", err)
		return
	}

	response.NoContent(w)
}
