package handler

import (
	"errors"
	"net/http"

	"github.com/snowballr/snowballr-api/internal/api/middleware"
	"github.com/snowballr/snowballr-api/internal/api/response"
	"github.com/snowballr/snowballr-api/internal/api/validation"
	"github.com/snowballr/snowballr-api/internal/auth"
	"github.com/snowballr/snowballr-api/internal/author"
	"github.com/snowballr/snowballr-api/internal/paper"
	"github.com/snowballr/snowballr-api/internal/source"
)

type authorFieldsRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	ORCID     *string `json:"orcid"`
}

var authorFields = []string{"firstName", "lastName", "orcid"}

// AuthorHandler handles author endpoints.
type AuthorHandler struct {
	v       *validation.Validator
	authors author.Repository
	papers  paper.Repository
	sources source.Store
}

// NewAuthorHandler creates a new AuthorHandler.
func NewAuthorHandler(v *validation.Validator, authors author.Repository, papers paper.Repository, sources source.Store) *AuthorHandler {
	return &AuthorHandler{
		v:       v,
		authors: authors,
		papers:  papers,
		sources: sources,
	}
}

// List handles GET /authors.
func (h *AuthorHandler) List(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.v.ValidateUserEntry(w, r, validation.Entry{}); !ok {
		return
	}

	authors, err := h.authors.List(r.Context())
	if err != nil {
		response.Internal(w, middleware.GetRequestID(r.Context()), "failed to list authors", err)
		return
	}
	response.Success(w, http.StatusOK, authorListResponse{Authors: toAuthorResponses(authors)})
}

// GetByID handles GET /authors/{id}.
func (h *AuthorHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	in, ok := h.v.ValidateUserEntry(w, r, validation.Entry{PathIDs: []string{"id"}})
	if !ok {
		return
	}

	a, ok := h.load(w, r, in.IDs["id"])
	if !ok {
		return
	}
	h.writeAuthor(w, r, http.StatusOK, a)
}

// Create handles POST /authors.
func (h *AuthorHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, ok := h.v.ValidateUserEntry(w, r, validation.Entry{
		Requirement: validation.Require(auth.NeedsPO{}),
		Body:        true,
		Params:      []string{"lastName"},
	})
	if !ok {
		return
	}

	var req authorFieldsRequest
	if err := in.Body.Decode(&req); err != nil {
		response.Err(w, http.StatusUnprocessableEntity, "invalid json body")
		return
	}
	if !validateAuthorFields(w, req) {
		return
	}
	sources, hasSources, ok := sourcesFromBody(in.Body)
	if !ok {
		response.Err(w, http.StatusUnprocessableEntity, "sources must be an object")
		return
	}

	a := &author.Author{}
	if req.FirstName != nil {
		a.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		a.LastName = *req.LastName
	}
	if req.ORCID != nil {
		a.ORCID = *req.ORCID
	}

	requestID := middleware.GetRequestID(r.Context())
	if err := h.authors.Create(r.Context(), a); err != nil {
		response.Internal(w, requestID, "failed to create author", err)
		return
	}
	if hasSources && len(sources) > 0 {
		if err := h.sources.Add(r.Context(), sourceKey(a.ID), sources); err != nil {
			response.Internal(w, requestID, "failed to store author sources", err)
			return
		}
	}

	h.writeAuthor(w, r, http.StatusCreated, a)
}

// Update handles PATCH /authors/{id}: reconcile the source cache, then
// update the row.
func (h *AuthorHandler) Update(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	in, ok := h.v.ValidateUserEntry(w, r, validation.Entry{
		PathIDs:     []string{"id"},
		Requirement: validation.Require(auth.NeedsPO{}),
		Body:        true,
	})
	if !ok {
		return
	}
	id := in.IDs["id"]

	var req authorFieldsRequest
	if err := in.Body.Decode(&req); err != nil {
		response.Err(w, http.StatusUnprocessableEntity, "invalid json body")
		return
	}
	if !validateAuthorFields(w, req) {
		return
	}

	if err := source.Reconcile(r.Context(), h.sources, sourceKey(id), in.Body.Present(authorFields...)); err != nil {
		response.Internal(w, requestID, "failed to reconcile author sources", err)
		return
	}

	a, err := h.authors.Update(r.Context(), id, author.UpdateFields{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		ORCID:     req.ORCID,
	})
	if err != nil {
		if errors.Is(err, author.ErrNotFound) {
			response.Err(w, http.StatusNotFound, "author not found")
			return
		}
		response.Internal(w, requestID, "failed to update author", err)
		return
	}

	h.writeAuthor(w, r, http.StatusOK, a)
}

// Delete handles DELETE /authors/{id}.
func (h *AuthorHandler) Delete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	in, ok := h.v.ValidateUserEntry(w, r, validation.Entry{
		PathIDs:     []string{"id"},
		Requirement: validation.Require(auth.NeedsAdmin{}),
	})
	if !ok {
		return
	}
	id := in.IDs["id"]

	if err := h.authors.Delete(r.Context(), id); err != nil {
		if errors.Is(err, author.ErrNotFound) {
			response.Err(w, http.StatusNotFound, "author not found")
			return
		}
		response.Internal(w, requestID, "failed to delete author", err)
		return
	}
	if err := h.sources.Delete(r.Context(), sourceKey(id)); err != nil {
		response.Internal(w, requestID, "failed to delete author sources", err)
		return
	}

	response.NoContent(w)
}

// Papers handles GET /authors/{id}/papers.
func (h *AuthorHandler) Papers(w http.ResponseWriter, r *http.Request) {
	in, ok := h.v.ValidateUserEntry(w, r, validation.Entry{PathIDs: []string{"id"}})
	if !ok {
		return
	}
	id := in.IDs["id"]
	if _, ok := h.load(w, r, id); !ok {
		return
	}

	papers, err := h.papers.ListByAuthor(r.Context(), id)
	if err != nil {
		response.Internal(w, middleware.GetRequestID(r.Context()), "failed to list author papers", err)
		return
	}
	response.Success(w, http.StatusOK, paperListResponse{Papers: toPaperResponses(papers)})
}

func (h *AuthorHandler) load(w http.ResponseWriter, r *http.Request, id int64) (*author.Author, bool) {
	a, err := h.authors.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, author.ErrNotFound) {
			response.Err(w, http.StatusNotFound, "author not found")
			return nil, false
		}
		response.Internal(w, middleware.GetRequestID(r.Context()), "failed to get author", err)
		return nil, false
	}
	return a, true
}

func (h *AuthorHandler) writeAuthor(w http.ResponseWriter, r *http.Request, status int, a *author.Author) {
	st, err := source.Status(r.Context(), h.sources, sourceKey(a.ID))
	if err != nil {
		response.Internal(w, middleware.GetRequestID(r.Context()), "failed to read author sources", err)
		return
	}
	response.Success(w, status, toAuthorResponse(a, st))
}

func validateAuthorFields(w http.ResponseWriter, req authorFieldsRequest) bool {
	fieldErrors := validation.ValidateAuthor(validation.AuthorFields{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		ORCID:     req.ORCID,
	})
	if len(fieldErrors) > 0 {
		response.Err(w, http.StatusUnprocessableEntity, validation.Summary(fieldErrors))
		return false
	}
	return true
}
