package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/snowballr/snowballr-api/internal/api/middleware"
	"github.com/snowballr/snowballr-api/internal/api/response"
	"github.com/snowballr/snowballr-api/internal/api/validation"
	"github.com/snowballr/snowballr-api/internal/auth"
	"github.com/snowballr/snowballr-api/internal/author"
	"github.com/snowballr/snowballr-api/internal/paper"
	"github.com/snowballr/snowballr-api/internal/source"
)

type paperFieldsRequest struct {
	DOI             *string `json:"doi"`
	Title           *string `json:"title"`
	Abstract        *string `json:"abstract"`
	Year            *int    `json:"year"`
	Publisher       *string `json:"publisher"`
	PublicationType *string `json:"publicationType"`
	OpenAccess      *bool   `json:"openAccess"`
}

// paperFields are the patchable columns, named as in paperFieldsRequest.
var paperFields = []string{"doi", "title", "abstract", "year", "publisher", "publicationType", "openAccess"}

type createPaperRequest struct {
	paperFieldsRequest
	AuthorIDs    []int64 `json:"authorIds"`
	ReferenceIDs []int64 `json:"referenceIds"`
}

type paperListResponse struct {
	Papers []paperResponse `json:"papers"`
}

type authorListResponse struct {
	Authors []authorResponse `json:"authors"`
}

// PaperHandler handles paper endpoints.
type PaperHandler struct {
	v       *validation.Validator
	papers  paper.Repository
	authors author.Repository
	sources source.Store
}

// NewPaperHandler creates a new PaperHandler.
func NewPaperHandler(v *validation.Validator, papers paper.Repository, authors author.Repository, sources source.Store) *PaperHandler {
	return &PaperHandler{
		v:       v,
		papers:  papers,
		authors: authors,
		sources: sources,
	}
}

// List handles GET /papers. With ?projectId it lists the project's papers
// for its members; without it lists every paper for admins.
func (h *PaperHandler) List(w http.ResponseWriter, r *http.Request) {
	projectID, hasProject, ok := queryID(w, r, "projectId")
	if !ok {
		return
	}

	var req auth.Requirement = auth.NeedsAdmin{}
	if hasProject {
		req = auth.NeedsMemberOfProject{ProjectID: projectID}
	}
	if _, ok := h.v.ValidateUserEntry(w, r, validation.Entry{Requirement: validation.Require(req)}); !ok {
		return
	}

	var (
		papers []paper.Paper
		err    error
	)
	if hasProject {
		papers, err = h.papers.ListByProject(r.Context(), projectID)
	} else {
		papers, err = h.papers.List(r.Context())
	}
	if err != nil {
		response.Internal(w, middleware.GetRequestID(r.Context()), "failed to list papers", err)
		return
	}

	response.Success(w, http.StatusOK, paperListResponse{Papers: toPaperResponses(papers)})
}

// GetByID handles GET /papers/{id}.
func (h *PaperHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	in, ok := h.v.ValidateUserEntry(w, r, validation.Entry{PathIDs: []string{"id"}})
	if !ok {
		return
	}

	p, ok := h.load(w, r, in.IDs["id"])
	if !ok {
		return
	}
	h.writePaper(w, r, http.StatusOK, p)
}

// Create handles POST /papers. ?projectId links the new paper to a project
// the caller owns.
func (h *PaperHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	projectID, hasProject, ok := queryID(w, r, "projectId")
	if !ok {
		return
	}

	var req auth.Requirement = auth.NeedsPO{}
	if hasProject {
		req = auth.NeedsPOOfProject{ProjectID: projectID}
	}
	in, ok := h.v.ValidateUserEntry(w, r, validation.Entry{
		Requirement: validation.Require(req),
		Body:        true,
		Params:      []string{"title"},
	})
	if !ok {
		return
	}

	var body createPaperRequest
	if err := in.Body.Decode(&body); err != nil {
		response.Err(w, http.StatusUnprocessableEntity, "invalid json body")
		return
	}
	if !validatePaperFields(w, body.paperFieldsRequest) {
		return
	}
	sources, hasSources, ok := sourcesFromBody(in.Body)
	if !ok {
		response.Err(w, http.StatusUnprocessableEntity, "sources must be an object")
		return
	}

	p := &paper.Paper{}
	applyPaperFields(p, body.paperFieldsRequest)
	if err := h.papers.Create(r.Context(), p); err != nil {
		response.Internal(w, requestID, "failed to create paper", err)
		return
	}

	if hasProject {
		if err := h.papers.AddToProject(r.Context(), projectID, p.ID); err != nil {
			h.linkError(w, requestID, err)
			return
		}
	}
	for i, authorID := range body.AuthorIDs {
		if err := h.authors.LinkPaper(r.Context(), p.ID, authorID, i); err != nil {
			h.linkError(w, requestID, err)
			return
		}
	}
	for _, refID := range body.ReferenceIDs {
		if err := h.papers.AddCitation(r.Context(), p.ID, refID); err != nil {
			h.linkError(w, requestID, err)
			return
		}
	}

	if hasSources && len(sources) > 0 {
		if err := h.sources.Add(r.Context(), sourceKey(p.ID), sources); err != nil {
			response.Internal(w, requestID, "failed to store paper sources", err)
			return
		}
	}

	h.writePaper(w, r, http.StatusCreated, p)
}

// Update handles PATCH /papers/{id}. Patched fields are first removed from
// the source cache, then written to the database. Null values and unknown
// keys confirm nothing.
func (h *PaperHandler) Update(w http.ResponseWriter, r *http.Request) {
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

	var req paperFieldsRequest
	if err := in.Body.Decode(&req); err != nil {
		response.Err(w, http.StatusUnprocessableEntity, "invalid json body")
		return
	}
	if !validatePaperFields(w, req) {
		return
	}

	if err := source.Reconcile(r.Context(), h.sources, sourceKey(id), in.Body.Present(paperFields...)); err != nil {
		response.Internal(w, requestID, "failed to reconcile paper sources", err)
		return
	}

	p, err := h.papers.Update(r.Context(), id, paper.UpdateFields{
		DOI:             req.DOI,
		Title:           req.Title,
		Abstract:        req.Abstract,
		Year:            req.Year,
		Publisher:       req.Publisher,
		PublicationType: req.PublicationType,
		OpenAccess:      req.OpenAccess,
	})
	if err != nil {
		if errors.Is(err, paper.ErrNotFound) {
			response.Err(w, http.StatusNotFound, "paper not found")
			return
		}
		response.Internal(w, requestID, "failed to update paper", err)
		return
	}

	h.writePaper(w, r, http.StatusOK, p)
}

// Citations handles GET /papers/{id}/citations.
func (h *PaperHandler) Citations(w http.ResponseWriter, r *http.Request) {
	h.listRelated(w, r, h.papers.Citations)
}

// References handles GET /papers/{id}/references.
func (h *PaperHandler) References(w http.ResponseWriter, r *http.Request) {
	h.listRelated(w, r, h.papers.References)
}

// Authors handles GET /papers/{id}/authors.
func (h *PaperHandler) Authors(w http.ResponseWriter, r *http.Request) {
	in, ok := h.v.ValidateUserEntry(w, r, validation.Entry{PathIDs: []string{"id"}})
	if !ok {
		return
	}
	id := in.IDs["id"]
	if _, ok := h.load(w, r, id); !ok {
		return
	}

	authors, err := h.authors.ListByPaper(r.Context(), id)
	if err != nil {
		response.Internal(w, middleware.GetRequestID(r.Context()), "failed to list paper authors", err)
		return
	}
	response.Success(w, http.StatusOK, authorListResponse{Authors: toAuthorResponses(authors)})
}

func (h *PaperHandler) listRelated(w http.ResponseWriter, r *http.Request, fetch func(ctx context.Context, id int64) ([]paper.Paper, error)) {
	in, ok := h.v.ValidateUserEntry(w, r, validation.Entry{PathIDs: []string{"id"}})
	if !ok {
		return
	}
	id := in.IDs["id"]
	if _, ok := h.load(w, r, id); !ok {
		return
	}

	papers, err := fetch(r.Context(), id)
	if err != nil {
		response.Internal(w, middleware.GetRequestID(r.Context()), "failed to list related papers", err)
		return
	}
	response.Success(w, http.StatusOK, paperListResponse{Papers: toPaperResponses(papers)})
}

func (h *PaperHandler) load(w http.ResponseWriter, r *http.Request, id int64) (*paper.Paper, bool) {
	p, err := h.papers.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, paper.ErrNotFound) {
			response.Err(w, http.StatusNotFound, "paper not found")
			return nil, false
		}
		response.Internal(w, middleware.GetRequestID(r.Context()), "failed to get paper", err)
		return nil, false
	}
	return p, true
}

func (h *PaperHandler) writePaper(w http.ResponseWriter, r *http.Request, status int, p *paper.Paper) {
	st, err := source.Status(r.Context(), h.sources, sourceKey(p.ID))
	if err != nil {
		response.Internal(w, middleware.GetRequestID(r.Context()), "failed to read paper sources", err)
		return
	}
	response.Success(w, status, toPaperResponse(p, st))
}

func (h *PaperHandler) linkError(w http.ResponseWriter, requestID string, err error) {
	if errors.Is(err, paper.ErrUnknownReference) || errors.Is(err, author.ErrUnknownReference) {
		response.Err(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	response.Internal(w, requestID, "failed to link paper", err)
}

func validatePaperFields(w http.ResponseWriter, req paperFieldsRequest) bool {
	fieldErrors := validation.ValidatePaper(validation.PaperFields{
		DOI:             req.DOI,
		Title:           req.Title,
		Year:            req.Year,
		PublicationType: req.PublicationType,
	})
	if len(fieldErrors) > 0 {
		response.Err(w, http.StatusUnprocessableEntity, validation.Summary(fieldErrors))
		return false
	}
	return true
}

func applyPaperFields(p *paper.Paper, req paperFieldsRequest) {
	if req.DOI != nil {
		p.DOI = *req.DOI
	}
	if req.Title != nil {
		p.Title = *req.Title
	}
	if req.Abstract != nil {
		p.Abstract = *req.Abstract
	}
	p.Year = req.Year
	if req.Publisher != nil {
		p.Publisher = *req.Publisher
	}
	if req.PublicationType != nil {
		p.PublicationType = *req.PublicationType
	}
	if req.OpenAccess != nil {
		p.OpenAccess = *req.OpenAccess
	}
}

// queryID parses an optional integer query parameter, writing 422 when it is
// present but malformed.
func queryID(w http.ResponseWriter, r *http.Request, name string) (id int64, present, ok bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, false, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		validation.InvalidID(w, raw)
		return 0, true, false
	}
	return id, true, true
}
