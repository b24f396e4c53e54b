package validation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/snowballr/snowballr-api/internal/api/middleware"
	"github.com/snowballr/snowballr-api/internal/api/response"
	"github.com/snowballr/snowballr-api/internal/auth"
)

const maxBodyBytes = 1 << 20

// Authorizer decides whether a principal satisfies a requirement.
type Authorizer interface {
	Authorize(ctx context.Context, p auth.Principal, req auth.Requirement) error
}

// IDs holds the parsed integer path parameters of a request.
type IDs map[string]int64

// Entry describes the checks a request must pass before its handler runs.
type Entry struct {
	// PathIDs are chi URL parameter names that must parse as integers.
	PathIDs []string
	// Requirement builds the role requirement from the parsed ids. Nil means
	// auth.None.
	Requirement func(ids IDs) auth.Requirement
	// Body requires a JSON object body.
	Body bool
	// Params are body keys that must be present and not null.
	Params []string
}

// Require returns a Requirement builder ignoring the path ids.
func Require(req auth.Requirement) func(IDs) auth.Requirement {
	return func(IDs) auth.Requirement { return req }
}

// Request is the result of a successful ValidateUserEntry.
type Request struct {
	IDs       IDs
	Body      Body
	Principal auth.Principal
}

// Validator runs the entry gates for every handler.
type Validator struct {
	authorizer Authorizer
}

// NewValidator creates a Validator using the given authorizer.
func NewValidator(a Authorizer) *Validator {
	return &Validator{authorizer: a}
}

// ValidateUserEntry checks, in order, the path ids, the role requirement
// and the body. On the first failure it writes the error response and
// returns false; the caller must stop without writing anything else.
func (v *Validator) ValidateUserEntry(w http.ResponseWriter, r *http.Request, e Entry) (*Request, bool) {
	ids, ok := PathIDs(w, r, e.PathIDs...)
	if !ok {
		return nil, false
	}

	p := auth.PrincipalFromContext(r.Context())

	var req auth.Requirement = auth.None{}
	if e.Requirement != nil {
		req = e.Requirement(ids)
	}
	if !v.Authorize(w, r, p, req) {
		return nil, false
	}

	out := &Request{IDs: ids, Principal: p, Body: Body{}}
	if !e.Body {
		return out, true
	}

	body, ok := ReadBody(w, r)
	if !ok || !RequireParams(w, body, e.Params...) {
		return nil, false
	}
	out.Body = body
	return out, true
}

// PathIDs parses the named chi URL parameters as integers, writing 422 for
// the first one that does not parse.
func PathIDs(w http.ResponseWriter, r *http.Request, names ...string) (IDs, bool) {
	ids := IDs{}
	for _, name := range names {
		raw := chi.URLParam(r, name)
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			InvalidID(w, raw)
			return nil, false
		}
		ids[name] = id
	}
	return ids, true
}

// RequireParams writes 422 for the first name missing from body.
func RequireParams(w http.ResponseWriter, body Body, names ...string) bool {
	for _, name := range names {
		if !body.Has(name) {
			MissingParameter(w, name)
			return false
		}
	}
	return true
}

// Authorize checks req for p and writes 401 on denial. Lookup failures
// produce 500.
func (v *Validator) Authorize(w http.ResponseWriter, r *http.Request, p auth.Principal, req auth.Requirement) bool {
	err := v.authorizer.Authorize(r.Context(), p, req)
	if err == nil {
		return true
	}
	if errors.Is(err, auth.ErrNotAuthorized) {
		NotAuthorized(w)
		return false
	}
	response.Internal(w, middleware.GetRequestID(r.Context()), "authorization check failed", err)
	return false
}

// ReadBody enforces a JSON content type and parses the body as an object.
func ReadBody(w http.ResponseWriter, r *http.Request) (Body, bool) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		response.Err(w, http.StatusUnsupportedMediaType, "content type must be application/json")
		return Body{}, false
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		response.Err(w, http.StatusUnprocessableEntity, "invalid json body")
		return Body{}, false
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		response.Err(w, http.StatusUnprocessableEntity, "invalid json body")
		return Body{}, false
	}
	return Body{fields: fields, raw: raw}, true
}

// NotAuthorized writes the 401 denial.
func NotAuthorized(w http.ResponseWriter) {
	response.Err(w, http.StatusUnauthorized, "not authorized")
}

// InvalidID writes the 422 response for an id that is not an integer.
func InvalidID(w http.ResponseWriter, raw string) {
	response.Err(w, http.StatusUnprocessableEntity, "invalid id: "+raw)
}

// MissingParameter writes the 422 response for an absent body key.
func MissingParameter(w http.ResponseWriter, name string) {
	response.Err(w, http.StatusUnprocessableEntity, "missing parameter: "+name)
}
