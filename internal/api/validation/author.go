package validation

import "regexp"

var orcidRegex = regexp.MustCompile(`^\d{4}-\d{4}-\d{4}-\d{3}[\dX]$`)

// AuthorFields mirrors the fields of an author create or PATCH that need
// validation.
type AuthorFields struct {
	FirstName *string
	LastName  *string
	ORCID     *string
}

// ValidateAuthor validates the author fields that are present.
func ValidateAuthor(req AuthorFields) []FieldError {
	var errs []FieldError

	if req.FirstName != nil && len(*req.FirstName) > 255 {
		errs = append(errs, FieldError{Field: "firstName", Message: "firstName must be at most 255 characters"})
	}
	if req.LastName != nil && len(*req.LastName) > 255 {
		errs = append(errs, FieldError{Field: "lastName", Message: "lastName must be at most 255 characters"})
	}
	if req.ORCID != nil && *req.ORCID != "" && !orcidRegex.MatchString(*req.ORCID) {
		errs = append(errs, FieldError{Field: "orcid", Message: "orcid must look like 0000-0000-0000-0000"})
	}

	return errs
}
