package validation

import (
	"strings"
)

// PaperFields mirrors the fields of a paper create or PATCH that need
// validation.
type PaperFields struct {
	DOI             *string
	Title           *string
	Year            *int
	PublicationType *string
}

var publicationTypes = map[string]bool{
	"":           true,
	"article":    true,
	"book":       true,
	"chapter":    true,
	"conference": true,
	"preprint":   true,
	"thesis":     true,
	"other":      true,
}

// ValidatePaper validates the paper fields that are present.
func ValidatePaper(req PaperFields) []FieldError {
	var errs []FieldError

	if req.DOI != nil {
		doi := strings.TrimSpace(*req.DOI)
		if doi != "" && !strings.HasPrefix(doi, "10.") {
			errs = append(errs, FieldError{Field: "doi", Message: "doi must start with \"10.\""})
		}
	}
	if req.Title != nil {
		switch {
		case strings.TrimSpace(*req.Title) == "":
			errs = append(errs, FieldError{Field: "title", Message: "title must not be empty"})
		case len(*req.Title) > 1000:
			errs = append(errs, FieldError{Field: "title", Message: "title must be at most 1000 characters"})
		}
	}
	if req.Year != nil && (*req.Year < 1000 || *req.Year > 9999) {
		errs = append(errs, FieldError{Field: "year", Message: "year must have four digits"})
	}
	if req.PublicationType != nil && !publicationTypes[*req.PublicationType] {
		errs = append(errs, FieldError{Field: "publicationType", Message: "publicationType is not supported"})
	}

	return errs
}
