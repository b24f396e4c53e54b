package paper

import "time"

// Paper represents a row in the papers table.
type Paper struct {
	ID              int64
	DOI             string
	Title           string
	Abstract        string
	Year            *int
	Publisher       string
	PublicationType string
	OpenAccess      bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// UpdateFields holds patchable paper fields. Nil fields are not updated.
type UpdateFields struct {
	DOI             *string
	Title           *string
	Abstract        *string
	Year            *int
	Publisher       *string
	PublicationType *string
	OpenAccess      *bool
}
