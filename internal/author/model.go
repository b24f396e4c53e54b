package author

import "time"

// Author represents a row in the authors table.
type Author struct {
	ID        int64
	FirstName string
	LastName  string
	ORCID     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UpdateFields holds patchable author fields. Nil fields are not updated.
type UpdateFields struct {
	FirstName *string
	LastName  *string
	ORCID     *string
}
