package user

import "time"

// Account statuses. A user is created unregistered when invited, becomes
// registered after accepting the invitation, and is soft-deleted by admins.
const (
	StatusUnregistered = "unregistered"
	StatusRegistered   = "registered"
	StatusActive       = "active"
	StatusDeleted      = "deleted"
)

// User represents a row in the users table.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	IsAdmin      bool
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CanLogIn reports whether the account may open a session.
func (u *User) CanLogIn() bool {
	return u.PasswordHash != "" && (u.Status == StatusRegistered || u.Status == StatusActive)
}

// UpdateFields holds user-updatable fields. Nil fields are not updated.
// PasswordHash must already be hashed.
type UpdateFields struct {
	Email        *string
	PasswordHash *string
	FirstName    *string
	LastName     *string
	IsAdmin      *bool
	Status       *string
}

// ValidStatus reports whether s is one of the known account statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusUnregistered, StatusRegistered, StatusActive, StatusDeleted:
		return true
	}
	return false
}
