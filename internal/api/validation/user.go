package validation

import (
	"net/mail"
	"strings"

	"github.com/snowballr/snowballr-api/internal/user"
)

// UserPatch mirrors the fields of a user PATCH that need validation.
type UserPatch struct {
	Email     *string
	Password  *string
	FirstName *string
	LastName  *string
	Status    *string
}

// ValidateEmail validates a single email address.
func ValidateEmail(field, email string) []FieldError {
	email = strings.TrimSpace(email)
	if email == "" {
		return []FieldError{{Field: field, Message: field + " is required"}}
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || len(email) > 254 {
		return []FieldError{{Field: field, Message: field + " must be a valid email address"}}
	}
	return nil
}

// ValidateUserPatch validates the fields present in a user PATCH.
func ValidateUserPatch(req UserPatch) []FieldError {
	var errs []FieldError

	if req.Email != nil {
		errs = append(errs, ValidateEmail("email", *req.Email)...)
	}
	if req.Password != nil && len(*req.Password) < 8 {
		errs = append(errs, FieldError{Field: "password", Message: "password must be at least 8 characters"})
	}
	if req.Password != nil && len(*req.Password) > 72 {
		errs = append(errs, FieldError{Field: "password", Message: "password must be at most 72 bytes"})
	}
	if req.FirstName != nil && len(strings.TrimSpace(*req.FirstName)) > 255 {
		errs = append(errs, FieldError{Field: "firstName", Message: "firstName must be at most 255 characters"})
	}
	if req.LastName != nil && len(strings.TrimSpace(*req.LastName)) > 255 {
		errs = append(errs, FieldError{Field: "lastName", Message: "lastName must be at most 255 characters"})
	}
	if req.Status != nil && !user.ValidStatus(*req.Status) {
		errs = append(errs, FieldError{Field: "status", Message: "status must be one of unregistered, registered, active, deleted"})
	}

	return errs
}
