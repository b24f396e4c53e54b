package auth

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotAuthorized is returned when a principal does not satisfy a
// requirement.
var ErrNotAuthorized = errors.New("not authorized")

// MembershipChecker answers project membership questions. Lookups are made
// per check and never cached.
type MembershipChecker interface {
	OwnsAnyProject(ctx context.Context, userID int64) (bool, error)
	IsOwner(ctx context.Context, userID, projectID int64) (bool, error)
	IsMember(ctx context.Context, userID, projectID int64) (bool, error)
}

// Authorizer decides whether a principal satisfies a requirement.
type Authorizer struct {
	members MembershipChecker
}

// NewAuthorizer creates an Authorizer backed by the given membership checker.
func NewAuthorizer(members MembershipChecker) *Authorizer {
	return &Authorizer{members: members}
}

// Authorize returns nil when p satisfies req, ErrNotAuthorized when it does
// not, and a wrapped error when a membership lookup fails.
func (a *Authorizer) Authorize(ctx context.Context, p Principal, req Requirement) error {
	if _, ok := req.(None); ok {
		return nil
	}
	if !p.Authenticated() {
		return ErrNotAuthorized
	}
	if p.IsAdmin {
		return nil
	}

	var (
		ok  bool
		err error
	)
	switch r := req.(type) {
	case NeedsAdmin:
		ok = false
	case NeedsPO:
		ok, err = a.members.OwnsAnyProject(ctx, p.ID)
	case NeedsPOOfProject:
		ok, err = a.members.IsOwner(ctx, p.ID, r.ProjectID)
	case NeedsMemberOfProject:
		ok, err = a.members.IsMember(ctx, p.ID, r.ProjectID)
	case NeedsSameMemberOfProject:
		if p.ID == r.UserID {
			ok, err = a.members.IsMember(ctx, p.ID, r.ProjectID)
		}
	case NeedsSameUserOrPO:
		ok = p.ID == r.UserID
		if !ok {
			ok, err = a.members.OwnsAnyProject(ctx, p.ID)
		}
	case NeedsSameUser:
		ok = p.ID == r.UserID
	default:
		return fmt.Errorf("unknown requirement %T", req)
	}
	if err != nil {
		return fmt.Errorf("checking membership: %w", err)
	}
	if !ok {
		return ErrNotAuthorized
	}
	return nil
}
