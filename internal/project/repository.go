package project

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a project record is not found.
var ErrNotFound = errors.New("project not found")

// ErrMemberNotFound is returned when a membership row does not exist.
var ErrMemberNotFound = errors.New("membership not found")

// ErrUnknownReference is returned when a membership refers to a missing user or project.
var ErrUnknownReference = errors.New("user or project does not exist")

// Repository provides operations on projects and their membership rows.
// The membership queries back every project-scoped authorization check.
type Repository interface {
	Create(ctx context.Context, p *Project) error
	GetByID(ctx context.Context, id int64) (*Project, error)

	OwnsAnyProject(ctx context.Context, userID int64) (bool, error)
	IsOwner(ctx context.Context, userID, projectID int64) (bool, error)
	IsMember(ctx context.Context, userID, projectID int64) (bool, error)

	ListMembers(ctx context.Context, projectID int64) ([]Member, error)
	AddMember(ctx context.Context, m *Member) error
	RemoveMember(ctx context.Context, projectID, userID int64) error
}
