package paper

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a paper record is not found.
var ErrNotFound = errors.New("paper not found")

// ErrUnknownReference is returned when a link refers to a missing paper,
// project or author.
var ErrUnknownReference = errors.New("referenced record does not exist")

// Repository provides CRUD operations for papers and traversal of the
// citation graph.
type Repository interface {
	Create(ctx context.Context, p *Paper) error
	GetByID(ctx context.Context, id int64) (*Paper, error)
	List(ctx context.Context) ([]Paper, error)
	ListByProject(ctx context.Context, projectID int64) ([]Paper, error)
	ListByAuthor(ctx context.Context, authorID int64) ([]Paper, error)
	Update(ctx context.Context, id int64, fields UpdateFields) (*Paper, error)

	AddToProject(ctx context.Context, projectID, paperID int64) error
	AddCitation(ctx context.Context, citingID, citedID int64) error
	// Citations returns the papers citing id.
	Citations(ctx context.Context, id int64) ([]Paper, error)
	// References returns the papers cited by id.
	References(ctx context.Context, id int64) ([]Paper, error)
}
