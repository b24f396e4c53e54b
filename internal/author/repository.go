package author

import (
	"context"
	"errors"
)

// ErrNotFound is returned when an author record is not found.
var ErrNotFound = errors.New("author not found")

// ErrUnknownReference is returned when a link refers to a missing paper or author.
var ErrUnknownReference = errors.New("paper or author does not exist")

// Repository provides CRUD operations for authors.
type Repository interface {
	Create(ctx context.Context, a *Author) error
	GetByID(ctx context.Context, id int64) (*Author, error)
	List(ctx context.Context) ([]Author, error)
	Update(ctx context.Context, id int64, fields UpdateFields) (*Author, error)
	Delete(ctx context.Context, id int64) error

	// ListByPaper returns the authors of a paper in byline order.
	ListByPaper(ctx context.Context, paperID int64) ([]Author, error)
	LinkPaper(ctx context.Context, paperID, authorID int64, position int) error
}
