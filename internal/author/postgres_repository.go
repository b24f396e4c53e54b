package author

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const authorColumns = `a.id, a.first_name, a.last_name, a.orcid, a.created_at, a.updated_at`

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

// Create inserts a new author record.
func (r *PostgresRepository) Create(ctx context.Context, a *Author) error {
	query := `
		INSERT INTO authors (first_name, last_name, orcid)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`

	if err := r.pool.QueryRow(ctx, query, a.FirstName, a.LastName, a.ORCID).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return fmt.Errorf("inserting author: %w", err)
	}
	return nil
}

// GetByID retrieves a single author by id.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*Author, error) {
	query := `SELECT ` + authorColumns + ` FROM authors a WHERE a.id = $1`

	var a Author
	if err := scanAuthor(r.pool.QueryRow(ctx, query, id), &a); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying author: %w", err)
	}
	return &a, nil
}

// List retrieves all authors ordered by id.
func (r *PostgresRepository) List(ctx context.Context) ([]Author, error) {
	return r.list(ctx, `SELECT `+authorColumns+` FROM authors a ORDER BY a.id ASC`)
}

// ListByPaper retrieves the authors of a paper ordered by position.
func (r *PostgresRepository) ListByPaper(ctx context.Context, paperID int64) ([]Author, error) {
	query := `
		SELECT ` + authorColumns + `
		FROM authors a
		JOIN paper_authors pa ON pa.author_id = a.id
		WHERE pa.paper_id = $1
		ORDER BY pa.position ASC, a.id ASC`
	return r.list(ctx, query, paperID)
}

// Update applies the non-nil fields and returns the updated row.
func (r *PostgresRepository) Update(ctx context.Context, id int64, fields UpdateFields) (*Author, error) {
	var sets []string
	var args []any
	argIdx := 1

	add := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argIdx))
		args = append(args, value)
		argIdx++
	}

	if fields.FirstName != nil {
		add("first_name", *fields.FirstName)
	}
	if fields.LastName != nil {
		add("last_name", *fields.LastName)
	}
	if fields.ORCID != nil {
		add("orcid", *fields.ORCID)
	}

	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}

	sets = append(sets, "updated_at = NOW()")
	query := fmt.Sprintf(`UPDATE authors a SET %s WHERE a.id = $%d RETURNING %s`,
		strings.Join(sets, ", "), argIdx, authorColumns)
	args = append(args, id)

	var a Author
	if err := scanAuthor(r.pool.QueryRow(ctx, query, args...), &a); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("updating author: %w", err)
	}
	return &a, nil
}

// Delete removes an author and its paper links.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM authors WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting author: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// LinkPaper records authorship at the given byline position, moving an
// existing link to the new position.
func (r *PostgresRepository) LinkPaper(ctx context.Context, paperID, authorID int64, position int) error {
	query := `
		INSERT INTO paper_authors (paper_id, author_id, position)
		VALUES ($1, $2, $3)
		ON CONFLICT (paper_id, author_id) DO UPDATE SET position = EXCLUDED.position`

	if _, err := r.pool.Exec(ctx, query, paperID, authorID, position); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrUnknownReference
		}
		return fmt.Errorf("linking author: %w", err)
	}
	return nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]Author, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing authors: %w", err)
	}
	defer rows.Close()

	authors := []Author{}
	for rows.Next() {
		var a Author
		if err := scanAuthor(rows, &a); err != nil {
			return nil, fmt.Errorf("scanning author row: %w", err)
		}
		authors = append(authors, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating author rows: %w", err)
	}
	return authors, nil
}

func scanAuthor(row pgx.Row, a *Author) error {
	return row.Scan(&a.ID, &a.FirstName, &a.LastName, &a.ORCID, &a.CreatedAt, &a.UpdatedAt)
}
