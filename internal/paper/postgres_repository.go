package paper

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const paperColumns = `p.id, p.doi, p.title, p.abstract, p.year, p.publisher, p.publication_type, p.open_access, p.created_at, p.updated_at`

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

// Create inserts a new paper record.
func (r *PostgresRepository) Create(ctx context.Context, p *Paper) error {
	query := `
		INSERT INTO papers (doi, title, abstract, year, publisher, publication_type, open_access)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		p.DOI,
		p.Title,
		p.Abstract,
		p.Year,
		p.Publisher,
		p.PublicationType,
		p.OpenAccess,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting paper: %w", err)
	}

	return nil
}

// GetByID retrieves a single paper by id.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*Paper, error) {
	query := `SELECT ` + paperColumns + ` FROM papers p WHERE p.id = $1`

	var p Paper
	if err := scanPaper(r.pool.QueryRow(ctx, query, id), &p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying paper: %w", err)
	}
	return &p, nil
}

// List retrieves all papers ordered by id.
func (r *PostgresRepository) List(ctx context.Context) ([]Paper, error) {
	return r.list(ctx, `SELECT `+paperColumns+` FROM papers p ORDER BY p.id ASC`)
}

// ListByProject retrieves the papers linked to a project.
func (r *PostgresRepository) ListByProject(ctx context.Context, projectID int64) ([]Paper, error) {
	query := `
		SELECT ` + paperColumns + `
		FROM papers p
		JOIN project_papers pp ON pp.paper_id = p.id
		WHERE pp.project_id = $1
		ORDER BY p.id ASC`
	return r.list(ctx, query, projectID)
}

// ListByAuthor retrieves the papers written by an author.
func (r *PostgresRepository) ListByAuthor(ctx context.Context, authorID int64) ([]Paper, error) {
	query := `
		SELECT ` + paperColumns + `
		FROM papers p
		JOIN paper_authors pa ON pa.paper_id = p.id
		WHERE pa.author_id = $1
		ORDER BY p.id ASC`
	return r.list(ctx, query, authorID)
}

// Citations retrieves the papers that cite id.
func (r *PostgresRepository) Citations(ctx context.Context, id int64) ([]Paper, error) {
	query := `
		SELECT ` + paperColumns + `
		FROM papers p
		JOIN paper_citations c ON c.citing_id = p.id
		WHERE c.cited_id = $1
		ORDER BY p.id ASC`
	return r.list(ctx, query, id)
}

// References retrieves the papers that id cites.
func (r *PostgresRepository) References(ctx context.Context, id int64) ([]Paper, error) {
	query := `
		SELECT ` + paperColumns + `
		FROM papers p
		JOIN paper_citations c ON c.cited_id = p.id
		WHERE c.citing_id = $1
		ORDER BY p.id ASC`
	return r.list(ctx, query, id)
}

// Update applies the non-nil fields and returns the updated row.
func (r *PostgresRepository) Update(ctx context.Context, id int64, fields UpdateFields) (*Paper, error) {
	var sets []string
	var args []any
	argIdx := 1

	add := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argIdx))
		args = append(args, value)
		argIdx++
	}

	if fields.DOI != nil {
		add("doi", *fields.DOI)
	}
	if fields.Title != nil {
		add("title", *fields.Title)
	}
	if fields.Abstract != nil {
		add("abstract", *fields.Abstract)
	}
	if fields.Year != nil {
		add("year", *fields.Year)
	}
	if fields.Publisher != nil {
		add("publisher", *fields.Publisher)
	}
	if fields.PublicationType != nil {
		add("publication_type", *fields.PublicationType)
	}
	if fields.OpenAccess != nil {
		add("open_access", *fields.OpenAccess)
	}

	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}

	sets = append(sets, "updated_at = NOW()")
	query := fmt.Sprintf(`UPDATE papers p SET %s WHERE p.id = $%d RETURNING %s`,
		strings.Join(sets, ", "), argIdx, paperColumns)
	args = append(args, id)

	var p Paper
	if err := scanPaper(r.pool.QueryRow(ctx, query, args...), &p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("updating paper: %w", err)
	}
	return &p, nil
}

// AddToProject links a paper to a project. Linking twice is a no-op.
func (r *PostgresRepository) AddToProject(ctx context.Context, projectID, paperID int64) error {
	query := `
		INSERT INTO project_papers (project_id, paper_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`

	if _, err := r.pool.Exec(ctx, query, projectID, paperID); err != nil {
		if isForeignKeyViolation(err) {
			return ErrUnknownReference
		}
		return fmt.Errorf("linking paper to project: %w", err)
	}
	return nil
}

// AddCitation records that citingID cites citedID.
func (r *PostgresRepository) AddCitation(ctx context.Context, citingID, citedID int64) error {
	query := `
		INSERT INTO paper_citations (citing_id, cited_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`

	if _, err := r.pool.Exec(ctx, query, citingID, citedID); err != nil {
		if isForeignKeyViolation(err) {
			return ErrUnknownReference
		}
		return fmt.Errorf("adding citation: %w", err)
	}
	return nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]Paper, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing papers: %w", err)
	}
	defer rows.Close()

	papers := []Paper{}
	for rows.Next() {
		var p Paper
		if err := scanPaper(rows, &p); err != nil {
			return nil, fmt.Errorf("scanning paper row: %w", err)
		}
		papers = append(papers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating paper rows: %w", err)
	}

	return papers, nil
}

func scanPaper(row pgx.Row, p *Paper) error {
	return row.Scan(
		&p.ID, &p.DOI, &p.Title, &p.Abstract, &p.Year, &p.Publisher,
		&p.PublicationType, &p.OpenAccess, &p.CreatedAt, &p.UpdatedAt,
	)
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
