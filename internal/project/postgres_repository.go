package project

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

// Create inserts a new project record.
func (r *PostgresRepository) Create(ctx context.Context, p *Project) error {
	query := `INSERT INTO projects (name) VALUES ($1) RETURNING id, created_at`
	if err := r.pool.QueryRow(ctx, query, p.Name).Scan(&p.ID, &p.CreatedAt); err != nil {
		return fmt.Errorf("inserting project: %w", err)
	}
	return nil
}

// GetByID retrieves a single project by id.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*Project, error) {
	query := `SELECT id, name, created_at FROM projects WHERE id = $1`

	var p Project
	err := r.pool.QueryRow(ctx, query, id).Scan(&p.ID, &p.Name, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying project: %w", err)
	}
	return &p, nil
}

// OwnsAnyProject reports whether the user owns at least one project.
func (r *PostgresRepository) OwnsAnyProject(ctx context.Context, userID int64) (bool, error) {
	return r.exists(ctx,
		`SELECT EXISTS(SELECT 1 FROM project_members WHERE user_id = $1 AND is_owner)`,
		userID)
}

// IsOwner reports whether the user owns the given project.
func (r *PostgresRepository) IsOwner(ctx context.Context, userID, projectID int64) (bool, error) {
	return r.exists(ctx,
		`SELECT EXISTS(SELECT 1 FROM project_members WHERE user_id = $1 AND project_id = $2 AND is_owner)`,
		userID, projectID)
}

// IsMember reports whether any membership row links the user to the project.
func (r *PostgresRepository) IsMember(ctx context.Context, userID, projectID int64) (bool, error) {
	return r.exists(ctx,
		`SELECT EXISTS(SELECT 1 FROM project_members WHERE user_id = $1 AND project_id = $2)`,
		userID, projectID)
}

// ListMembers returns the membership rows of a project, owners first.
func (r *PostgresRepository) ListMembers(ctx context.Context, projectID int64) ([]Member, error) {
	query := `
		SELECT user_id, project_id, is_owner, created_at
		FROM project_members
		WHERE project_id = $1
		ORDER BY is_owner DESC, user_id ASC`

	rows, err := r.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	defer rows.Close()

	members := []Member{}
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.UserID, &m.ProjectID, &m.IsOwner, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning member row: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating member rows: %w", err)
	}
	return members, nil
}

// AddMember inserts a membership row, or updates the owner flag if the user
// is already a member.
func (r *PostgresRepository) AddMember(ctx context.Context, m *Member) error {
	query := `
		INSERT INTO project_members (user_id, project_id, is_owner)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, project_id) DO UPDATE SET is_owner = EXCLUDED.is_owner
		RETURNING created_at`

	err := r.pool.QueryRow(ctx, query, m.UserID, m.ProjectID, m.IsOwner).Scan(&m.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrUnknownReference
		}
		return fmt.Errorf("inserting member: %w", err)
	}
	return nil
}

// RemoveMember deletes a membership row.
func (r *PostgresRepository) RemoveMember(ctx context.Context, projectID, userID int64) error {
	result, err := r.pool.Exec(ctx,
		`DELETE FROM project_members WHERE project_id = $1 AND user_id = $2`,
		projectID, userID)
	if err != nil {
		return fmt.Errorf("deleting member: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrMemberNotFound
	}
	return nil
}

func (r *PostgresRepository) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var ok bool
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&ok); err != nil {
		return false, fmt.Errorf("checking membership: %w", err)
	}
	return ok, nil
}
