package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrTokenNotFound is returned when a token record does not exist.
var ErrTokenNotFound = errors.New("token not found")

// TokenRecord is a persisted issued token. A token is only honoured while
// its record exists.
type TokenRecord struct {
	Token     string
	UserID    int64
	Kind      Kind
	CreatedAt time.Time
}

// TokenRepository persists issued tokens.
type TokenRepository interface {
	Create(ctx context.Context, rec *TokenRecord) error
	Exists(ctx context.Context, token string, kind Kind) (bool, error)
	Delete(ctx context.Context, token string) error
	DeleteByUser(ctx context.Context, userID int64) error
	// DeleteCreatedBefore removes records created before cutoff and reports
	// how many were removed.
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PostgresTokenRepository implements TokenRepository using pgxpool.
type PostgresTokenRepository struct {
	pool *pgxpool.Pool
}

// NewTokenRepository creates a TokenRepository backed by the given pool.
func NewTokenRepository(pool *pgxpool.Pool) TokenRepository {
	return &PostgresTokenRepository{pool: pool}
}

// Create inserts a token record.
func (r *PostgresTokenRepository) Create(ctx context.Context, rec *TokenRecord) error {
	query := `
		INSERT INTO tokens (token, user_id, kind)
		VALUES ($1, $2, $3)
		RETURNING created_at`

	if err := r.pool.QueryRow(ctx, query, rec.Token, rec.UserID, string(rec.Kind)).Scan(&rec.CreatedAt); err != nil {
		return fmt.Errorf("inserting token: %w", err)
	}
	return nil
}

// Exists reports whether a record of the given kind exists for token.
func (r *PostgresTokenRepository) Exists(ctx context.Context, token string, kind Kind) (bool, error) {
	var ok bool
	query := `SELECT EXISTS (SELECT 1 FROM tokens WHERE token = $1 AND kind = $2)`
	if err := r.pool.QueryRow(ctx, query, token, string(kind)).Scan(&ok); err != nil {
		return false, fmt.Errorf("checking token: %w", err)
	}
	return ok, nil
}

// Delete removes a token record. Returns ErrTokenNotFound if none was removed.
func (r *PostgresTokenRepository) Delete(ctx context.Context, token string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tokens WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("deleting token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTokenNotFound
	}
	return nil
}

// DeleteByUser removes every token record of a user.
func (r *PostgresTokenRepository) DeleteByUser(ctx context.Context, userID int64) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM tokens WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("deleting user tokens: %w", err)
	}
	return nil
}

// DeleteCreatedBefore removes every record created before cutoff.
func (r *PostgresTokenRepository) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tokens WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting expired tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
