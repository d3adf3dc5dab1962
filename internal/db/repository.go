package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/udisondev/la2go/internal/model"
)

// PostgresAccountRepository implements ops.AccountRepository against
// PostgreSQL, following spec.md §6's repository contract.
type PostgresAccountRepository struct {
	pool pool
}

// pool is the subset of *pgxpool.Pool the repository calls, narrowed so
// tests can swap in a *pgxpool.Pool or a pgx.Tx interchangeably.
type pool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// NewPostgresAccountRepository builds a repository over an open DB.
func NewPostgresAccountRepository(d *DB) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: d.pool}
}

// GetAuthViewByUsername fetches the subset of a row Login needs. Returns
// nil, nil when no row matches.
func (r *PostgresAccountRepository) GetAuthViewByUsername(ctx context.Context, username string) (*model.AuthView, error) {
	var v model.AuthView
	err := r.pool.QueryRow(ctx,
		`SELECT id, salt, hash, is_active, failed_login_count, last_failed_login_at, role
		 FROM accounts WHERE username = $1`, username,
	).Scan(&v.ID, &v.Salt, &v.Hash, &v.IsActive, &v.FailedLoginCount, &v.LastFailedLoginAt, &v.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying auth view for %q: %w", username, err)
	}
	return &v, nil
}

// GetForPasswordChangeByUsername fetches the subset ChangePassword needs.
func (r *PostgresAccountRepository) GetForPasswordChangeByUsername(ctx context.Context, username string) (*model.PasswordChangeView, error) {
	var v model.PasswordChangeView
	err := r.pool.QueryRow(ctx,
		`SELECT id, salt, hash, is_active FROM accounts WHERE username = $1`, username,
	).Scan(&v.ID, &v.Salt, &v.Hash, &v.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying password-change view for %q: %w", username, err)
	}
	return &v, nil
}

// InsertOrIgnore inserts a new account row. Returns the new row's id, or
// 0 if a row with this username already existed (per spec.md §4.7's
// "a returned id ≤ 0 means duplicate" contract).
func (r *PostgresAccountRepository) InsertOrIgnore(ctx context.Context, username string, salt, hash [64]byte, role model.Role) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO accounts (username, salt, hash, role, failed_login_count, is_active, created_at)
		 VALUES ($1, $2, $3, $4, 0, TRUE, $5)
		 ON CONFLICT (username) DO NOTHING
		 RETURNING id`,
		username, salt[:], hash[:], role, time.Now(),
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("inserting account %q: %w", username, err)
	}
	return id, nil
}

// IncrementFailed atomically increments failed_login_count and stamps
// last_failed_login_at on a wrong-password attempt.
func (r *PostgresAccountRepository) IncrementFailed(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE accounts SET failed_login_count = failed_login_count + 1, last_failed_login_at = $1 WHERE id = $2`,
		time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("incrementing failed login count for id %d: %w", id, err)
	}
	return nil
}

// ResetFailedAndStampLogin clears failed_login_count and stamps
// last_login_at on a successful login.
func (r *PostgresAccountRepository) ResetFailedAndStampLogin(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE accounts SET failed_login_count = 0, last_login_at = $1 WHERE id = $2`,
		time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("resetting failed login count for id %d: %w", id, err)
	}
	return nil
}

// StampLogout records last_logout_at on an explicit Logout.
func (r *PostgresAccountRepository) StampLogout(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE accounts SET last_logout_at = $1 WHERE id = $2`, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("stamping logout for id %d: %w", id, err)
	}
	return nil
}

// UpdatePasswordIfMatches performs an optimistic-concurrency password
// update: the row is only updated if its current hash still equals
// expectedOldHash. Returns the number of rows changed (0 or 1).
func (r *PostgresAccountRepository) UpdatePasswordIfMatches(ctx context.Context, id int64, expectedOldHash, newSalt, newHash [64]byte) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE accounts SET salt = $1, hash = $2 WHERE id = $3 AND hash = $4`,
		newSalt[:], newHash[:], id, expectedOldHash[:],
	)
	if err != nil {
		return 0, fmt.Errorf("updating password for id %d: %w", id, err)
	}
	return tag.RowsAffected(), nil
}
