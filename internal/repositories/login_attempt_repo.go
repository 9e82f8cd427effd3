package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/amgate/internal/criteria"
	"github.com/BradenHooton/amgate/internal/database"
	"github.com/BradenHooton/amgate/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const loginAttemptColumns = `id, domain, client, identity_provider, username, attempts, expire_at, created_at, updated_at`

// LoginAttemptRepository handles database operations for login attempts
type LoginAttemptRepository struct {
	pool *pgxpool.Pool
}

// NewLoginAttemptRepository creates a new LoginAttemptRepository
func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{pool: db.Pool}
}

// rowScanner is satisfied by pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// querier is satisfied by the pool and by a transaction
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanLoginAttemptRow(scanner rowScanner) (*models.LoginAttempt, error) {
	var a models.LoginAttempt
	var expireAt *time.Time

	err := scanner.Scan(
		&a.ID, &a.Domain, &a.Client, &a.IdentityProvider, &a.Username,
		&a.Attempts, &expireAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	a.ExpireAt = toUTC(expireAt)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return &a, nil
}

func (r *LoginAttemptRepository) GetByID(ctx context.Context, id string) (*models.LoginAttempt, error) {
	query := `SELECT ` + loginAttemptColumns + ` FROM login_attempts WHERE id = $1`
	return scanLoginAttemptRow(r.pool.QueryRow(ctx, query, id))
}

func (r *LoginAttemptRepository) FindOne(ctx context.Context, filter criteria.Filter) (*models.LoginAttempt, error) {
	where, args := filter.SQL("expire_at")
	query := `SELECT ` + loginAttemptColumns + ` FROM login_attempts WHERE ` + where +
		` ORDER BY created_at ASC, id ASC LIMIT 1`

	return scanLoginAttemptRow(r.pool.QueryRow(ctx, query, args...))
}

func (r *LoginAttemptRepository) Insert(ctx context.Context, a *models.LoginAttempt) error {
	_, err := insertAttempt(ctx, r.pool, a)
	return err
}

func (r *LoginAttemptRepository) Replace(ctx context.Context, a *models.LoginAttempt) (*models.LoginAttempt, error) {
	return replaceAttempt(ctx, r.pool, a)
}

// Apply runs the read and the write in one transaction holding a transaction-scoped
// advisory lock on lockKey, so concurrent gateways counting the same account queue
// behind each other instead of each creating a first attempt.
func (r *LoginAttemptRepository) Apply(ctx context.Context, lockKey string, filter criteria.Filter, fn AttemptMutation) (*models.LoginAttempt, error) {
	var stored *models.LoginAttempt

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, lockKey); err != nil {
			return fmt.Errorf("failed to lock %s: %w", lockKey, database.MapPostgresError(err))
		}

		// read after the lock so a row committed by the previous holder is seen
		where, args := filter.SQL("expire_at")
		query := `SELECT ` + loginAttemptColumns + ` FROM login_attempts WHERE ` + where +
			` ORDER BY created_at ASC, id ASC LIMIT 1 FOR UPDATE`

		current, err := scanLoginAttemptRow(tx.QueryRow(ctx, query, args...))
		switch {
		case errors.Is(err, models.ErrNotFound):
			current = nil
		case err != nil:
			return err
		}

		next := fn(current)
		if current == nil {
			stored, err = insertAttempt(ctx, tx, next)
		} else {
			stored, err = replaceAttempt(ctx, tx, next)
		}
		return err
	})
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return stored, nil
}

func insertAttempt(ctx context.Context, q querier, a *models.LoginAttempt) (*models.LoginAttempt, error) {
	query := `
		INSERT INTO login_attempts (` + loginAttemptColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + loginAttemptColumns

	return scanLoginAttemptRow(q.QueryRow(ctx, query,
		a.ID, a.Domain, a.Client, a.IdentityProvider, a.Username,
		a.Attempts, a.ExpireAt, a.CreatedAt, a.UpdatedAt,
	))
}

func replaceAttempt(ctx context.Context, q querier, a *models.LoginAttempt) (*models.LoginAttempt, error) {
	query := `
		UPDATE login_attempts
		SET domain = $2, client = $3, identity_provider = $4, username = $5,
			attempts = $6, expire_at = $7, created_at = $8, updated_at = $9
		WHERE id = $1
		RETURNING ` + loginAttemptColumns

	return scanLoginAttemptRow(q.QueryRow(ctx, query,
		a.ID, a.Domain, a.Client, a.IdentityProvider, a.Username,
		a.Attempts, a.ExpireAt, a.CreatedAt, a.UpdatedAt,
	))
}

func (r *LoginAttemptRepository) DeleteByID(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM login_attempts WHERE id = $1`, id)
	return database.MapPostgresError(err)
}

func (r *LoginAttemptRepository) DeleteWhere(ctx context.Context, filter criteria.Filter) (int64, error) {
	where, args := filter.SQL("expire_at")

	result, err := r.pool.Exec(ctx, `DELETE FROM login_attempts WHERE `+where, args...)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}

func (r *LoginAttemptRepository) Count(ctx context.Context, filter criteria.Filter) (int64, error) {
	where, args := filter.SQL("expire_at")

	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM login_attempts WHERE `+where, args...).Scan(&count)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// DeleteExpired removes attempts that are no longer visible (call periodically)
func (r *LoginAttemptRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM login_attempts WHERE expire_at IS NOT NULL AND expire_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired login attempts: %w", database.MapPostgresError(err))
	}
	return result.RowsAffected(), nil
}

func toUTC(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// collectRows drains rows through scan
func collectRows[T any](rows pgx.Rows, scan func(rowScanner) (*T, error)) ([]*T, error) {
	defer rows.Close()

	out := make([]*T, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return out, nil
}
