package repositories

import (
	"context"
	"time"

	"github.com/BradenHooton/amgate/internal/criteria"
	"github.com/BradenHooton/amgate/internal/database"
	"github.com/BradenHooton/amgate/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

const scopeApprovalColumns = `id, transaction_id, domain, user_id, client_id, scope, status, expires_at, created_at, updated_at`

// ScopeApprovalRepository stores consent decisions in Postgres. The
// uq_scope_approvals_natural_key constraint rejects a second row for the same
// (domain, user_id, client_id, scope) with models.ErrConflict.
type ScopeApprovalRepository struct {
	pool *pgxpool.Pool
}

func NewScopeApprovalRepository(db *database.DB) *ScopeApprovalRepository {
	return &ScopeApprovalRepository{pool: db.Pool}
}

func scanScopeApprovalRow(scanner rowScanner) (*models.ScopeApproval, error) {
	var a models.ScopeApproval
	var status string
	var expiresAt *time.Time

	err := scanner.Scan(
		&a.ID, &a.TransactionID, &a.Domain, &a.UserID, &a.ClientID, &a.Scope,
		&status, &expiresAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	a.Status = models.ApprovalStatus(status)
	a.ExpiresAt = toUTC(expiresAt)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return &a, nil
}

func (r *ScopeApprovalRepository) GetByID(ctx context.Context, id string) (*models.ScopeApproval, error) {
	query := `SELECT ` + scopeApprovalColumns + ` FROM scope_approvals WHERE id = $1`
	return scanScopeApprovalRow(r.pool.QueryRow(ctx, query, id))
}

func (r *ScopeApprovalRepository) FindOne(ctx context.Context, filter criteria.Filter) (*models.ScopeApproval, error) {
	where, args := filter.SQL("expires_at")
	query := `SELECT ` + scopeApprovalColumns + ` FROM scope_approvals WHERE ` + where +
		` ORDER BY created_at ASC, id ASC LIMIT 1`

	return scanScopeApprovalRow(r.pool.QueryRow(ctx, query, args...))
}

func (r *ScopeApprovalRepository) FindMany(ctx context.Context, filter criteria.Filter) ([]*models.ScopeApproval, error) {
	where, args := filter.SQL("expires_at")
	query := `SELECT ` + scopeApprovalColumns + ` FROM scope_approvals WHERE ` + where +
		` ORDER BY created_at ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return collectRows(rows, scanScopeApprovalRow)
}

func (r *ScopeApprovalRepository) Insert(ctx context.Context, a *models.ScopeApproval) error {
	query := `
		INSERT INTO scope_approvals (` + scopeApprovalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.pool.Exec(ctx, query,
		a.ID, a.TransactionID, a.Domain, a.UserID, a.ClientID, a.Scope,
		string(a.Status), a.ExpiresAt, a.CreatedAt, a.UpdatedAt,
	)
	return database.MapPostgresError(err)
}

func (r *ScopeApprovalRepository) Replace(ctx context.Context, a *models.ScopeApproval) (*models.ScopeApproval, error) {
	query := `
		UPDATE scope_approvals
		SET transaction_id = $2, domain = $3, user_id = $4, client_id = $5, scope = $6,
			status = $7, expires_at = $8, created_at = $9, updated_at = $10
		WHERE id = $1
		RETURNING ` + scopeApprovalColumns

	return scanScopeApprovalRow(r.pool.QueryRow(ctx, query,
		a.ID, a.TransactionID, a.Domain, a.UserID, a.ClientID, a.Scope,
		string(a.Status), a.ExpiresAt, a.CreatedAt, a.UpdatedAt,
	))
}

func (r *ScopeApprovalRepository) DeleteByID(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM scope_approvals WHERE id = $1`, id)
	return database.MapPostgresError(err)
}

func (r *ScopeApprovalRepository) DeleteWhere(ctx context.Context, filter criteria.Filter) (int64, error) {
	where, args := filter.SQL("expires_at")

	result, err := r.pool.Exec(ctx, `DELETE FROM scope_approvals WHERE `+where, args...)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}

func (r *ScopeApprovalRepository) Count(ctx context.Context, filter criteria.Filter) (int64, error) {
	where, args := filter.SQL("expires_at")

	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM scope_approvals WHERE `+where, args...).Scan(&count)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}
