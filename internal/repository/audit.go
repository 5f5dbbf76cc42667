package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sseshaheen/sheenapps-query-gateway/internal/domain"
)

// AuditRepository appends statement records to gateway.audit_log.
type AuditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository creates an AuditRepository backed by the given pool.
func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

var _ domain.AuditSink = (*AuditRepository)(nil)

// Record inserts one audit entry. Missing IDs and timestamps are filled in.
func (r *AuditRepository) Record(ctx context.Context, entry *domain.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO gateway.audit_log
			(id, tenant_id, principal_level, action, statement_kind,
			 duration_ms, rows_returned, status, error_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.TenantID, entry.Level.String(), entry.Action,
		entry.StatementKind, entry.DurationMs, entry.RowsReturned,
		entry.Status, entry.ErrorCode, entry.CreatedAt)
	if err != nil {
		return domain.ErrInternal(err, "record audit entry")
	}
	return nil
}
