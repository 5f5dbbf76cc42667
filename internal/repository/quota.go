package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sseshaheen/sheenapps-query-gateway/internal/domain"
)

// QuotaRepository persists per-tenant daily usage counters in
// gateway.tenant_quotas.
type QuotaRepository struct {
	pool *pgxpool.Pool
}

// NewQuotaRepository creates a QuotaRepository backed by the given pool.
func NewQuotaRepository(pool *pgxpool.Pool) *QuotaRepository {
	return &QuotaRepository{pool: pool}
}

var _ domain.QuotaStore = (*QuotaRepository)(nil)

// GetPlan returns the tenant's plan name.
func (r *QuotaRepository) GetPlan(ctx context.Context, tenantID string) (string, error) {
	var plan string
	err := r.pool.QueryRow(ctx,
		`SELECT plan FROM gateway.tenant_quotas WHERE tenant_id = $1`,
		tenantID).Scan(&plan)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrNotFound("tenant %q has no quota record", tenantID)
	}
	if err != nil {
		return "", domain.ErrInternal(err, "load tenant plan")
	}
	return plan, nil
}

// Reserve folds the daily reset and the increment into a single conditional
// UPDATE. Concurrent callers race on the row lock; whichever commits first
// performs the reset, the rest see the already-reset counters. No matching
// row means either an unprovisioned tenant or an exhausted quota, and both
// deny.
func (r *QuotaRepository) Reserve(ctx context.Context, tenantID string, estBytes int64, limits domain.QuotaLimits) (*domain.QuotaRecord, bool, error) {
	rec := &domain.QuotaRecord{TenantID: tenantID}
	err := r.pool.QueryRow(ctx, `
		UPDATE gateway.tenant_quotas SET
			requests_used = CASE WHEN reset_at <= now()
				THEN 1 ELSE requests_used + 1 END,
			bandwidth_used = CASE WHEN reset_at <= now()
				THEN $2 ELSE bandwidth_used + $2 END,
			reset_at = CASE WHEN reset_at <= now()
				THEN now() + interval '24 hours' ELSE reset_at END
		WHERE tenant_id = $1
		  AND (CASE WHEN reset_at <= now()
				THEN 1 ELSE requests_used + 1 END) <= $3
		  AND (CASE WHEN reset_at <= now()
				THEN $2 ELSE bandwidth_used + $2 END) <= $4
		RETURNING plan, requests_used, bandwidth_used, reset_at`,
		tenantID, estBytes, limits.DailyRequests, limits.DailyBandwidthBytes,
	).Scan(&rec.Plan, &rec.RequestsUsed, &rec.BandwidthUsed, &rec.ResetAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, domain.ErrInternal(err, "reserve quota")
	}
	return rec, true, nil
}

// CommitUsage adjusts bandwidth usage by the actual-versus-estimated delta.
// Usage never goes below zero, and a commit that lands after the window
// rolled over must not dent the fresh counters.
func (r *QuotaRepository) CommitUsage(ctx context.Context, tenantID string, deltaBytes int64) error {
	if deltaBytes == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE gateway.tenant_quotas
		SET bandwidth_used = GREATEST(bandwidth_used + $2, 0)
		WHERE tenant_id = $1 AND reset_at > now()`,
		tenantID, deltaBytes)
	if err != nil {
		return domain.ErrInternal(err, "commit quota usage")
	}
	return nil
}

// Get returns the tenant's current quota record.
func (r *QuotaRepository) Get(ctx context.Context, tenantID string) (*domain.QuotaRecord, error) {
	rec := &domain.QuotaRecord{TenantID: tenantID}
	err := r.pool.QueryRow(ctx, `
		SELECT plan, requests_used, bandwidth_used, reset_at
		FROM gateway.tenant_quotas
		WHERE tenant_id = $1`,
		tenantID).Scan(&rec.Plan, &rec.RequestsUsed, &rec.BandwidthUsed, &rec.ResetAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound("tenant %q has no quota record", tenantID)
	}
	if err != nil {
		return nil, domain.ErrInternal(err, "load quota record")
	}
	return rec, nil
}
