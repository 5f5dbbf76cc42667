package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/sseshaheen/sheenapps-query-gateway/internal/domain"
	"github.com/sseshaheen/sheenapps-query-gateway/internal/engine"
	"github.com/sseshaheen/sheenapps-query-gateway/internal/sqlgen"
)

// QueryService runs the structured contract path: quota, validation, SQL
// generation, bounded execution, usage settlement, audit.
type QueryService struct {
	validator ContractValidator
	executor  Executor
	quota     QuotaGate
	audit     domain.AuditSink
	logger    *slog.Logger
}

// NewQueryService creates a QueryService.
func NewQueryService(validator ContractValidator, executor Executor, quota QuotaGate, audit domain.AuditSink, logger *slog.Logger) *QueryService {
	return &QueryService{
		validator: validator,
		executor:  executor,
		quota:     quota,
		audit:     audit,
		logger:    logger,
	}
}

// Execute runs one query contract for the principal. estimatedBytes is the
// request body size, used to reserve bandwidth up front; once the result size
// is known the difference is settled before returning. The request slot stays
// consumed on failure — a rejected request is still a served request.
func (s *QueryService) Execute(ctx context.Context, p domain.Principal, q *domain.QueryContract, estimatedBytes int64) (*Result, error) {
	start := time.Now()

	if err := s.quota.CheckAndReserve(ctx, p.TenantID, estimatedBytes); err != nil {
		recordAudit(ctx, s.audit, s.logger, auditEntry(p, "query", string(q.Operation), start, nil, err))
		return nil, err
	}

	res, err := s.run(ctx, p, q)

	// Settle bandwidth against what was reserved. This is awaited, not fired
	// and forgotten, so usage cannot silently drift past the plan.
	delta := approxBytes(res) - estimatedBytes
	if commitErr := s.quota.CommitUsage(ctx, p.TenantID, delta); commitErr != nil {
		s.logger.Error("quota commit failed",
			"tenant", p.TenantID, "delta", delta, "error", commitErr)
		if err == nil {
			err = commitErr
		}
	}

	recordAudit(ctx, s.audit, s.logger, auditEntry(p, "query", string(q.Operation), start, res, err))
	if err != nil {
		return nil, err
	}
	return &Result{
		Columns:      res.Columns,
		Rows:         res.Rows,
		RowsAffected: res.RowsAffected,
		Truncated:    res.Truncated,
		DurationMs:   time.Since(start).Milliseconds(),
	}, nil
}

func (s *QueryService) run(ctx context.Context, p domain.Principal, q *domain.QueryContract) (*engine.Result, error) {
	rc, err := s.validator.Validate(ctx, p, q)
	if err != nil {
		return nil, err
	}
	stmt, err := sqlgen.Build(rc)
	if err != nil {
		return nil, err
	}
	return s.executor.Execute(ctx, rc.Schema, stmt)
}
