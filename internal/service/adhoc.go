package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/sseshaheen/sheenapps-query-gateway/internal/domain"
	"github.com/sseshaheen/sheenapps-query-gateway/internal/engine"
	"github.com/sseshaheen/sheenapps-query-gateway/internal/inspector"
)

// AdhocService runs operator-submitted free-text SQL through the AST
// inspector and a separate, privilege-restricted execution role.
type AdhocService struct {
	executor     ReadOnlyExecutor
	quota        QuotaGate
	audit        domain.AuditSink
	schemaPrefix string
	logger       *slog.Logger
}

// NewAdhocService creates an AdhocService. schemaPrefix matches the
// validator's tenant schema naming.
func NewAdhocService(executor ReadOnlyExecutor, quota QuotaGate, audit domain.AuditSink, schemaPrefix string, logger *slog.Logger) *AdhocService {
	return &AdhocService{
		executor:     executor,
		quota:        quota,
		audit:        audit,
		schemaPrefix: schemaPrefix,
		logger:       logger,
	}
}

// AdhocResult carries the rows of an inspected ad-hoc query, or the plan rows
// when the statement was an EXPLAIN.
type AdhocResult struct {
	Columns    []string        `json:"columns"`
	Rows       [][]interface{} `json:"rows"`
	Plan       []string        `json:"plan,omitempty"`
	Truncated  bool            `json:"truncated,omitempty"`
	DurationMs int64           `json:"durationMs"`
}

// Execute inspects and runs one ad-hoc statement. Only operator principals
// may call it; with explain set the statement is wrapped in EXPLAIN before
// inspection. Execution always happens inside a rolled-back transaction on
// the read-only role.
func (s *AdhocService) Execute(ctx context.Context, p domain.Principal, sql string, explain bool, estimatedBytes int64) (*AdhocResult, error) {
	start := time.Now()

	if p.Level < domain.LevelOperator {
		err := domain.ErrAccessDenied(domain.CodeUnsupportedOperation,
			"ad-hoc queries require operator level")
		recordAudit(ctx, s.audit, s.logger, auditEntry(p, "adhoc", "", start, nil, err))
		return nil, err
	}
	if err := s.quota.CheckAndReserve(ctx, p.TenantID, estimatedBytes); err != nil {
		recordAudit(ctx, s.audit, s.logger, auditEntry(p, "adhoc", "", start, nil, err))
		return nil, err
	}

	if explain {
		sql = "EXPLAIN " + sql
	}
	res, kind, err := s.run(ctx, p, sql)

	delta := approxBytes(res) - estimatedBytes
	if commitErr := s.quota.CommitUsage(ctx, p.TenantID, delta); commitErr != nil {
		s.logger.Error("quota commit failed",
			"tenant", p.TenantID, "delta", delta, "error", commitErr)
		if err == nil {
			err = commitErr
		}
	}

	recordAudit(ctx, s.audit, s.logger, auditEntry(p, "adhoc", kind, start, res, err))
	if err != nil {
		return nil, err
	}

	out := &AdhocResult{
		Columns:    res.Columns,
		Rows:       res.Rows,
		Truncated:  res.Truncated,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if kind == "explain" {
		out.Plan = planLines(res)
	}
	return out, nil
}

func (s *AdhocService) run(ctx context.Context, p domain.Principal, sql string) (res *engine.Result, kind string, err error) {
	insp, err := inspector.Inspect(sql)
	if err != nil {
		return nil, "", err
	}
	// The deparsed form runs, not the submitted text. What was inspected is
	// exactly what executes.
	result, err := s.executor.ExecuteReadOnly(ctx, s.schemaPrefix+p.TenantID, insp.Normalized)
	if err != nil {
		return nil, insp.StatementKind, err
	}
	return result, insp.StatementKind, nil
}

// planLines flattens an EXPLAIN result's single text column.
func planLines(res *engine.Result) []string {
	lines := make([]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		if len(row) == 0 {
			continue
		}
		if line, ok := row[0].(string); ok {
			lines = append(lines, line)
		}
	}
	return lines
}
