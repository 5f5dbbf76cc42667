// Package service orchestrates the gateway's request paths: quota admission,
// validation or inspection, execution, usage commit, and audit.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/sseshaheen/sheenapps-query-gateway/internal/domain"
	"github.com/sseshaheen/sheenapps-query-gateway/internal/engine"
	"github.com/sseshaheen/sheenapps-query-gateway/internal/sqlgen"
)

// ContractValidator is the validator port.
type ContractValidator interface {
	Validate(ctx context.Context, p domain.Principal, q *domain.QueryContract) (*domain.ResolvedContract, error)
}

// Executor runs generated statements on the application role.
type Executor interface {
	Execute(ctx context.Context, schema string, stmt *sqlgen.Statement) (*engine.Result, error)
}

// ReadOnlyExecutor runs inspected ad-hoc SQL on the restricted role.
type ReadOnlyExecutor interface {
	ExecuteReadOnly(ctx context.Context, schema, sql string) (*engine.Result, error)
}

// QuotaGate admits requests and settles their bandwidth afterwards.
type QuotaGate interface {
	CheckAndReserve(ctx context.Context, tenantID string, estimatedBytes int64) error
	CommitUsage(ctx context.Context, tenantID string, deltaBytes int64) error
}

// Result is the caller-facing outcome of one executed statement.
type Result struct {
	Columns      []string        `json:"columns"`
	Rows         [][]interface{} `json:"rows"`
	RowsAffected int64           `json:"rowsAffected"`
	Truncated    bool            `json:"truncated,omitempty"`
	DurationMs   int64           `json:"durationMs"`
}

// approxBytes estimates the serialized size of a result for bandwidth
// accounting. Counting encoded lengths without encoding keeps the hot path
// allocation-free; quota bytes are an estimate either way.
func approxBytes(res *engine.Result) int64 {
	if res == nil {
		return 0
	}
	var n int64
	for _, c := range res.Columns {
		n += int64(len(c)) + 3
	}
	for _, row := range res.Rows {
		for _, v := range row {
			switch val := v.(type) {
			case string:
				n += int64(len(val)) + 3
			case []byte:
				n += int64(len(val)) + 3
			case nil:
				n += 4
			default:
				n += 8
			}
		}
	}
	return n
}

// recordAudit writes one audit entry, best effort. A failed audit write is
// logged and never fails the request.
func recordAudit(ctx context.Context, sink domain.AuditSink, logger *slog.Logger, entry *domain.AuditEntry) {
	if sink == nil {
		return
	}
	if err := sink.Record(ctx, entry); err != nil {
		logger.Warn("audit record failed",
			"tenant", entry.TenantID,
			"action", entry.Action,
			"error", err)
	}
}

func auditEntry(p domain.Principal, action, kind string, start time.Time, res *engine.Result, err error) *domain.AuditEntry {
	entry := &domain.AuditEntry{
		TenantID:      p.TenantID,
		Level:         p.Level,
		Action:        action,
		StatementKind: kind,
		DurationMs:    time.Since(start).Milliseconds(),
		Status:        "ok",
	}
	if res != nil {
		entry.RowsReturned = int64(len(res.Rows))
	}
	if err != nil {
		entry.ErrorCode = domain.ErrorCode(err)
		entry.Status = "denied"
		if entry.ErrorCode == domain.CodeInternal || entry.ErrorCode == domain.CodeTimeout {
			entry.Status = "error"
		}
	}
	return entry
}
