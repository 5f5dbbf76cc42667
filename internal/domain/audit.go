package domain

import "time"

// AuditEntry is one structured record per executed (or rejected) statement,
// consumed by external observability tooling.
type AuditEntry struct {
	ID            string
	TenantID      string
	Level         PermissionLevel
	Action        string // "query" or "adhoc"
	StatementKind string // operation or parsed statement kind
	DurationMs    int64
	RowsReturned  int64
	Status        string // "ok", "denied", "error"
	ErrorCode     string
	CreatedAt     time.Time
}
