package domain

import "context"

// MetadataStore loads tenant table metadata from the control schema. The
// registry wraps it with a TTL cache; implementations need not cache.
type MetadataStore interface {
	// FetchTable returns the metadata for a table in the tenant's schema,
	// or a NotFoundError. Table names are scoped by tenant, never global.
	FetchTable(ctx context.Context, tenantID, table string) (*TableMetadata, error)
	// ListTables returns the names of all tables in the tenant's schema.
	ListTables(ctx context.Context, tenantID string) ([]string, error)
}

// QuotaStore persists per-tenant daily counters. All methods must be safe
// for concurrent use; Reserve must be a single atomic conditional update.
type QuotaStore interface {
	// GetPlan returns the tenant's plan name, or a NotFoundError when the
	// tenant has not been provisioned.
	GetPlan(ctx context.Context, tenantID string) (string, error)
	// Reserve applies the daily reset if ResetAt has elapsed, then
	// increments usage by one request and estBytes — all in one atomic
	// step, and only if the result stays within limits. It returns the
	// post-update record and whether the reservation was granted.
	Reserve(ctx context.Context, tenantID string, estBytes int64, limits QuotaLimits) (*QuotaRecord, bool, error)
	// CommitUsage adjusts bandwidth usage by the actual-versus-estimated
	// delta once a request has completed. Callers must await it.
	CommitUsage(ctx context.Context, tenantID string, deltaBytes int64) error
	// Get returns the current record without modifying it.
	Get(ctx context.Context, tenantID string) (*QuotaRecord, error)
}

// AuditSink receives one record per executed statement.
type AuditSink interface {
	Record(ctx context.Context, entry *AuditEntry) error
}
