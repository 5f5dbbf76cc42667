package domain

import "time"

// QuotaRecord tracks a tenant's daily usage. The record lives for the
// tenant's lifetime and resets in place when ResetAt has elapsed — there is
// no separate scheduled job.
type QuotaRecord struct {
	TenantID      string
	Plan          string
	RequestsUsed  int64
	BandwidthUsed int64
	ResetAt       time.Time
}

// QuotaLimits holds the effective daily limits resolved from the tenant's
// plan.
type QuotaLimits struct {
	DailyRequests       int64
	DailyBandwidthBytes int64
}
