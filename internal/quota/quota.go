package quota

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sseshaheen/sheenapps-query-gateway/internal/config"
	"github.com/sseshaheen/sheenapps-query-gateway/internal/domain"
)

// Service combines the persistent daily quota with the in-process rate
// limiter. It fails closed: any internal error while checking quota is a
// denial, because silent fail-open during an outage is unmetered abuse.
type Service struct {
	store   domain.QuotaStore
	limiter *RateLimiter
	plans   config.Plans
	logger  *slog.Logger
}

// NewService creates a quota Service.
func NewService(store domain.QuotaStore, limiter *RateLimiter, plans config.Plans, logger *slog.Logger) *Service {
	return &Service{store: store, limiter: limiter, plans: plans, logger: logger}
}

// CheckAndReserve admits or denies a request. On success the request slot
// and the byte estimate are already reserved; callers must follow up with
// CommitUsage once the response size is known.
func (s *Service) CheckAndReserve(ctx context.Context, tenantID string, estimatedBytes int64) error {
	planName, err := s.store.GetPlan(ctx, tenantID)
	if err != nil {
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) {
			// Tenant was never provisioned — not this component's job to fix.
			return domain.ErrQuotaExceeded("tenant has no quota record")
		}
		s.logger.Error("quota plan lookup failed, denying", "tenant", tenantID, "error", err)
		return domain.ErrQuotaExceeded("quota state unavailable")
	}
	plan := s.plans.Resolve(planName)

	// Rate limit first: it is the cheaper check and exhausting it must not
	// consume daily quota.
	if ok, retryAfter := s.limiter.Allow(tenantID, plan.WindowRequests, plan.Window); !ok {
		return domain.ErrRateLimited(retryAfter)
	}

	limits := domain.QuotaLimits{
		DailyRequests:       plan.DailyRequests,
		DailyBandwidthBytes: plan.DailyBandwidthBytes,
	}
	record, reserved, err := s.store.Reserve(ctx, tenantID, estimatedBytes, limits)
	if err != nil {
		s.logger.Error("quota reserve failed, denying", "tenant", tenantID, "error", err)
		return domain.ErrQuotaExceeded("quota state unavailable")
	}
	if !reserved {
		if record != nil {
			return &domain.LimitError{
				Code:       domain.CodeQuotaExceeded,
				Message:    "daily quota exceeded",
				RetryAfter: 0, // quota resets at record.ResetAt; no short retry
			}
		}
		return domain.ErrQuotaExceeded("daily quota exceeded")
	}
	return nil
}

// CommitUsage records the actual-versus-estimated bandwidth delta. This is a
// required, awaited step — deferring it to best-effort logging could let
// usage silently exceed the plan.
func (s *Service) CommitUsage(ctx context.Context, tenantID string, deltaBytes int64) error {
	if deltaBytes == 0 {
		return nil
	}
	if err := s.store.CommitUsage(ctx, tenantID, deltaBytes); err != nil {
		return domain.ErrInternal(err, "commit quota usage")
	}
	return nil
}

// Usage returns the tenant's current quota record.
func (s *Service) Usage(ctx context.Context, tenantID string) (*domain.QuotaRecord, error) {
	return s.store.Get(ctx, tenantID)
}

// SweepBuckets prunes expired rate-limit buckets. Wired to the server's
// background scheduler.
func (s *Service) SweepBuckets() int {
	maxWindow := s.longestWindow()
	return s.limiter.Sweep(maxWindow)
}

func (s *Service) longestWindow() time.Duration {
	longest := time.Minute
	for _, plan := range s.plans {
		if plan.Window > longest {
			longest = plan.Window
		}
	}
	return longest
}
