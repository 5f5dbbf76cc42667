// Package registry caches per-tenant table metadata with TTL expiry and
// explicit invalidation after DDL.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sseshaheen/sheenapps-query-gateway/internal/domain"
)

type cacheEntry struct {
	table     *domain.TableMetadata
	fetchedAt time.Time
}

// Registry resolves tenant table metadata through a TTL cache backed by a
// MetadataStore. Concurrent misses for the same key are collapsed into one
// store fetch. Invalidation after DDL forces a re-fetch before the next
// validation, so a stale entry can never permit access to a newly-sensitive
// column past the TTL window.
type Registry struct {
	store domain.MetadataStore
	ttl   time.Duration

	mu      sync.RWMutex
	entries map[string]cacheEntry

	group singleflight.Group
	now   func() time.Time // overridable in tests
}

// New creates a Registry with the given TTL.
func New(store domain.MetadataStore, ttl time.Duration) *Registry {
	return &Registry{
		store:   store,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

func cacheKey(tenantID, table string) string {
	return tenantID + "\x00" + table
}

// ResolveTable returns the metadata for a table in the tenant's schema,
// fetching from the store on a cache miss or expired entry. Table names are
// scoped by tenant, never global.
func (r *Registry) ResolveTable(ctx context.Context, tenantID, table string) (*domain.TableMetadata, error) {
	key := cacheKey(tenantID, table)

	r.mu.RLock()
	entry, ok := r.entries[key]
	r.mu.RUnlock()
	if ok && r.now().Sub(entry.fetchedAt) < r.ttl {
		return entry.table, nil
	}

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		tm, err := r.store.FetchTable(ctx, tenantID, table)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.entries[key] = cacheEntry{table: tm, fetchedAt: r.now()}
		r.mu.Unlock()
		return tm, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.TableMetadata), nil
}

// DescribeTable returns table metadata filtered to what the caller's level
// may see. A public caller must not learn that a sensitive column exists.
func (r *Registry) DescribeTable(ctx context.Context, p domain.Principal, table string) (*domain.TableMetadata, error) {
	tm, err := r.ResolveTable(ctx, p.TenantID, table)
	if err != nil {
		return nil, err
	}
	return tm.FilterForLevel(p.Level), nil
}

// ListTables returns the table names in the caller's tenant schema. Listing
// is not cached: it is rare relative to query traffic and staleness here
// would hide newly provisioned tables.
func (r *Registry) ListTables(ctx context.Context, tenantID string) ([]string, error) {
	return r.store.ListTables(ctx, tenantID)
}

// Invalidate evicts cached entries after a DDL event. With an empty table
// name, every entry for the tenant is evicted.
func (r *Registry) Invalidate(tenantID, table string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if table != "" {
		delete(r.entries, cacheKey(tenantID, table))
		return
	}
	prefix := tenantID + "\x00"
	for key := range r.entries {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(r.entries, key)
		}
	}
}

// Sweep removes expired entries. Called on a fixed interval by the server's
// background scheduler; never blocks request-serving goroutines for longer
// than the map walk.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for key, entry := range r.entries {
		if r.now().Sub(entry.fetchedAt) >= r.ttl {
			delete(r.entries, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of cached entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// String implements fmt.Stringer for debug logging.
func (r *Registry) String() string {
	return fmt.Sprintf("registry(entries=%d, ttl=%s)", r.Len(), r.ttl)
}
