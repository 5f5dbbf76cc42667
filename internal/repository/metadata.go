// Package repository provides pgx-backed implementations of the gateway's
// control-schema ports.
package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sseshaheen/sheenapps-query-gateway/internal/domain"
)

// MetadataRepository loads tenant table metadata from gateway.tenant_tables
// and gateway.tenant_columns.
type MetadataRepository struct {
	pool *pgxpool.Pool
}

// NewMetadataRepository creates a MetadataRepository backed by the given pool.
func NewMetadataRepository(pool *pgxpool.Pool) *MetadataRepository {
	return &MetadataRepository{pool: pool}
}

var _ domain.MetadataStore = (*MetadataRepository)(nil)

// FetchTable returns the metadata for one table in the tenant's schema.
func (r *MetadataRepository) FetchTable(ctx context.Context, tenantID, table string) (*domain.TableMetadata, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT column_name, column_type, sensitive,
		       public_read, public_write, server_read, server_write
		FROM gateway.tenant_columns
		WHERE tenant_id = $1 AND table_name = $2
		ORDER BY position`, tenantID, table)
	if err != nil {
		return nil, domain.ErrInternal(err, "fetch table metadata")
	}
	defer rows.Close()

	meta := &domain.TableMetadata{TenantID: tenantID, Name: table}
	for rows.Next() {
		var c domain.ColumnMetadata
		if err := rows.Scan(&c.Name, &c.Type, &c.Sensitive,
			&c.PublicRead, &c.PublicWrite, &c.ServerRead, &c.ServerWrite); err != nil {
			return nil, domain.ErrInternal(err, "scan column metadata")
		}
		meta.Columns = append(meta.Columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrInternal(err, "read column metadata")
	}
	if len(meta.Columns) == 0 {
		// A table with zero columns cannot exist, so an empty result means
		// the table is not registered for this tenant.
		return nil, domain.ErrNotFound("table %q not found", table)
	}
	return meta, nil
}

// ListTables returns the names of all registered tables in the tenant's
// schema, sorted.
func (r *MetadataRepository) ListTables(ctx context.Context, tenantID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT table_name
		FROM gateway.tenant_tables
		WHERE tenant_id = $1
		ORDER BY table_name`, tenantID)
	if err != nil {
		return nil, domain.ErrInternal(err, "list tables")
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, domain.ErrInternal(err, "scan table name")
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read table names: %w", err)
	}
	return names, nil
}
