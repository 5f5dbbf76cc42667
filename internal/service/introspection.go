package service

import (
	"context"

	"github.com/sseshaheen/sheenapps-query-gateway/internal/domain"
	"github.com/sseshaheen/sheenapps-query-gateway/internal/registry"
)

// IntrospectionService answers table listing and description requests,
// filtered to the caller's permission level, and handles DDL cache
// invalidation from the provisioning collaborator.
type IntrospectionService struct {
	registry *registry.Registry
}

// NewIntrospectionService creates an IntrospectionService.
func NewIntrospectionService(reg *registry.Registry) *IntrospectionService {
	return &IntrospectionService{registry: reg}
}

// ColumnInfo is the caller-facing description of one column. Permission flags
// for levels above the caller's are not exposed.
type ColumnInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Writable bool   `json:"writable"`
}

// TableInfo is the caller-facing description of one table.
type TableInfo struct {
	Name    string       `json:"name"`
	Columns []ColumnInfo `json:"columns"`
}

// ListTables returns the names of the caller's tables.
func (s *IntrospectionService) ListTables(ctx context.Context, p domain.Principal) ([]string, error) {
	return s.registry.ListTables(ctx, p.TenantID)
}

// DescribeTable returns a table's columns filtered to what the caller may
// read. A public caller cannot learn that a sensitive column exists.
func (s *IntrospectionService) DescribeTable(ctx context.Context, p domain.Principal, table string) (*TableInfo, error) {
	tm, err := s.registry.DescribeTable(ctx, p, table)
	if err != nil {
		return nil, err
	}
	info := &TableInfo{Name: tm.Name, Columns: make([]ColumnInfo, 0, len(tm.Columns))}
	for _, c := range tm.Columns {
		info.Columns = append(info.Columns, ColumnInfo{
			Name:     c.Name,
			Type:     c.Type,
			Writable: c.CanWrite(p.Level),
		})
	}
	return info, nil
}

// Invalidate evicts cached metadata after a DDL event. An empty table name
// evicts everything for the tenant.
func (s *IntrospectionService) Invalidate(tenantID, table string) {
	s.registry.Invalidate(tenantID, table)
}
