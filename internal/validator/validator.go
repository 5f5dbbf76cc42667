// Package validator decides, before any SQL exists, whether a structured
// query contract is safe to execute for a principal.
package validator

import (
	"context"

	"github.com/sseshaheen/sheenapps-query-gateway/internal/domain"
)

// TableResolver is the slice of the metadata registry the validator needs.
type TableResolver interface {
	ResolveTable(ctx context.Context, tenantID, table string) (*domain.TableMetadata, error)
}

// Validator checks query contracts against live table metadata and the
// caller's permission level. Validation is all-or-nothing: the output is
// either a fully-resolved contract or a typed rejection.
type Validator struct {
	registry     TableResolver
	schemaPrefix string
}

// New creates a Validator. schemaPrefix is prepended to the tenant id to
// form the tenant's schema name (e.g. "tenant_" + id), matching what the
// provisioning service created.
func New(registry TableResolver, schemaPrefix string) *Validator {
	return &Validator{registry: registry, schemaPrefix: schemaPrefix}
}

// SchemaFor returns the schema name for a tenant.
func (v *Validator) SchemaFor(tenantID string) string {
	return v.schemaPrefix + tenantID
}

// Validate runs the full check sequence. The checks run in a fixed order so
// every rejection carries a single, deterministic reason.
func (v *Validator) Validate(ctx context.Context, p domain.Principal, q *domain.QueryContract) (*domain.ResolvedContract, error) {
	// 1. Table exists in the caller's tenant.
	table, err := v.registry.ResolveTable(ctx, p.TenantID, q.Table)
	if err != nil {
		return nil, err
	}

	// 2. Operation is one of the four allowed kinds.
	if !q.Operation.Valid() {
		return nil, domain.ErrValidation(domain.CodeUnsupportedOperation,
			"unsupported operation %q", q.Operation)
	}

	// 3. Every named column exists. "*" is a wildcard only in the select and
	// returning lists; in a filter, sort, or values position it is just an
	// unknown name and must be rejected here, not passed to the database.
	for _, list := range [][]string{q.Columns, q.Returning} {
		for _, name := range list {
			if name == "*" {
				continue
			}
			if _, ok := table.Column(name); !ok {
				return nil, domain.ErrValidation(domain.CodeUnknownColumn,
					"unknown column %q", name)
			}
		}
	}
	for _, name := range strictColumns(q) {
		if _, ok := table.Column(name); !ok {
			return nil, domain.ErrValidation(domain.CodeUnknownColumn,
				"unknown column %q", name)
		}
	}

	// 4. Read access. Filtering or sorting by an unreadable column is
	// rejected identically to selecting it — result presence and ordering
	// leak values just the same.
	for _, name := range readColumns(q) {
		if name == "*" {
			continue
		}
		col, _ := table.Column(name)
		if !col.CanRead(p.Level) {
			return nil, domain.ErrAccessDenied(domain.CodeSensitiveColumn,
				"column %q is not readable at %s level", name, p.Level)
		}
	}

	// 5. Write access.
	for name := range q.Values {
		col, _ := table.Column(name)
		if !col.CanWrite(p.Level) {
			return nil, domain.ErrAccessDenied(domain.CodeForbiddenWrite,
				"column %q is not writable at %s level", name, p.Level)
		}
	}

	// 6. Wildcard expansion — only to the columns the caller may read.
	columns := expandWildcard(q.Columns, table, p.Level)
	returning := expandWildcard(q.Returning, table, p.Level)

	// 7. Mutating operations require at least one filter, unconditionally.
	if q.Operation.Mutating() && len(q.Filters) == 0 {
		return nil, domain.ErrValidation(domain.CodeFilterlessMutation,
			"%s without filters would affect every row", q.Operation)
	}

	// Operation-shape checks beyond the core sequence.
	if err := checkShape(q); err != nil {
		return nil, err
	}

	return &domain.ResolvedContract{
		Operation: q.Operation,
		Schema:    v.SchemaFor(p.TenantID),
		Table:     table.Name,
		Columns:   columns,
		Filters:   q.Filters,
		Sort:      q.Sort,
		Limit:     q.Limit,
		Returning: returning,
		Values:    q.Values,
	}, nil
}

// strictColumns collects the positions where a wildcard has no meaning:
// filter, sort, and values columns.
func strictColumns(q *domain.QueryContract) []string {
	out := make([]string, 0, len(q.Filters)+len(q.Sort)+len(q.Values))
	for _, f := range q.Filters {
		out = append(out, f.Column)
	}
	for _, s := range q.Sort {
		out = append(out, s.Column)
	}
	for name := range q.Values {
		out = append(out, name)
	}
	return out
}

// readColumns collects the columns used for read: select, returning, filter,
// and sort.
func readColumns(q *domain.QueryContract) []string {
	out := make([]string, 0, len(q.Columns)+len(q.Filters)+len(q.Sort)+len(q.Returning))
	out = append(out, q.Columns...)
	out = append(out, q.Returning...)
	for _, f := range q.Filters {
		out = append(out, f.Column)
	}
	for _, s := range q.Sort {
		out = append(out, s.Column)
	}
	return out
}

// expandWildcard replaces "*" with the set of columns the caller may read.
// Explicit names pass through unchanged (they were already checked).
func expandWildcard(names []string, table *domain.TableMetadata, level domain.PermissionLevel) []string {
	if len(names) == 0 {
		return nil
	}
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if name != "*" {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
			continue
		}
		for _, readable := range table.ReadableColumns(level) {
			if !seen[readable] {
				seen[readable] = true
				out = append(out, readable)
			}
		}
	}
	return out
}

// checkShape rejects contracts whose field combinations make no sense for
// the operation, before the generator ever sees them.
func checkShape(q *domain.QueryContract) error {
	switch q.Operation {
	case domain.OpSelect:
		if len(q.Columns) == 0 {
			return domain.ErrValidation(domain.CodeValidation, "select requires columns")
		}
		if len(q.Values) > 0 {
			return domain.ErrValidation(domain.CodeValidation, "select does not accept values")
		}
	case domain.OpInsert, domain.OpUpdate:
		if len(q.Values) == 0 {
			return domain.ErrValidation(domain.CodeValidation, "%s requires values", q.Operation)
		}
	case domain.OpDelete:
		if len(q.Values) > 0 {
			return domain.ErrValidation(domain.CodeValidation, "delete does not accept values")
		}
	}
	if q.Limit < 0 {
		return domain.ErrValidation(domain.CodeValidation, "limit must not be negative")
	}
	return nil
}
