// Package sqlgen turns a resolved contract into one parameterized SQL
// statement. Identifiers come only from allowlisted metadata — never from
// caller-supplied strings — and every value is a bound parameter.
package sqlgen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sseshaheen/sheenapps-query-gateway/internal/domain"
)

// Statement is a parameterized SQL statement with its bound arguments.
type Statement struct {
	SQL         string
	Args        []interface{}
	ReturnsRows bool
	ReadOnly    bool
}

type builder struct {
	sql  strings.Builder
	args []interface{}
}

// next binds a value and returns its placeholder.
func (b *builder) next(v interface{}) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

// Build emits the statement for a resolved contract. The contract must come
// from the validator; Build performs no permission checks of its own.
func Build(rc *domain.ResolvedContract) (*Statement, error) {
	b := &builder{}
	var err error
	switch rc.Operation {
	case domain.OpSelect:
		err = b.buildSelect(rc)
	case domain.OpInsert:
		err = b.buildInsert(rc)
	case domain.OpUpdate:
		err = b.buildUpdate(rc)
	case domain.OpDelete:
		err = b.buildDelete(rc)
	default:
		return nil, domain.ErrValidation(domain.CodeUnsupportedOperation,
			"unsupported operation %q", rc.Operation)
	}
	if err != nil {
		return nil, err
	}
	return &Statement{
		SQL:         b.sql.String(),
		Args:        b.args,
		ReturnsRows: rc.Operation == domain.OpSelect || len(rc.Returning) > 0,
		ReadOnly:    rc.Operation == domain.OpSelect,
	}, nil
}

func (b *builder) buildSelect(rc *domain.ResolvedContract) error {
	b.sql.WriteString("SELECT ")
	b.sql.WriteString(columnList(rc.Columns))
	b.sql.WriteString(" FROM ")
	b.sql.WriteString(qualifiedTable(rc.Schema, rc.Table))
	if err := b.writeWhere(rc.Filters); err != nil {
		return err
	}
	if len(rc.Sort) > 0 {
		b.sql.WriteString(" ORDER BY ")
		terms := make([]string, len(rc.Sort))
		for i, s := range rc.Sort {
			terms[i] = QuoteIdentifier(s.Column)
			if s.Desc {
				terms[i] += " DESC"
			}
		}
		b.sql.WriteString(strings.Join(terms, ", "))
	}
	if rc.Limit > 0 {
		b.sql.WriteString(" LIMIT ")
		b.sql.WriteString(b.next(rc.Limit))
	}
	return nil
}

func (b *builder) buildInsert(rc *domain.ResolvedContract) error {
	names := sortedKeys(rc.Values)
	b.sql.WriteString("INSERT INTO ")
	b.sql.WriteString(qualifiedTable(rc.Schema, rc.Table))
	b.sql.WriteString(" (")
	b.sql.WriteString(columnList(names))
	b.sql.WriteString(") VALUES (")
	placeholders := make([]string, len(names))
	for i, name := range names {
		placeholders[i] = b.next(rc.Values[name])
	}
	b.sql.WriteString(strings.Join(placeholders, ", "))
	b.sql.WriteString(")")
	b.writeReturning(rc.Returning)
	return nil
}

func (b *builder) buildUpdate(rc *domain.ResolvedContract) error {
	names := sortedKeys(rc.Values)
	b.sql.WriteString("UPDATE ")
	b.sql.WriteString(qualifiedTable(rc.Schema, rc.Table))
	b.sql.WriteString(" SET ")
	sets := make([]string, len(names))
	for i, name := range names {
		sets[i] = QuoteIdentifier(name) + " = " + b.next(rc.Values[name])
	}
	b.sql.WriteString(strings.Join(sets, ", "))
	if err := b.writeWhere(rc.Filters); err != nil {
		return err
	}
	b.writeReturning(rc.Returning)
	return nil
}

func (b *builder) buildDelete(rc *domain.ResolvedContract) error {
	b.sql.WriteString("DELETE FROM ")
	b.sql.WriteString(qualifiedTable(rc.Schema, rc.Table))
	if err := b.writeWhere(rc.Filters); err != nil {
		return err
	}
	b.writeReturning(rc.Returning)
	return nil
}

func (b *builder) writeReturning(returning []string) {
	if len(returning) == 0 {
		return
	}
	b.sql.WriteString(" RETURNING ")
	b.sql.WriteString(columnList(returning))
}

func (b *builder) writeWhere(filters []domain.Filter) error {
	if len(filters) == 0 {
		return nil
	}
	b.sql.WriteString(" WHERE ")
	for i, f := range filters {
		if i > 0 {
			b.sql.WriteString(" AND ")
		}
		if err := b.writeFilter(f); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) writeFilter(f domain.Filter) error {
	col := QuoteIdentifier(f.Column)
	switch f.Op {
	case domain.FilterEq:
		b.sql.WriteString(col + " = " + b.next(f.Value))
	case domain.FilterNeq:
		b.sql.WriteString(col + " <> " + b.next(f.Value))
	case domain.FilterGt:
		b.sql.WriteString(col + " > " + b.next(f.Value))
	case domain.FilterGte:
		b.sql.WriteString(col + " >= " + b.next(f.Value))
	case domain.FilterLt:
		b.sql.WriteString(col + " < " + b.next(f.Value))
	case domain.FilterLte:
		b.sql.WriteString(col + " <= " + b.next(f.Value))
	case domain.FilterLike:
		b.sql.WriteString(col + " LIKE " + b.next(f.Value))
	case domain.FilterILike:
		b.sql.WriteString(col + " ILIKE " + b.next(f.Value))
	case domain.FilterIn:
		return b.writeIn(col, f.Value)
	case domain.FilterIs:
		return b.writeIs(col, f.Value)
	case domain.FilterContains:
		return b.writeArrayOp(col, "@>", f.Value)
	case domain.FilterOverlaps:
		return b.writeArrayOp(col, "&&", f.Value)
	default:
		return domain.ErrValidation(domain.CodeValidation,
			"unknown filter operator %q", f.Op)
	}
	return nil
}

func (b *builder) writeIn(col string, value interface{}) error {
	items, ok := value.([]interface{})
	if !ok || len(items) == 0 {
		return domain.ErrValidation(domain.CodeValidation,
			"operator %q requires a non-empty array value", domain.FilterIn)
	}
	placeholders := make([]string, len(items))
	for i, item := range items {
		placeholders[i] = b.next(item)
	}
	b.sql.WriteString(col + " IN (" + strings.Join(placeholders, ", ") + ")")
	return nil
}

// writeIs accepts only null, true, and false. Anything else is rejected
// outright rather than silently emitting invalid SQL.
func (b *builder) writeIs(col string, value interface{}) error {
	switch v := value.(type) {
	case nil:
		b.sql.WriteString(col + " IS NULL")
	case bool:
		if v {
			b.sql.WriteString(col + " IS TRUE")
		} else {
			b.sql.WriteString(col + " IS FALSE")
		}
	case string:
		// JSON callers send the literal as a string.
		switch strings.ToLower(v) {
		case "null":
			b.sql.WriteString(col + " IS NULL")
		case "true":
			b.sql.WriteString(col + " IS TRUE")
		case "false":
			b.sql.WriteString(col + " IS FALSE")
		default:
			return domain.ErrValidation(domain.CodeValidation,
				"operator %q accepts only null, true, or false", domain.FilterIs)
		}
	default:
		return domain.ErrValidation(domain.CodeValidation,
			"operator %q accepts only null, true, or false", domain.FilterIs)
	}
	return nil
}

func (b *builder) writeArrayOp(col, op string, value interface{}) error {
	arr, err := coerceArray(value)
	if err != nil {
		return err
	}
	b.sql.WriteString(col + " " + op + " " + b.next(arr))
	return nil
}

// coerceArray converts a JSON-decoded array into a typed slice pgx can bind
// as a PostgreSQL array parameter.
func coerceArray(value interface{}) (interface{}, error) {
	items, ok := value.([]interface{})
	if !ok || len(items) == 0 {
		return nil, domain.ErrValidation(domain.CodeValidation,
			"array operator requires a non-empty array value")
	}
	switch items[0].(type) {
	case string:
		out := make([]string, len(items))
		for i, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, domain.ErrValidation(domain.CodeValidation,
					"array elements must share one type")
			}
			out[i] = s
		}
		return out, nil
	case float64:
		out := make([]float64, len(items))
		for i, item := range items {
			f, ok := item.(float64)
			if !ok {
				return nil, domain.ErrValidation(domain.CodeValidation,
					"array elements must share one type")
			}
			out[i] = f
		}
		return out, nil
	default:
		return nil, domain.ErrValidation(domain.CodeValidation,
			"unsupported array element type %T", items[0])
	}
}

func columnList(names []string) string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = QuoteIdentifier(name)
	}
	return strings.Join(quoted, ", ")
}

func qualifiedTable(schema, table string) string {
	return QuoteIdentifier(schema) + "." + QuoteIdentifier(table)
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// QuoteIdentifier quotes a SQL identifier if it contains special characters
// or uppercase letters. Uses double quotes.
func QuoteIdentifier(s string) string {
	for _, c := range s {
		if !((c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_') {
			return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
		}
	}
	return s
}
