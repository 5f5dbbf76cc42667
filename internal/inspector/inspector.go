// Package inspector restricts operator-submitted free-text SQL to a parsed,
// single-statement, read-only subset with no cross-schema references.
//
// The raw text is parsed into an AST with the PostgreSQL parser
// (pg_query_go) — never regex or string splitting, because dollar-quoted
// strings, escaped quotes, and unicode escapes defeat naive statement
// boundary detection.
package inspector

import (
	pg_query "github.com/pganalyze/pg_query_go/v6"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/sseshaheen/sheenapps-query-gateway/internal/domain"
)

// Inspection is the outcome of a successful check.
type Inspection struct {
	// Normalized is the deparsed statement. Executing the deparsed form
	// strips comments and exotic quoting from the original text.
	Normalized string
	// StatementKind is "select" or "explain".
	StatementKind string
}

// Inspect parses the text and enforces the ad-hoc rules:
// exactly one statement; a read-only statement kind (select, set-operation,
// values, or explain wrapping one of those); no schema-qualified reference
// anywhere in the tree, system catalogs included.
func Inspect(sql string) (*Inspection, error) {
	result, err := pg_query.Parse(sql)
	if err != nil {
		return nil, domain.ErrValidation(domain.CodeParseError, "SQL parse error: %v", err)
	}
	if len(result.Stmts) != 1 {
		// More than one statement in a single round-trip could smuggle an
		// unreviewed second statement.
		return nil, domain.ErrValidation(domain.CodeMultiStatement,
			"expected exactly one statement, got %d", len(result.Stmts))
	}

	stmt := result.Stmts[0].Stmt
	kind, err := statementKind(stmt)
	if err != nil {
		return nil, err
	}
	if err := walk(stmt.ProtoReflect(), checkNode); err != nil {
		return nil, err
	}

	normalized, err := pg_query.Deparse(result)
	if err != nil {
		return nil, domain.ErrValidation(domain.CodeParseError, "SQL deparse error: %v", err)
	}
	return &Inspection{Normalized: normalized, StatementKind: kind}, nil
}

// statementKind accepts plain selects (which cover set operations and
// VALUES) and EXPLAIN wrapping one. Everything else — DML, DDL, session
// settings, procedural statements — is rejected.
func statementKind(node *pg_query.Node) (string, error) {
	switch n := node.Node.(type) {
	case *pg_query.Node_SelectStmt:
		if len(n.SelectStmt.LockingClause) > 0 {
			return "", domain.ErrValidation(domain.CodeUnsupportedOperation,
				"locking clauses are not allowed in ad-hoc queries")
		}
		return "select", nil
	case *pg_query.Node_ExplainStmt:
		inner, err := statementKind(n.ExplainStmt.Query)
		if err != nil {
			return "", err
		}
		if inner != "select" {
			return "", domain.ErrValidation(domain.CodeUnsupportedOperation,
				"EXPLAIN may only wrap a read-only statement")
		}
		return "explain", nil
	default:
		return "", domain.ErrValidation(domain.CodeUnsupportedOperation,
			"only read-only statements are allowed in ad-hoc queries")
	}
}

// checkNode rejects schema-qualified references and any mutating statement
// embedded in the tree (for example a data-modifying CTE).
func checkNode(m protoreflect.Message) error {
	switch node := m.Interface().(type) {
	case *pg_query.RangeVar:
		if node.Schemaname != "" || node.Catalogname != "" {
			return domain.ErrValidation(domain.CodeQualifiedIdentifier,
				"schema-qualified reference %q is not allowed", qualifiedName(node))
		}
	case *pg_query.ColumnRef:
		// table.column is two fields; three or more means a schema (or
		// catalog) qualification.
		if countNameFields(node.Fields) >= 3 {
			return domain.ErrValidation(domain.CodeQualifiedIdentifier,
				"schema-qualified column reference is not allowed")
		}
	case *pg_query.FuncCall:
		if countNameFields(node.Funcname) >= 2 {
			return domain.ErrValidation(domain.CodeQualifiedIdentifier,
				"schema-qualified function call is not allowed")
		}
	case *pg_query.InsertStmt, *pg_query.UpdateStmt, *pg_query.DeleteStmt,
		*pg_query.MergeStmt, *pg_query.CopyStmt, *pg_query.VariableSetStmt:
		return domain.ErrValidation(domain.CodeUnsupportedOperation,
			"only read-only statements are allowed in ad-hoc queries")
	}
	return nil
}

func qualifiedName(rv *pg_query.RangeVar) string {
	name := rv.Relname
	if rv.Schemaname != "" {
		name = rv.Schemaname + "." + name
	}
	if rv.Catalogname != "" {
		name = rv.Catalogname + "." + name
	}
	return name
}

func countNameFields(fields []*pg_query.Node) int {
	count := 0
	for _, f := range fields {
		if _, ok := f.Node.(*pg_query.Node_String_); ok {
			count++
		}
	}
	return count
}

// walk visits every message in the protobuf tree. Walking via reflection
// instead of a hand-written per-node switch means a node kind added by a
// parser upgrade cannot silently bypass the checks.
func walk(m protoreflect.Message, visit func(protoreflect.Message) error) error {
	if err := visit(m); err != nil {
		return err
	}
	var walkErr error
	m.Range(func(fd protoreflect.FieldDescriptor, v protoreflect.Value) bool {
		switch {
		case fd.IsList():
			if fd.Kind() != protoreflect.MessageKind {
				return true
			}
			list := v.List()
			for i := 0; i < list.Len(); i++ {
				if walkErr = walk(list.Get(i).Message(), visit); walkErr != nil {
					return false
				}
			}
		case fd.IsMap():
			// The pg_query schema has no map fields.
		case fd.Kind() == protoreflect.MessageKind:
			if walkErr = walk(v.Message(), visit); walkErr != nil {
				return false
			}
		}
		return true
	})
	return walkErr
}
