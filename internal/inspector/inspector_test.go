package inspector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sseshaheen/sheenapps-query-gateway/internal/domain"
)

func TestInspect_AcceptsPlainSelect(t *testing.T) {
	insp, err := Inspect("SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, "select", insp.StatementKind)
	assert.Equal(t, "SELECT 1", insp.Normalized)
}

func TestInspect_AcceptsExplain(t *testing.T) {
	insp, err := Inspect("EXPLAIN SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, "explain", insp.StatementKind)
}

func TestInspect_AcceptsSetOperationsAndValues(t *testing.T) {
	for _, sql := range []string{
		"SELECT id FROM users UNION SELECT id FROM orders",
		"SELECT 1 INTERSECT SELECT 2",
		"VALUES (1, 'a'), (2, 'b')",
		"WITH recent AS (SELECT id FROM events) SELECT count(*) FROM recent",
	} {
		_, err := Inspect(sql)
		assert.NoError(t, err, "sql: %s", sql)
	}
}

func TestInspect_RejectsParseErrors(t *testing.T) {
	_, err := Inspect("SELEC 1")
	require.Error(t, err)
	assert.Equal(t, domain.CodeParseError, domain.ErrorCode(err))
}

func TestInspect_RejectsMultiStatement(t *testing.T) {
	for _, sql := range []string{
		"SELECT 1; SELECT 2",
		"SELECT 1; DROP TABLE users",
		// A dollar-quoted string hides a semicolon only from naive
		// splitters, not from the parser.
		"SELECT $tag$x; y$tag$; DELETE FROM users",
	} {
		_, err := Inspect(sql)
		require.Error(t, err, "sql: %s", sql)
		assert.Equal(t, domain.CodeMultiStatement, domain.ErrorCode(err), "sql: %s", sql)
	}
}

func TestInspect_SemicolonInStringIsOneStatement(t *testing.T) {
	_, err := Inspect("SELECT 'a; b'")
	assert.NoError(t, err)
}

func TestInspect_RejectsNonReadOnlyStatements(t *testing.T) {
	for _, sql := range []string{
		"INSERT INTO users (id) VALUES (1)",
		"UPDATE users SET email = 'x'",
		"DELETE FROM users",
		"DROP TABLE users",
		"CREATE TABLE t (id int)",
		"SET search_path TO other_schema",
		"TRUNCATE users",
		"GRANT ALL ON users TO PUBLIC",
		"DO $$ BEGIN NULL; END $$",
		"EXPLAIN DELETE FROM users",
	} {
		_, err := Inspect(sql)
		require.Error(t, err, "sql: %s", sql)
		assert.Equal(t, domain.CodeUnsupportedOperation, domain.ErrorCode(err), "sql: %s", sql)
	}
}

func TestInspect_RejectsDataModifyingCTE(t *testing.T) {
	_, err := Inspect("WITH gone AS (DELETE FROM users RETURNING id) SELECT * FROM gone")
	require.Error(t, err)
	assert.Equal(t, domain.CodeUnsupportedOperation, domain.ErrorCode(err))
}

func TestInspect_RejectsLockingClause(t *testing.T) {
	_, err := Inspect("SELECT id FROM users FOR UPDATE")
	require.Error(t, err)
	assert.Equal(t, domain.CodeUnsupportedOperation, domain.ErrorCode(err))
}

func TestInspect_RejectsQualifiedTables(t *testing.T) {
	for _, sql := range []string{
		"SELECT * FROM other_schema.orders",
		"SELECT * FROM pg_catalog.pg_tables",
		"SELECT * FROM information_schema.columns",
		"SELECT 1 FROM users JOIN other_schema.orders o ON o.id = users.id",
		"SELECT (SELECT count(*) FROM pg_catalog.pg_roles)",
		"WITH x AS (SELECT * FROM secret_schema.t) SELECT * FROM x",
	} {
		_, err := Inspect(sql)
		require.Error(t, err, "sql: %s", sql)
		assert.Equal(t, domain.CodeQualifiedIdentifier, domain.ErrorCode(err), "sql: %s", sql)
	}
}

func TestInspect_RejectsQualifiedColumnsAndFunctions(t *testing.T) {
	for _, sql := range []string{
		"SELECT other_schema.users.email FROM users",
		"SELECT pg_catalog.pg_sleep(10)",
		"SELECT pg_catalog.version()",
	} {
		_, err := Inspect(sql)
		require.Error(t, err, "sql: %s", sql)
		assert.Equal(t, domain.CodeQualifiedIdentifier, domain.ErrorCode(err), "sql: %s", sql)
	}
}

func TestInspect_AllowsTableQualifiedColumns(t *testing.T) {
	// Two-part references (alias.column) stay legal; only a third part
	// means a schema qualification.
	_, err := Inspect("SELECT u.email FROM users u WHERE u.active")
	assert.NoError(t, err)
}

func TestInspect_AllowsUnqualifiedFunctions(t *testing.T) {
	_, err := Inspect("SELECT count(*), now() FROM users")
	assert.NoError(t, err)
}

func TestInspect_NormalizesComments(t *testing.T) {
	insp, err := Inspect("SELECT /* sneaky */ 1 -- trailing")
	require.NoError(t, err)
	assert.NotContains(t, insp.Normalized, "sneaky")
}
