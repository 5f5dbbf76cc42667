package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sseshaheen/sheenapps-query-gateway/internal/domain"
	"github.com/sseshaheen/sheenapps-query-gateway/internal/engine"
)

type fakeReadOnlyExecutor struct {
	schema string
	sql    string
	result *engine.Result
	err    error
}

func (f *fakeReadOnlyExecutor) ExecuteReadOnly(_ context.Context, schema, sql string) (*engine.Result, error) {
	f.schema = schema
	f.sql = sql
	return f.result, f.err
}

func operatorPrincipal() domain.Principal {
	return domain.Principal{TenantID: "t1", Level: domain.LevelOperator}
}

func newAdhocService(exec *fakeReadOnlyExecutor, quota *fakeQuota, sink *memSink) *AdhocService {
	return NewAdhocService(exec, quota, sink, "tenant_", testLogger)
}

func TestAdhocService_RunsNormalizedSQLInTenantSchema(t *testing.T) {
	exec := &fakeReadOnlyExecutor{result: &engine.Result{
		Columns: []string{"id"},
		Rows:    [][]interface{}{{int64(1)}},
	}}
	sink := &memSink{}
	svc := newAdhocService(exec, &fakeQuota{}, sink)

	res, err := svc.Execute(context.Background(), operatorPrincipal(),
		"SELECT /* note */ id FROM users", false, 50)
	require.NoError(t, err)

	assert.Equal(t, "tenant_t1", exec.schema)
	// The deparsed statement runs, not the raw text.
	assert.Equal(t, "SELECT id FROM users", exec.sql)
	assert.Equal(t, [][]interface{}{{int64(1)}}, res.Rows)
	assert.Nil(t, res.Plan)

	entry := sink.last(t)
	assert.Equal(t, "adhoc", entry.Action)
	assert.Equal(t, "select", entry.StatementKind)
	assert.Equal(t, "ok", entry.Status)
}

func TestAdhocService_RequiresOperatorLevel(t *testing.T) {
	exec := &fakeReadOnlyExecutor{}
	quota := &fakeQuota{}
	svc := newAdhocService(exec, quota, &memSink{})

	for _, level := range []domain.PermissionLevel{domain.LevelPublic, domain.LevelServer} {
		_, err := svc.Execute(context.Background(),
			domain.Principal{TenantID: "t1", Level: level}, "SELECT 1", false, 10)
		require.Error(t, err, "level %s", level)
		var denied *domain.AccessDeniedError
		assert.ErrorAs(t, err, &denied)
	}
	assert.Empty(t, exec.sql)
	assert.Empty(t, quota.reserved, "denied callers must not consume quota")
}

func TestAdhocService_RejectsMutationsBeforeExecution(t *testing.T) {
	exec := &fakeReadOnlyExecutor{}
	svc := newAdhocService(exec, &fakeQuota{}, &memSink{})

	_, err := svc.Execute(context.Background(), operatorPrincipal(),
		"DELETE FROM users", false, 10)
	require.Error(t, err)
	assert.Equal(t, domain.CodeUnsupportedOperation, domain.ErrorCode(err))
	assert.Empty(t, exec.sql, "rejected SQL must never reach the engine")
}

func TestAdhocService_QuotaAppliesBeforeInspection(t *testing.T) {
	exec := &fakeReadOnlyExecutor{}
	quota := &fakeQuota{reserveErr: domain.ErrRateLimited(0)}
	svc := newAdhocService(exec, quota, &memSink{})

	_, err := svc.Execute(context.Background(), operatorPrincipal(), "SELECT 1", false, 10)
	require.Error(t, err)
	assert.Equal(t, domain.CodeRateLimited, domain.ErrorCode(err))
	assert.Empty(t, exec.sql)
}

func TestAdhocService_ExplainFlagWrapsStatement(t *testing.T) {
	exec := &fakeReadOnlyExecutor{result: &engine.Result{
		Columns: []string{"QUERY PLAN"},
		Rows: [][]interface{}{
			{"Seq Scan on users  (cost=0.00..1.00 rows=1 width=4)"},
		},
	}}
	sink := &memSink{}
	svc := newAdhocService(exec, &fakeQuota{}, sink)

	res, err := svc.Execute(context.Background(), operatorPrincipal(),
		"SELECT id FROM users", true, 10)
	require.NoError(t, err)

	assert.Contains(t, exec.sql, "EXPLAIN")
	require.Len(t, res.Plan, 1)
	assert.Contains(t, res.Plan[0], "Seq Scan")
	assert.Equal(t, "explain", sink.last(t).StatementKind)
}

func TestAdhocService_ExplainOfMutationRejected(t *testing.T) {
	exec := &fakeReadOnlyExecutor{}
	svc := newAdhocService(exec, &fakeQuota{}, &memSink{})

	_, err := svc.Execute(context.Background(), operatorPrincipal(),
		"DELETE FROM users", true, 10)
	require.Error(t, err)
	assert.Equal(t, domain.CodeUnsupportedOperation, domain.ErrorCode(err))
	assert.Empty(t, exec.sql)
}
