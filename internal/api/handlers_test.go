package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sseshaheen/sheenapps-query-gateway/internal/domain"
	"github.com/sseshaheen/sheenapps-query-gateway/internal/engine"
	"github.com/sseshaheen/sheenapps-query-gateway/internal/registry"
	"github.com/sseshaheen/sheenapps-query-gateway/internal/service"
	"github.com/sseshaheen/sheenapps-query-gateway/internal/sqlgen"
)

var testSecret = []byte("api-test-secret")

type fixedValidator struct {
	resolved *domain.ResolvedContract
	err      error
}

func (f *fixedValidator) Validate(_ context.Context, _ domain.Principal, _ *domain.QueryContract) (*domain.ResolvedContract, error) {
	return f.resolved, f.err
}

type fixedExecutor struct {
	result *engine.Result
	err    error
}

func (f *fixedExecutor) Execute(_ context.Context, _ string, _ *sqlgen.Statement) (*engine.Result, error) {
	return f.result, f.err
}

func (f *fixedExecutor) ExecuteReadOnly(_ context.Context, _, _ string) (*engine.Result, error) {
	return f.result, f.err
}

type openQuota struct{ err error }

func (q *openQuota) CheckAndReserve(_ context.Context, _ string, _ int64) error { return q.err }
func (q *openQuota) CommitUsage(_ context.Context, _ string, _ int64) error     { return nil }

type nopSink struct{}

func (nopSink) Record(_ context.Context, _ *domain.AuditEntry) error { return nil }

type staticMetadata struct {
	tables map[string]*domain.TableMetadata
}

func (s *staticMetadata) FetchTable(_ context.Context, tenantID, table string) (*domain.TableMetadata, error) {
	if tm, ok := s.tables[tenantID+"/"+table]; ok {
		return tm, nil
	}
	return nil, domain.ErrNotFound("table %q not found", table)
}

func (s *staticMetadata) ListTables(_ context.Context, tenantID string) ([]string, error) {
	var names []string
	for key := range s.tables {
		if len(key) > len(tenantID) && key[:len(tenantID)+1] == tenantID+"/" {
			names = append(names, key[len(tenantID)+1:])
		}
	}
	return names, nil
}

type staticUsage struct{}

func (staticUsage) Usage(_ context.Context, tenantID string) (*domain.QuotaRecord, error) {
	return &domain.QuotaRecord{
		TenantID:      tenantID,
		Plan:          "free",
		RequestsUsed:  42,
		BandwidthUsed: 1024,
		ResetAt:       time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
	}, nil
}

type okPinger struct{ err error }

func (p okPinger) Ping(_ context.Context) error { return p.err }

var quietLogger = slog.New(slog.NewTextHandler(nopWriter{}, nil))

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

type fixture struct {
	validator *fixedValidator
	executor  *fixedExecutor
	quota     *openQuota
	ping      okPinger
}

func newServer(t *testing.T, fx fixture) *httptest.Server {
	t.Helper()
	querySvc := service.NewQueryService(fx.validator, fx.executor, fx.quota, nopSink{}, quietLogger)
	adhocSvc := service.NewAdhocService(fx.executor, fx.quota, nopSink{}, "tenant_", quietLogger)

	store := &staticMetadata{tables: map[string]*domain.TableMetadata{
		"t1/users": {
			TenantID: "t1",
			Name:     "users",
			Columns: []domain.ColumnMetadata{
				{Name: "id", Type: "bigint", PublicRead: true, ServerRead: true},
				{Name: "password_hash", Type: "text", Sensitive: true, ServerRead: true},
			},
		},
	}}
	introspectionSvc := service.NewIntrospectionService(registry.New(store, time.Minute))

	handler := NewHandler(querySvc, adhocSvc, introspectionSvc, staticUsage{}, fx.ping, quietLogger)
	srv := httptest.NewServer(NewRouter(handler, RouterConfig{AssertionSecret: testSecret}))
	t.Cleanup(srv.Close)
	return srv
}

func assertion(t *testing.T, tenantID, level string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"tid": tenantID,
		"lvl": level,
		"exp": time.Now().Add(time.Minute).Unix(),
	})
	signed, err := token.SignedString(testSecret)
	require.NoError(t, err)
	return signed
}

func doJSON(t *testing.T, srv *httptest.Server, method, path, token string, body interface{}) (*http.Response, Envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var env Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}

func TestQueryEndpoint_ReturnsDataEnvelope(t *testing.T) {
	srv := newServer(t, fixture{
		validator: &fixedValidator{resolved: &domain.ResolvedContract{
			Operation: domain.OpSelect,
			Schema:    "tenant_t1",
			Table:     "users",
			Columns:   []string{"id"},
		}},
		executor: &fixedExecutor{result: &engine.Result{
			Columns: []string{"id"},
			Rows:    [][]interface{}{{float64(1)}},
		}},
		quota: &openQuota{},
	})

	resp, env := doJSON(t, srv, http.MethodPost, "/v1/query", assertion(t, "t1", "public"),
		map[string]interface{}{"operation": "select", "table": "users", "columns": []string{"id"}})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, env.Error)
	require.NotNil(t, env.Data)
	assert.Equal(t, http.StatusOK, env.Status)
}

func TestQueryEndpoint_ValidationErrorEnvelope(t *testing.T) {
	srv := newServer(t, fixture{
		validator: &fixedValidator{err: domain.ErrValidation(domain.CodeUnknownColumn, "unknown column \"nope\"")},
		executor:  &fixedExecutor{},
		quota:     &openQuota{},
	})

	resp, env := doJSON(t, srv, http.MethodPost, "/v1/query", assertion(t, "t1", "public"),
		map[string]interface{}{"operation": "select", "table": "users", "columns": []string{"nope"}})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Nil(t, env.Data)
	require.NotNil(t, env.Error)
	assert.Equal(t, domain.CodeUnknownColumn, env.Error.Code)
	assert.False(t, env.Error.Retryable)
}

func TestQueryEndpoint_QuotaDenialCarriesRetryAfter(t *testing.T) {
	srv := newServer(t, fixture{
		validator: &fixedValidator{},
		executor:  &fixedExecutor{},
		quota:     &openQuota{err: domain.ErrRateLimited(2 * time.Second)},
	})

	resp, env := doJSON(t, srv, http.MethodPost, "/v1/query", assertion(t, "t1", "public"),
		map[string]interface{}{"operation": "select", "table": "users", "columns": []string{"id"}})

	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.NotNil(t, env.Error)
	assert.Equal(t, domain.CodeRateLimited, env.Error.Code)
	assert.True(t, env.Error.Retryable)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestQueryEndpoint_InternalErrorIsOpaque(t *testing.T) {
	srv := newServer(t, fixture{
		validator: &fixedValidator{resolved: &domain.ResolvedContract{
			Operation: domain.OpSelect, Schema: "tenant_t1", Table: "users", Columns: []string{"id"},
		}},
		executor: &fixedExecutor{err: domain.ErrInternal(assert.AnError, "statement execution failed")},
		quota:    &openQuota{},
	})

	resp, env := doJSON(t, srv, http.MethodPost, "/v1/query", assertion(t, "t1", "public"),
		map[string]interface{}{"operation": "select", "table": "users", "columns": []string{"id"}})

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.NotNil(t, env.Error)
	assert.Equal(t, domain.CodeInternal, env.Error.Code)
	assert.Equal(t, "internal error", env.Error.Message)
}

func TestQueryEndpoint_RequiresAssertion(t *testing.T) {
	srv := newServer(t, fixture{validator: &fixedValidator{}, executor: &fixedExecutor{}, quota: &openQuota{}})

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/query", bytes.NewBufferString("{}"))
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdhocEndpoint_RequiresOperatorLevel(t *testing.T) {
	srv := newServer(t, fixture{validator: &fixedValidator{}, executor: &fixedExecutor{}, quota: &openQuota{}})

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/adhoc",
		bytes.NewBufferString(`{"sql":"SELECT 1"}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+assertion(t, "t1", "server"))
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAdhocEndpoint_ExecutesForOperator(t *testing.T) {
	srv := newServer(t, fixture{
		validator: &fixedValidator{},
		executor: &fixedExecutor{result: &engine.Result{
			Columns: []string{"?column?"},
			Rows:    [][]interface{}{{float64(1)}},
		}},
		quota: &openQuota{},
	})

	resp, env := doJSON(t, srv, http.MethodPost, "/v1/adhoc", assertion(t, "t1", "operator"),
		map[string]interface{}{"sql": "SELECT 1"})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, env.Error)
}

func TestAdhocEndpoint_RejectsMutation(t *testing.T) {
	srv := newServer(t, fixture{validator: &fixedValidator{}, executor: &fixedExecutor{}, quota: &openQuota{}})

	resp, env := doJSON(t, srv, http.MethodPost, "/v1/adhoc", assertion(t, "t1", "operator"),
		map[string]interface{}{"sql": "DELETE FROM users"})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.NotNil(t, env.Error)
	assert.Equal(t, domain.CodeUnsupportedOperation, env.Error.Code)
}

func TestListTables_ReturnsTenantTables(t *testing.T) {
	srv := newServer(t, fixture{validator: &fixedValidator{}, executor: &fixedExecutor{}, quota: &openQuota{}})

	resp, env := doJSON(t, srv, http.MethodGet, "/v1/tables", assertion(t, "t1", "public"), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data, ok := env.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, []interface{}{"users"}, data["tables"])
}

func TestDescribeTable_FiltersSensitiveColumnsForPublic(t *testing.T) {
	srv := newServer(t, fixture{validator: &fixedValidator{}, executor: &fixedExecutor{}, quota: &openQuota{}})

	_, env := doJSON(t, srv, http.MethodGet, "/v1/tables/users", assertion(t, "t1", "public"), nil)
	body, err := json.Marshal(env.Data)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"id"`)
	assert.NotContains(t, string(body), "password_hash")

	_, env = doJSON(t, srv, http.MethodGet, "/v1/tables/users", assertion(t, "t1", "server"), nil)
	body, err = json.Marshal(env.Data)
	require.NoError(t, err)
	assert.Contains(t, string(body), "password_hash")
}

func TestDescribeTable_UnknownTableIs404(t *testing.T) {
	srv := newServer(t, fixture{validator: &fixedValidator{}, executor: &fixedExecutor{}, quota: &openQuota{}})

	resp, env := doJSON(t, srv, http.MethodGet, "/v1/tables/missing", assertion(t, "t1", "public"), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.NotNil(t, env.Error)
	assert.Equal(t, domain.CodeNotFound, env.Error.Code)
}

func TestInvalidate_RequiresOperator(t *testing.T) {
	srv := newServer(t, fixture{validator: &fixedValidator{}, executor: &fixedExecutor{}, quota: &openQuota{}})

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/internal/invalidate",
		bytes.NewBufferString(`{"tenantId":"t1"}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+assertion(t, "t1", "server"))
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestInvalidate_EvictsForOperator(t *testing.T) {
	srv := newServer(t, fixture{validator: &fixedValidator{}, executor: &fixedExecutor{}, quota: &openQuota{}})

	resp, env := doJSON(t, srv, http.MethodPost, "/internal/invalidate",
		assertion(t, "t1", "operator"), map[string]string{"tenantId": "t1"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, env.Error)
}

func TestQuotaEndpoint_ReturnsUsage(t *testing.T) {
	srv := newServer(t, fixture{validator: &fixedValidator{}, executor: &fixedExecutor{}, quota: &openQuota{}})

	resp, env := doJSON(t, srv, http.MethodGet, "/v1/quota", assertion(t, "t1", "public"), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data, ok := env.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "free", data["plan"])
	assert.Equal(t, float64(42), data["requestsUsed"])
	assert.Equal(t, "2026-09-01T00:00:00Z", data["resetAt"])
}

func TestHandlers_MissingPrincipalIsInternalError(t *testing.T) {
	// Handlers are only mounted behind the principal middleware; a request
	// reaching one without a principal in context is a wiring bug and must
	// surface as INTERNAL_ERROR, not a validation code.
	h := NewHandler(nil, nil, nil, staticUsage{}, okPinger{}, quietLogger)

	rec := httptest.NewRecorder()
	h.Query(rec, httptest.NewRequest(http.MethodPost, "/v1/query", bytes.NewBufferString("{}")))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.NotNil(t, env.Error)
	assert.Equal(t, domain.CodeInternal, env.Error.Code)
}

func TestHealthz_ReportsDatabaseState(t *testing.T) {
	srv := newServer(t, fixture{validator: &fixedValidator{}, executor: &fixedExecutor{}, quota: &openQuota{}})
	resp, env := doJSON(t, srv, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, env.Error)

	down := newServer(t, fixture{
		validator: &fixedValidator{}, executor: &fixedExecutor{}, quota: &openQuota{},
		ping: okPinger{err: assert.AnError},
	})
	resp, env = doJSON(t, down, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.NotNil(t, env.Error)
}
