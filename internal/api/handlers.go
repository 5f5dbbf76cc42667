// Package api provides the HTTP handlers for the query gateway.
package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sseshaheen/sheenapps-query-gateway/internal/domain"
	"github.com/sseshaheen/sheenapps-query-gateway/internal/service"
)

// Pinger is the health-check slice of a connection pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// UsageReporter reads a tenant's current quota record.
type UsageReporter interface {
	Usage(ctx context.Context, tenantID string) (*domain.QuotaRecord, error)
}

// Handler serves the gateway's HTTP routes.
type Handler struct {
	query         *service.QueryService
	adhoc         *service.AdhocService
	introspection *service.IntrospectionService
	usage         UsageReporter
	db            Pinger
	logger        *slog.Logger
}

// NewHandler creates a Handler with its service dependencies.
func NewHandler(
	query *service.QueryService,
	adhoc *service.AdhocService,
	introspection *service.IntrospectionService,
	usage UsageReporter,
	db Pinger,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		query:         query,
		adhoc:         adhoc,
		introspection: introspection,
		usage:         usage,
		db:            db,
		logger:        logger,
	}
}

// maxBodyBytes caps request bodies. Contracts and ad-hoc statements are
// small; anything larger is abuse or a bug.
const maxBodyBytes = 1 << 20

// Query handles POST /v1/query.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	p, ok := domain.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, domain.ErrInternal(nil, "principal missing from request context"))
		return
	}
	body, contract, err := decodeBody[domain.QueryContract](r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	result, err := h.query.Execute(r.Context(), p, contract, int64(len(body)))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

type adhocRequest struct {
	SQL     string `json:"sql"`
	Explain bool   `json:"explain,omitempty"`
}

// Adhoc handles POST /v1/adhoc.
func (h *Handler) Adhoc(w http.ResponseWriter, r *http.Request) {
	p, ok := domain.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, domain.ErrInternal(nil, "principal missing from request context"))
		return
	}
	body, req, err := decodeBody[adhocRequest](r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.SQL == "" {
		writeError(w, h.logger, domain.ErrValidation(domain.CodeValidation, "sql is required"))
		return
	}
	result, err := h.adhoc.Execute(r.Context(), p, req.SQL, req.Explain, int64(len(body)))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

type quotaResponse struct {
	Plan          string `json:"plan"`
	RequestsUsed  int64  `json:"requestsUsed"`
	BandwidthUsed int64  `json:"bandwidthUsed"`
	ResetAt       string `json:"resetAt"`
}

// Quota handles GET /v1/quota.
func (h *Handler) Quota(w http.ResponseWriter, r *http.Request) {
	p, ok := domain.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, domain.ErrInternal(nil, "principal missing from request context"))
		return
	}
	rec, err := h.usage.Usage(r.Context(), p.TenantID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, quotaResponse{
		Plan:          rec.Plan,
		RequestsUsed:  rec.RequestsUsed,
		BandwidthUsed: rec.BandwidthUsed,
		ResetAt:       rec.ResetAt.UTC().Format(time.RFC3339),
	})
}

// ListTables handles GET /v1/tables.
func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	p, ok := domain.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, domain.ErrInternal(nil, "principal missing from request context"))
		return
	}
	tables, err := h.introspection.ListTables(r.Context(), p)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if tables == nil {
		tables = []string{}
	}
	writeData(w, http.StatusOK, map[string]interface{}{"tables": tables})
}

// DescribeTable handles GET /v1/tables/{table}.
func (h *Handler) DescribeTable(w http.ResponseWriter, r *http.Request) {
	p, ok := domain.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, domain.ErrInternal(nil, "principal missing from request context"))
		return
	}
	info, err := h.introspection.DescribeTable(r.Context(), p, chi.URLParam(r, "table"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, info)
}

type invalidateRequest struct {
	TenantID string `json:"tenantId"`
	Table    string `json:"table,omitempty"`
}

// Invalidate handles POST /internal/invalidate, called by the provisioning
// collaborator after DDL.
func (h *Handler) Invalidate(w http.ResponseWriter, r *http.Request) {
	_, req, err := decodeBody[invalidateRequest](r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.TenantID == "" {
		writeError(w, h.logger, domain.ErrValidation(domain.CodeValidation, "tenantId is required"))
		return
	}
	h.introspection.Invalidate(req.TenantID, req.Table)
	h.logger.Info("metadata invalidated", "tenant", req.TenantID, "table", req.Table)
	writeData(w, http.StatusOK, map[string]string{"result": "invalidated"})
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		writeError(w, h.logger, domain.ErrInternal(err, "database unreachable"))
		return
	}
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeBody reads and decodes a JSON request body, returning the raw bytes
// for bandwidth accounting.
func decodeBody[T any](r *http.Request) ([]byte, *T, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, nil, domain.ErrValidation(domain.CodeValidation, "read request body: %v", err)
	}
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, nil, domain.ErrValidation(domain.CodeValidation, "invalid JSON body: %v", err)
	}
	return body, &v, nil
}
