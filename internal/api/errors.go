package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sseshaheen/sheenapps-query-gateway/internal/domain"
)

// ErrorBody is the error half of a response envelope.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// Envelope is the uniform response shape. Exactly one of Data and Error is
// set.
type Envelope struct {
	Data   interface{} `json:"data,omitempty"`
	Error  *ErrorBody  `json:"error,omitempty"`
	Status int         `json:"status"`
}

// httpStatusFromDomainError maps domain errors to HTTP status codes.
func httpStatusFromDomainError(err error) int {
	var notFound *domain.NotFoundError
	var validation *domain.ValidationError
	var accessDenied *domain.AccessDeniedError
	var limit *domain.LimitError
	var timeout *domain.TimeoutError

	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &accessDenied):
		return http.StatusForbidden
	case errors.As(err, &limit):
		return http.StatusTooManyRequests
	case errors.As(err, &timeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, Envelope{Data: data, Status: status})
}

// writeError serializes a gateway error. Internal causes are logged here and
// never reach the wire; the caller sees only the stable code.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := httpStatusFromDomainError(err)
	code := domain.ErrorCode(err)

	message := err.Error()
	if code == domain.CodeInternal {
		var internal *domain.InternalError
		if errors.As(err, &internal) && internal.Cause != nil {
			logger.Error("internal error", "error", internal.Cause, "message", internal.Message)
		} else {
			logger.Error("internal error", "error", err)
		}
		message = "internal error"
	}

	if retryAfter := domain.RetryAfter(err); retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
	}
	writeJSON(w, status, Envelope{
		Error: &ErrorBody{
			Code:      code,
			Message:   message,
			Retryable: domain.Retryable(err),
		},
		Status: status,
	})
}
