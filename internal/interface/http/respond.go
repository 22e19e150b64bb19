package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sms-hub/sms-dashboard/internal/domain/shared"
	"github.com/sms-hub/sms-dashboard/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE ENVELOPE
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse represents a standard JSON response.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      any           `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponseMeta contains response metadata.
type ResponseMeta struct {
	Timestamp  time.Time `json:"timestamp"`
	Version    string    `json:"version,omitempty"`
	TotalCount int       `json:"total_count,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeJSONWithMeta(w, r, status, data, nil)
}

func writeJSONWithMeta(w http.ResponseWriter, r *http.Request, status int, data any, meta *ResponseMeta) {
	if meta == nil {
		meta = &ResponseMeta{}
	}
	meta.Timestamp = time.Now().UTC()
	meta.Version = "v1"

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(JSONResponse{
		Success:   status >= 200 && status < 300,
		Data:      data,
		Meta:      meta,
		RequestID: getRequestID(r.Context()),
	})
}

func writeJSONError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(JSONResponse{
		Success:   false,
		Error:     &APIError{Code: code, Message: message},
		Meta:      &ResponseMeta{Timestamp: time.Now().UTC()},
		RequestID: getRequestID(r.Context()),
	})
}

func writeNotConfigured(w http.ResponseWriter, r *http.Request) {
	writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "This endpoint is not configured")
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

type errorStatus struct {
	status int
	code   string
}

// kindStatuses is checked in order against the outermost DomainError kind.
var kindStatuses = []struct {
	kind error
	errorStatus
}{
	{shared.ErrNotFound, errorStatus{http.StatusNotFound, "not_found"}},
	{shared.ErrExpired, errorStatus{http.StatusGone, "expired"}},
	{shared.ErrConflict, errorStatus{http.StatusConflict, "conflict"}},
	{shared.ErrAlreadyExists, errorStatus{http.StatusConflict, "conflict"}},
	{shared.ErrInvalidState, errorStatus{http.StatusConflict, "invalid_state"}},
	{shared.ErrStateTransition, errorStatus{http.StatusConflict, "invalid_state"}},
	{shared.ErrValidation, errorStatus{http.StatusUnprocessableEntity, "validation_failed"}},
	{shared.ErrInvalidInput, errorStatus{http.StatusUnprocessableEntity, "validation_failed"}},
	{shared.ErrInvalidID, errorStatus{http.StatusBadRequest, "invalid_id"}},
	{shared.ErrEmptyValue, errorStatus{http.StatusUnprocessableEntity, "validation_failed"}},
	{shared.ErrValueOutOfRange, errorStatus{http.StatusUnprocessableEntity, "validation_failed"}},
	{shared.ErrUnauthorized, errorStatus{http.StatusUnauthorized, "unauthorized"}},
	{shared.ErrRateLimited, errorStatus{http.StatusServiceUnavailable, "upstream_rate_limited"}},
	{shared.ErrServiceUnavailable, errorStatus{http.StatusServiceUnavailable, "service_unavailable"}},
	{shared.ErrTimeout, errorStatus{http.StatusGatewayTimeout, "timeout"}},
	{shared.ErrExternalService, errorStatus{http.StatusBadGateway, "upstream_error"}},
}

// statusFor maps an application error to a status code and error code.
// The outermost DomainError decides, so a records-service 404 wrapped as an
// external failure stays a 502.
func statusFor(err error) errorStatus {
	var de *shared.DomainError
	if errors.As(err, &de) && de.Kind != nil {
		for _, ks := range kindStatuses {
			if errors.Is(de.Kind, ks.kind) {
				return ks.errorStatus
			}
		}
	}
	for _, ks := range kindStatuses {
		if errors.Is(err, ks.kind) {
			return ks.errorStatus
		}
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return errorStatus{http.StatusGatewayTimeout, "timeout"}
	case errors.Is(err, context.Canceled):
		return errorStatus{499, "client_closed_request"}
	}
	return errorStatus{http.StatusInternalServerError, "internal_server_error"}
}

// publicMessage is the text shown to the client. Unclassified 5xx errors
// are not echoed.
func publicMessage(err error, status int) string {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	if status >= 500 {
		return "An unexpected error occurred"
	}
	return err.Error()
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	es := statusFor(err)
	if es.status >= 500 {
		logger.FromContext(r.Context()).Error("request failed",
			logger.Route(r.Method, r.URL.Path),
			logger.StatusCode(es.status),
			logger.Err(err),
		)
	}
	writeJSONError(w, r, es.status, es.code, publicMessage(err, es.status))
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST PARSING
// ══════════════════════════════════════════════════════════════════════════════

// errBadRequest marks input the server could not parse.
type errBadRequest struct{ msg string }

func (e *errBadRequest) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &errBadRequest{msg: fmt.Sprintf(format, args...)}
}

// decodeJSON reads one JSON object into dst. An empty body leaves dst
// untouched when allowEmpty is set.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF) && allowEmpty:
			return nil
		case errors.Is(err, io.EOF):
			return badRequest("request body is required")
		case errors.As(err, &maxErr):
			return badRequest("request body exceeds %d bytes", maxErr.Limit)
		default:
			return badRequest("invalid JSON body: %s", err.Error())
		}
	}
	if dec.More() {
		return badRequest("request body must contain a single JSON object")
	}
	return nil
}

func pathInt64(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, badRequest("%s must be a positive integer, got %q", name, raw)
	}
	return v, nil
}

// respondBadRequest writes 400 when err came from parsing. It reports
// whether it wrote a response.
func respondBadRequest(w http.ResponseWriter, r *http.Request, err error) bool {
	var br *errBadRequest
	if errors.As(err, &br) {
		writeJSONError(w, r, http.StatusBadRequest, "bad_request", br.msg)
		return true
	}
	return false
}

func queryBool(r *http.Request, key string) (bool, bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return false, false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, true, badRequest("%s must be true or false, got %q", key, raw)
	}
	return v, true, nil
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest("%s must be an integer, got %q", key, raw)
	}
	return v, nil
}
