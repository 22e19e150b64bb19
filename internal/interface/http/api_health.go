package http

import (
	"net/http"
	"time"

	"github.com/sms-hub/sms-dashboard/internal/interface/http/handlers"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth is the liveness probe. It never touches dependencies.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":  "ok",
		"uptime":  s.Uptime().Round(time.Second).String(),
		"version": s.config.Version,
	})
}

// handleReady runs the registered health checks. Optional dependencies
// only degrade the answer.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, r, http.StatusOK, handlers.HealthStatus{
			Ready:     true,
			Message:   "No health checks registered",
			Timestamp: time.Now().UTC(),
			Version:   s.config.Version,
		})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())
	status.Uptime = s.Uptime().Round(time.Second).String()

	code := http.StatusOK
	if !status.Ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, r, code, status)
}

// handleRoot lists the endpoints.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"name":    "sms-dashboard",
		"version": s.config.Version,
		"endpoints": []string{
			"GET /health",
			"GET /ready",
			"GET /api/v1/dashboard",
			"POST /api/v1/dashboard/refresh",
			"GET /api/v1/students",
			"POST /api/v1/students",
			"GET /api/v1/students/{id}",
			"PUT /api/v1/students/{id}",
			"POST /api/v1/students/{id}/evict",
			"GET /api/v1/students/{id}/journal",
			"GET /api/v1/attendance",
			"PUT /api/v1/attendance/{id}",
			"GET /api/v1/marks",
			"GET /api/v1/courses",
			"POST /api/v1/courses",
			"POST /api/v1/sessions",
			"GET /api/v1/sessions/{id}",
			"PATCH /api/v1/sessions/{id}/fields/{index}",
			"POST /api/v1/sessions/{id}/commit",
			"DELETE /api/v1/sessions/{id}",
			"GET /api/v1/jobs/{name}",
			"POST /api/v1/jobs/{name}/run",
		},
	})
}
