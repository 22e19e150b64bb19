package http

import (
	"net/http"

	"github.com/sms-hub/sms-dashboard/internal/application/command"
	"github.com/sms-hub/sms-dashboard/internal/application/query"
)

// ══════════════════════════════════════════════════════════════════════════════
// DASHBOARD
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleGetDashboard(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetDashboard == nil {
		writeNotConfigured(w, r)
		return
	}

	result, err := s.deps.GetDashboard.Handle(r.Context(), query.GetDashboardQuery{})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// refreshRequest is the optional body of a refresh. No body refreshes all views.
type refreshRequest struct {
	Views []string `json:"views"`
}

func (s *Server) handleRefreshDashboard(w http.ResponseWriter, r *http.Request) {
	if s.deps.RefreshDashboard == nil {
		writeNotConfigured(w, r)
		return
	}

	var req refreshRequest
	if err := s.decodeJSON(w, r, &req, true); respondBadRequest(w, r, err) {
		return
	}

	result, err := s.deps.RefreshDashboard.Handle(r.Context(), command.RefreshDashboardCommand{Views: req.Views})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}
