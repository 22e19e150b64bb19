package http

import (
	"net/http"
	"strconv"

	"github.com/sms-hub/sms-dashboard/internal/application/command"
	"github.com/sms-hub/sms-dashboard/internal/application/query"
	"github.com/sms-hub/sms-dashboard/internal/domain/editsession"
	"github.com/sms-hub/sms-dashboard/internal/domain/roster"
)

// ══════════════════════════════════════════════════════════════════════════════
// EDIT SESSIONS
// ══════════════════════════════════════════════════════════════════════════════

type openSessionRequest struct {
	StudentID int64  `json:"student_id"`
	Mode      string `json:"mode"`
	Force     bool   `json:"force"`
}

// editFieldRequest carries either the typed text or a blur.
type editFieldRequest struct {
	Input *string `json:"input"`
	Blur  bool    `json:"blur"`
}

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	if s.deps.OpenSession == nil {
		writeNotConfigured(w, r)
		return
	}

	var req openSessionRequest
	if err := s.decodeJSON(w, r, &req, false); respondBadRequest(w, r, err) {
		return
	}

	result, err := s.deps.OpenSession.Handle(r.Context(), command.OpenSessionCommand{
		StudentID: roster.StudentID(req.StudentID),
		Mode:      editsession.Mode(req.Mode),
		Force:     req.Force,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, result)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetSession == nil {
		writeNotConfigured(w, r)
		return
	}

	result, err := s.deps.GetSession.Handle(r.Context(), query.GetSessionQuery{
		SessionID: editsession.ID(r.PathValue("id")),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

func (s *Server) handleEditField(w http.ResponseWriter, r *http.Request) {
	if s.deps.EditField == nil {
		writeNotConfigured(w, r)
		return
	}

	raw := r.PathValue("index")
	index, err := strconv.Atoi(raw)
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "bad_request", "index must be an integer, got "+strconv.Quote(raw))
		return
	}

	var req editFieldRequest
	if err := s.decodeJSON(w, r, &req, false); respondBadRequest(w, r, err) {
		return
	}

	result, err := s.deps.EditField.Handle(r.Context(), command.EditFieldCommand{
		SessionID: editsession.ID(r.PathValue("id")),
		Index:     index,
		Input:     req.Input,
		Blur:      req.Blur,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

func (s *Server) handleCommitSession(w http.ResponseWriter, r *http.Request) {
	if s.deps.CommitSession == nil {
		writeNotConfigured(w, r)
		return
	}

	result, err := s.deps.CommitSession.Handle(r.Context(), command.CommitSessionCommand{
		SessionID: editsession.ID(r.PathValue("id")),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

func (s *Server) handleCancelSession(w http.ResponseWriter, r *http.Request) {
	if s.deps.CancelSession == nil {
		writeNotConfigured(w, r)
		return
	}

	result, err := s.deps.CancelSession.Handle(r.Context(), command.CancelSessionCommand{
		SessionID: editsession.ID(r.PathValue("id")),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}
