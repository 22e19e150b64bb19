package query

import (
	"context"
	"time"

	"github.com/sms-hub/sms-dashboard/internal/domain/editsession"
	"github.com/sms-hub/sms-dashboard/internal/domain/roster"
	"github.com/sms-hub/sms-dashboard/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET SESSION QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetSessionQuery selects a session.
type GetSessionQuery struct {
	SessionID editsession.ID
}

// FieldDTO is one editable mark.
type FieldDTO struct {
	Index       int              `json:"index"`
	SubjectID   roster.SubjectID `json:"subject_id"`
	SubjectName string           `json:"subject_name"`
	MarkID      *roster.MarkID   `json:"mark_id,omitempty"`
	Marks       *int             `json:"marks"`
	Input       string           `json:"input"`
	Invalid     bool             `json:"invalid"`
	Empty       bool             `json:"empty"`
}

// SessionDTO is the working state of a session.
type SessionDTO struct {
	ID         editsession.ID    `json:"id"`
	Mode       editsession.Mode  `json:"mode"`
	State      editsession.State `json:"state"`
	Student    StudentDTO        `json:"student"`
	CourseName string            `json:"course_name"`
	Fields     []FieldDTO        `json:"fields"`
	Total      int               `json:"total"`
	CanCommit  bool              `json:"can_commit"`
	Blocking   []int             `json:"blocking,omitempty"`
	OpenedAt   time.Time         `json:"opened_at"`
	TouchedAt  time.Time         `json:"touched_at"`
}

// NewSessionDTO snapshots a session for presentation.
func NewSessionDTO(s *editsession.Session) SessionDTO {
	fields := s.Fields()
	dto := SessionDTO{
		ID:         s.ID(),
		Mode:       s.Mode(),
		State:      s.State(),
		Student:    toStudentDTO(s.Student()),
		CourseName: orNotAvailable(s.CourseName(), true),
		Fields:     make([]FieldDTO, len(fields)),
		Total:      s.Total(),
		Blocking:   s.BlockingFields(),
		OpenedAt:   s.OpenedAt(),
		TouchedAt:  s.TouchedAt(),
	}
	for i, f := range fields {
		dto.Fields[i] = NewFieldDTO(i, f)
	}
	dto.CanCommit = dto.Mode == editsession.ModeEdit &&
		dto.State != editsession.StateClosed &&
		dto.State != editsession.StateCommitting &&
		len(dto.Blocking) == 0
	return dto
}

// NewFieldDTO presents field index of a session.
func NewFieldDTO(index int, f editsession.Field) FieldDTO {
	e := f.Entry.Clone()
	return FieldDTO{
		Index:       index,
		SubjectID:   e.SubjectID,
		SubjectName: e.SubjectName,
		MarkID:      e.MarkID,
		Marks:       e.Marks,
		Input:       f.Input,
		Invalid:     f.Invalid,
		Empty:       f.Empty,
	}
}

// SessionStore is implemented by editsession.Manager.
type SessionStore interface {
	Get(id editsession.ID) (*editsession.Session, error)
}

// GetSessionHandler reads a session.
type GetSessionHandler struct {
	sessions SessionStore
}

// NewGetSessionHandler creates the handler.
func NewGetSessionHandler(sessions SessionStore) *GetSessionHandler {
	return &GetSessionHandler{sessions: sessions}
}

// Handle returns the session state.
func (h *GetSessionHandler) Handle(_ context.Context, q GetSessionQuery) (*SessionDTO, error) {
	if q.SessionID == "" {
		return nil, shared.NewDomainError("query", "GetSession", shared.ErrValidation, "session id is required")
	}
	s, err := h.sessions.Get(q.SessionID)
	if err != nil {
		return nil, err
	}
	dto := NewSessionDTO(s)
	return &dto, nil
}
