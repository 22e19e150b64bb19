package command

import (
	"context"
	"log/slog"

	"github.com/sms-hub/sms-dashboard/internal/application/query"
	"github.com/sms-hub/sms-dashboard/internal/domain/editsession"
	"github.com/sms-hub/sms-dashboard/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EDIT FIELD COMMAND
// Applies operator input, or a blur, to one field of an edit session.
// ══════════════════════════════════════════════════════════════════════════════

// EditFieldCommand carries either Input or Blur.
type EditFieldCommand struct {
	SessionID editsession.ID
	Index     int

	// Input is the raw text typed by the operator.
	Input *string

	// Blur coerces an empty field to 0.
	Blur bool
}

// Validate requires exactly one action.
func (c EditFieldCommand) Validate() error {
	if c.SessionID == "" {
		return shared.NewDomainError("command", "EditField", shared.ErrInvalidInput, "session id is required")
	}
	if (c.Input == nil) == !c.Blur {
		return shared.NewDomainError("command", "EditField", shared.ErrInvalidInput, "send either input or blur")
	}
	return nil
}

// EditFieldResult is the session after the edit.
type EditFieldResult struct {
	Field   query.FieldDTO   `json:"field"`
	Session query.SessionDTO `json:"session"`
}

// EditFieldHandler handles EditFieldCommand.
type EditFieldHandler struct {
	sessions *editsession.Manager
	lock     EditLock
	logger   *slog.Logger
}

// NewEditFieldHandler creates the handler. lock may be nil.
func NewEditFieldHandler(sessions *editsession.Manager, lock EditLock, logger *slog.Logger) *EditFieldHandler {
	return &EditFieldHandler{sessions: sessions, lock: lock, logger: defaultLogger(logger)}
}

// Handle applies the edit. Invalid input is not an error: the field is flagged.
func (h *EditFieldHandler) Handle(ctx context.Context, cmd EditFieldCommand) (*EditFieldResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("command", "EditField", shared.ErrValidation, err.Error(), err)
	}

	s, err := h.sessions.Get(cmd.SessionID)
	if err != nil {
		return nil, err
	}

	now := h.sessions.Now()
	var field editsession.Field
	if cmd.Blur {
		field, err = s.Blur(cmd.Index, now)
	} else {
		field, err = s.Edit(cmd.Index, *cmd.Input, now)
	}
	if err != nil {
		return nil, err
	}

	if h.lock != nil {
		if err := h.lock.Extend(ctx, string(s.ID())); err != nil {
			h.logger.Warn("edit lock extend failed",
				slog.String("session_id", string(s.ID())),
				slog.String("error", err.Error()))
		}
	}

	// The session may have been closed since the edit; the field comes from
	// the edit itself.
	return &EditFieldResult{
		Field:   query.NewFieldDTO(cmd.Index, field),
		Session: query.NewSessionDTO(s),
	}, nil
}
