package command

import (
	"context"
	"log/slog"

	"github.com/sms-hub/sms-dashboard/internal/domain/editsession"
)

// ══════════════════════════════════════════════════════════════════════════════
// CANCEL SESSION COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// CancelSessionCommand discards a session's working copy.
type CancelSessionCommand struct {
	SessionID editsession.ID
}

// CancelSessionResult reports whether unsaved input was thrown away.
type CancelSessionResult struct {
	SessionID editsession.ID `json:"session_id"`
	Discarded bool           `json:"discarded"`
}

// CancelSessionHandler handles CancelSessionCommand and the periodic sweep.
type CancelSessionHandler struct {
	sessions *editsession.Manager
	lock     EditLock
	logger   *slog.Logger
}

// NewCancelSessionHandler creates the handler. lock may be nil.
func NewCancelSessionHandler(sessions *editsession.Manager, lock EditLock, logger *slog.Logger) *CancelSessionHandler {
	return &CancelSessionHandler{sessions: sessions, lock: lock, logger: defaultLogger(logger)}
}

// Handle closes the session. It never touches the records service. A session
// whose commit is in flight cannot be cancelled.
func (h *CancelSessionHandler) Handle(ctx context.Context, cmd CancelSessionCommand) (*CancelSessionResult, error) {
	s, err := h.sessions.Get(cmd.SessionID)
	if err != nil {
		return nil, err
	}
	if s.State() == editsession.StateCommitting {
		return nil, editsession.ErrCommitting
	}
	dirty := s.IsDirty()

	h.sessions.Close(s.ID())
	releaseLock(ctx, h.lock, h.logger, s)

	h.logger.Info("session cancelled",
		slog.String("session_id", string(s.ID())),
		slog.Bool("discarded", dirty))

	return &CancelSessionResult{SessionID: s.ID(), Discarded: dirty}, nil
}

// Sweep closes idle sessions and frees their locks. It returns how many expired.
func (h *CancelSessionHandler) Sweep(ctx context.Context) int {
	expired := h.sessions.Sweep()
	for _, s := range expired {
		releaseLock(ctx, h.lock, h.logger, s)
	}
	if len(expired) > 0 {
		h.logger.Info("idle sessions expired", slog.Int("count", len(expired)))
	}
	return len(expired)
}
