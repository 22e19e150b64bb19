package command

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sms-hub/sms-dashboard/internal/domain/editsession"
	"github.com/sms-hub/sms-dashboard/internal/domain/roster"
	"github.com/sms-hub/sms-dashboard/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMMIT SESSION COMMAND
// Sends the working marks as one bulk update, journals the change and
// republishes the dashboard.
// ══════════════════════════════════════════════════════════════════════════════

// CommitSessionCommand selects the session to commit.
type CommitSessionCommand struct {
	SessionID editsession.ID
}

// CommitSessionResult describes a successful commit.
type CommitSessionResult struct {
	SessionID  editsession.ID   `json:"session_id"`
	StudentID  roster.StudentID `json:"student_id"`
	Updated    int              `json:"updated"`
	Total      int              `json:"total"`
	Journaled  bool             `json:"journaled"`
	Generation uint64           `json:"generation"`
}

// CommitSessionConfig configures the handler.
type CommitSessionConfig struct {
	Logger *slog.Logger
	Now    func() time.Time
}

// CommitSessionHandler handles CommitSessionCommand.
type CommitSessionHandler struct {
	sessions  *editsession.Manager
	writer    roster.Writer
	refresher Refresher
	journal   editsession.Journal
	lock      EditLock
	logger    *slog.Logger
	now       func() time.Time
}

// NewCommitSessionHandler creates the handler. journal and lock may be nil.
func NewCommitSessionHandler(
	sessions *editsession.Manager,
	writer roster.Writer,
	refresher Refresher,
	journal editsession.Journal,
	lock EditLock,
	cfg CommitSessionConfig,
) *CommitSessionHandler {
	return &CommitSessionHandler{
		sessions:  sessions,
		writer:    writer,
		refresher: refresher,
		journal:   journal,
		lock:      lock,
		logger:    defaultLogger(cfg.Logger),
		now:       defaultClock(cfg.Now),
	}
}

// Handle commits the session. A blocked session makes no network call. The
// session is frozen while the write is in flight, so a concurrent commit or
// edit fails with a conflict. A failed write leaves the session open and dirty
// so the operator can retry.
func (h *CommitSessionHandler) Handle(ctx context.Context, cmd CommitSessionCommand) (*CommitSessionResult, error) {
	s, err := h.sessions.Get(cmd.SessionID)
	if err != nil {
		return nil, err
	}

	updates, err := s.PrepareCommit()
	if err != nil {
		return nil, err
	}

	entry := editsession.NewJournalEntry(uuid.NewString(), s, h.now().UTC())

	if err := h.writer.UpdateMarks(ctx, updates); err != nil {
		s.AbortCommit(h.sessions.Now())
		h.logger.Warn("marks commit failed, session kept open",
			slog.String("session_id", string(s.ID())),
			slog.String("error", err.Error()))
		return nil, shared.WrapError("command", "CommitSession", shared.ErrExternalService, "failed to save marks", err)
	}

	h.sessions.Close(s.ID())
	releaseLock(ctx, h.lock, h.logger, s)

	result := &CommitSessionResult{
		SessionID: s.ID(),
		StudentID: entry.StudentID,
		Updated:   len(updates),
		Total:     entry.Total,
	}

	if h.journal != nil {
		if err := h.journal.Append(ctx, entry); err != nil {
			h.logger.Error("journal append failed",
				slog.String("session_id", string(s.ID())),
				slog.String("error", err.Error()))
		} else {
			result.Journaled = true
		}
	}

	h.logger.Info("marks committed",
		slog.String("session_id", string(s.ID())),
		slog.Int64("student_id", int64(entry.StudentID)),
		slog.Int("updated", len(updates)),
		slog.Int("total", entry.Total))

	result.Generation = republish(ctx, h.refresher, h.logger)
	return result, nil
}
