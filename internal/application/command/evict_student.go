package command

import (
	"context"
	"log/slog"

	"github.com/sms-hub/sms-dashboard/internal/application/refresh"
	"github.com/sms-hub/sms-dashboard/internal/domain/editsession"
	"github.com/sms-hub/sms-dashboard/internal/domain/roster"
	"github.com/sms-hub/sms-dashboard/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVICT STUDENT COMMAND
// Flags a student as evicted in the records service. Evicted students drop out
// of every leader list and can no longer be edited.
// ══════════════════════════════════════════════════════════════════════════════

// EvictStudentCommand selects the student.
type EvictStudentCommand struct {
	StudentID roster.StudentID
}

// EvictStudentResult is the updated student.
type EvictStudentResult struct {
	StudentID roster.StudentID `json:"student_id"`
	Name      string           `json:"name"`
	Evicted   bool             `json:"evicted"`

	// ClosedSession is set when an open edit session of the student was closed.
	ClosedSession *editsession.ID `json:"closed_session,omitempty"`

	Generation uint64 `json:"generation"`
}

// EvictStudentHandler handles EvictStudentCommand.
type EvictStudentHandler struct {
	reader    roster.Reader
	writer    roster.Writer
	sessions  *editsession.Manager
	lock      EditLock
	refresher Refresher
	logger    *slog.Logger
}

// NewEvictStudentHandler creates the handler. lock may be nil.
func NewEvictStudentHandler(
	reader roster.Reader,
	writer roster.Writer,
	sessions *editsession.Manager,
	lock EditLock,
	refresher Refresher,
	logger *slog.Logger,
) *EvictStudentHandler {
	return &EvictStudentHandler{
		reader:    reader,
		writer:    writer,
		sessions:  sessions,
		lock:      lock,
		refresher: refresher,
		logger:    defaultLogger(logger),
	}
}

// Handle reads the student fresh, resends it with the eviction flag, and
// refreshes students and marks.
func (h *EvictStudentHandler) Handle(ctx context.Context, cmd EvictStudentCommand) (*EvictStudentResult, error) {
	if !cmd.StudentID.IsValid() {
		return nil, shared.WrapError("command", "EvictStudent", shared.ErrValidation, "invalid student id", roster.ErrInvalidStudentID)
	}

	student, err := h.reader.GetStudent(ctx, cmd.StudentID)
	if err != nil {
		kind := shared.ErrExternalService
		if shared.IsNotFound(err) {
			kind = shared.ErrNotFound
		}
		return nil, shared.WrapError("command", "EvictStudent", kind, "failed to load student", err)
	}

	draft, err := student.Evict()
	if err != nil {
		return nil, err
	}

	updated, err := h.writer.UpdateStudent(ctx, cmd.StudentID, draft)
	if err != nil {
		return nil, shared.WrapError("command", "EvictStudent", shared.ErrExternalService, "failed to update student", err)
	}

	result := &EvictStudentResult{
		StudentID: updated.ID,
		Name:      updated.DisplayName(),
		Evicted:   updated.IsEvicted(),
	}

	if h.sessions != nil {
		if active := h.sessions.Active(); active != nil && active.Student().ID == cmd.StudentID {
			h.sessions.Close(active.ID())
			releaseLock(ctx, h.lock, h.logger, active)
			id := active.ID()
			result.ClosedSession = &id
		}
	}

	h.logger.Info("student evicted", slog.Int64("student_id", int64(cmd.StudentID)))

	result.Generation = republish(ctx, h.refresher, h.logger, refresh.ViewStudents, refresh.ViewMarks)
	return result, nil
}
