package command

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/sms-hub/sms-dashboard/internal/application/query"
	"github.com/sms-hub/sms-dashboard/internal/domain/editsession"
	"github.com/sms-hub/sms-dashboard/internal/domain/roster"
	"github.com/sms-hub/sms-dashboard/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// OPEN SESSION COMMAND
// Loads a student's marks into an edit or view session.
// ══════════════════════════════════════════════════════════════════════════════

// OpenSessionCommand selects the student and mode.
type OpenSessionCommand struct {
	StudentID roster.StudentID
	Mode      editsession.Mode

	// Force discards an active edit session with unsaved input.
	Force bool
}

// Validate checks the command.
func (c *OpenSessionCommand) Validate() error {
	if !c.StudentID.IsValid() {
		return roster.ErrInvalidStudentID
	}
	if c.Mode == "" {
		c.Mode = editsession.ModeEdit
	}
	if !c.Mode.IsValid() {
		return shared.NewDomainError("command", "OpenSession", shared.ErrInvalidInput, "mode must be edit or view")
	}
	return nil
}

// OpenSessionResult is the new session.
type OpenSessionResult struct {
	Session query.SessionDTO `json:"session"`

	// Replaced is the id of the edit session this one took over from.
	Replaced *editsession.ID `json:"replaced,omitempty"`
}

// OpenSessionHandler handles OpenSessionCommand.
type OpenSessionHandler struct {
	reader   roster.Reader
	sessions *editsession.Manager
	lock     EditLock
	logger   *slog.Logger
}

// NewOpenSessionHandler creates the handler. lock may be nil.
func NewOpenSessionHandler(reader roster.Reader, sessions *editsession.Manager, lock EditLock, logger *slog.Logger) *OpenSessionHandler {
	return &OpenSessionHandler{reader: reader, sessions: sessions, lock: lock, logger: defaultLogger(logger)}
}

// Handle fetches the student and their marks in parallel, then opens the session.
func (h *OpenSessionHandler) Handle(ctx context.Context, cmd OpenSessionCommand) (*OpenSessionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("command", "OpenSession", shared.ErrValidation, err.Error(), err)
	}

	var (
		student *roster.Student
		detail  *roster.MarksDetail
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		student, err = h.reader.GetStudent(gctx, cmd.StudentID)
		return err
	})
	g.Go(func() error {
		var err error
		detail, err = h.reader.MarksDetail(gctx, cmd.StudentID)
		return err
	})
	if err := g.Wait(); err != nil {
		kind := shared.ErrExternalService
		if shared.IsNotFound(err) {
			kind = shared.ErrNotFound
		}
		return nil, shared.WrapError("command", "OpenSession", kind, "failed to load student marks", err)
	}

	if cmd.Mode == editsession.ModeView {
		s, err := h.sessions.OpenView(*student, *detail)
		if err != nil {
			return nil, err
		}
		return &OpenSessionResult{Session: query.NewSessionDTO(s)}, nil
	}

	s, replaced, err := h.sessions.OpenEdit(*student, *detail, cmd.Force)
	if err != nil {
		return nil, err
	}

	result := &OpenSessionResult{}
	if replaced != nil {
		id := replaced.ID()
		result.Replaced = &id
		releaseLock(ctx, h.lock, h.logger, replaced)
		h.logger.Info("edit session replaced",
			slog.String("session_id", string(id)),
			slog.Bool("forced", cmd.Force))
	}

	if h.lock != nil {
		ok, err := h.lock.Acquire(ctx, string(s.ID()))
		if err != nil || !ok {
			h.sessions.Close(s.ID())
			if err != nil {
				return nil, shared.WrapError("command", "OpenSession", shared.ErrServiceUnavailable, "edit lock unavailable", err)
			}
			return nil, ErrLockHeldElsewhere
		}
	}

	h.logger.Info("edit session opened",
		slog.String("session_id", string(s.ID())),
		slog.Int64("student_id", int64(cmd.StudentID)))

	result.Session = query.NewSessionDTO(s)
	return result, nil
}
