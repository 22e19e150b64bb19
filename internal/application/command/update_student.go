package command

import (
	"context"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sms-hub/sms-dashboard/internal/application/query"
	"github.com/sms-hub/sms-dashboard/internal/application/refresh"
	"github.com/sms-hub/sms-dashboard/internal/domain/roster"
	"github.com/sms-hub/sms-dashboard/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE STUDENT COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// UpdateStudentCommand is the edit form. A nil CourseID clears the course.
type UpdateStudentCommand struct {
	StudentID roster.StudentID `json:"-"`
	Name      string           `json:"name" validate:"notblank,max=120"`
	Email     string           `json:"email" validate:"required,email,max=254"`
	CourseID  *int64           `json:"course_id" validate:"omitempty,gt=0"`
}

// UpdateStudentResult is the stored student.
type UpdateStudentResult struct {
	StudentID  roster.StudentID `json:"student_id"`
	Name       string           `json:"name"`
	Email      string           `json:"email"`
	Department string           `json:"department"`
	Generation uint64           `json:"generation"`
}

// UpdateStudentHandler handles UpdateStudentCommand.
type UpdateStudentHandler struct {
	reader    roster.Reader
	writer    roster.Writer
	refresher Refresher
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewUpdateStudentHandler creates the handler.
func NewUpdateStudentHandler(reader roster.Reader, writer roster.Writer, refresher Refresher, logger *slog.Logger) *UpdateStudentHandler {
	return &UpdateStudentHandler{
		reader:    reader,
		writer:    writer,
		refresher: refresher,
		validate:  newValidator(),
		logger:    defaultLogger(logger),
	}
}

// Handle validates the form and resends the student. Evicted students are
// read-only, and the stored lifecycle is carried into the draft.
func (h *UpdateStudentHandler) Handle(ctx context.Context, cmd UpdateStudentCommand) (*UpdateStudentResult, error) {
	if !cmd.StudentID.IsValid() {
		return nil, shared.WrapError("command", "UpdateStudent", shared.ErrValidation, "invalid student id", roster.ErrInvalidStudentID)
	}
	cmd.Name = strings.TrimSpace(cmd.Name)
	cmd.Email = strings.TrimSpace(cmd.Email)
	if err := h.validate.Struct(cmd); err != nil {
		return nil, validationError("UpdateStudent", err)
	}
	if strings.Contains(cmd.Name, roster.EvictionMarker) {
		return nil, shared.NewDomainError("command", "UpdateStudent", shared.ErrValidation,
			"Name must not contain "+roster.EvictionMarker)
	}

	current, err := h.reader.GetStudent(ctx, cmd.StudentID)
	if err != nil {
		kind := shared.ErrExternalService
		if shared.IsNotFound(err) {
			kind = shared.ErrNotFound
		}
		return nil, shared.WrapError("command", "UpdateStudent", kind, "failed to load student", err)
	}
	if current.IsEvicted() {
		return nil, shared.WrapError("command", "UpdateStudent", shared.ErrInvalidState,
			"cannot edit an evicted student", roster.ErrEvictedReadOnly)
	}

	courseID, err := checkCourse(ctx, h.reader, "UpdateStudent", cmd.CourseID)
	if err != nil {
		return nil, err
	}
	draft := roster.StudentDraft{Name: cmd.Name, Email: cmd.Email, CourseID: courseID, Lifecycle: current.Lifecycle}

	student, err := h.writer.UpdateStudent(ctx, cmd.StudentID, draft)
	if err != nil {
		kind := shared.ErrExternalService
		if shared.IsNotFound(err) {
			kind = shared.ErrNotFound
		}
		return nil, shared.WrapError("command", "UpdateStudent", kind, "failed to update student", err)
	}

	h.logger.Info("student updated", slog.Int64("student_id", int64(student.ID)))

	dept, ok := student.Department()
	if !ok {
		dept = query.NotAvailable
	}
	return &UpdateStudentResult{
		StudentID:  student.ID,
		Name:       student.DisplayName(),
		Email:      student.Email,
		Department: dept,
		Generation: republish(ctx, h.refresher, h.logger, refresh.ViewStudents, refresh.ViewAttendance, refresh.ViewMarks),
	}, nil
}
