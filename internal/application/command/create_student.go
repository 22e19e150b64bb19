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
// CREATE STUDENT COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// CreateStudentCommand is the student form. CourseID is optional.
type CreateStudentCommand struct {
	Name     string `json:"name" validate:"notblank,max=120"`
	Email    string `json:"email" validate:"required,email,max=254"`
	CourseID *int64 `json:"course_id" validate:"omitempty,gt=0"`
}

// CreateStudentResult is the created student.
type CreateStudentResult struct {
	StudentID  roster.StudentID `json:"student_id"`
	Name       string           `json:"name"`
	Email      string           `json:"email"`
	Department string           `json:"department"`
	Generation uint64           `json:"generation"`
}

// CreateStudentHandler handles CreateStudentCommand.
type CreateStudentHandler struct {
	reader    roster.Reader
	writer    roster.Writer
	refresher Refresher
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewCreateStudentHandler creates the handler.
func NewCreateStudentHandler(reader roster.Reader, writer roster.Writer, refresher Refresher, logger *slog.Logger) *CreateStudentHandler {
	return &CreateStudentHandler{
		reader:    reader,
		writer:    writer,
		refresher: refresher,
		validate:  newValidator(),
		logger:    defaultLogger(logger),
	}
}

// Handle validates the form, checks the course exists and creates the student.
func (h *CreateStudentHandler) Handle(ctx context.Context, cmd CreateStudentCommand) (*CreateStudentResult, error) {
	cmd.Name = strings.TrimSpace(cmd.Name)
	cmd.Email = strings.TrimSpace(cmd.Email)
	if err := h.validate.Struct(cmd); err != nil {
		return nil, validationError("CreateStudent", err)
	}
	if strings.Contains(cmd.Name, roster.EvictionMarker) {
		return nil, shared.NewDomainError("command", "CreateStudent", shared.ErrValidation,
			"Name must not contain "+roster.EvictionMarker)
	}

	courseID, err := checkCourse(ctx, h.reader, "CreateStudent", cmd.CourseID)
	if err != nil {
		return nil, err
	}
	draft := roster.StudentDraft{Name: cmd.Name, Email: cmd.Email, CourseID: courseID, Lifecycle: roster.LifecycleActive}

	student, err := h.writer.CreateStudent(ctx, draft)
	if err != nil {
		return nil, shared.WrapError("command", "CreateStudent", shared.ErrExternalService, "failed to create student", err)
	}

	h.logger.Info("student created", slog.Int64("student_id", int64(student.ID)))

	dept, ok := student.Department()
	if !ok {
		dept = query.NotAvailable
	}
	return &CreateStudentResult{
		StudentID:  student.ID,
		Name:       student.DisplayName(),
		Email:      student.Email,
		Department: dept,
		Generation: republish(ctx, h.refresher, h.logger, refresh.ViewStudents, refresh.ViewMarks),
	}, nil
}

// checkCourse confirms an optional course id exists in the records service.
func checkCourse(ctx context.Context, reader roster.Reader, op string, courseID *int64) (*roster.CourseID, error) {
	if courseID == nil {
		return nil, nil
	}
	id := roster.CourseID(*courseID)
	if _, err := reader.GetCourse(ctx, id); err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.WrapError("command", op, shared.ErrValidation, "course does not exist", err)
		}
		return nil, shared.WrapError("command", op, shared.ErrExternalService, "failed to check course", err)
	}
	return &id, nil
}
