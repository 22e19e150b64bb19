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
// CREATE COURSE COMMAND
// Course intake: a name and exactly three custom subjects. The records service
// adds English and Tamil in front of them.
// ══════════════════════════════════════════════════════════════════════════════

// CreateCourseCommand is the intake form.
type CreateCourseCommand struct {
	Name     string   `json:"name" validate:"notblank,max=100"`
	Subjects []string `json:"subjects" validate:"len=3,unique,dive,notblank,max=100"`
}

// normalize trims every field in place.
func (c *CreateCourseCommand) normalize() {
	c.Name = strings.TrimSpace(c.Name)
	for i, s := range c.Subjects {
		c.Subjects[i] = strings.TrimSpace(s)
	}
}

// CreateCourseResult is the created course.
type CreateCourseResult struct {
	Course     query.CourseDTO `json:"course"`
	Generation uint64          `json:"generation"`
}

// CreateCourseHandler handles CreateCourseCommand.
type CreateCourseHandler struct {
	writer    roster.Writer
	refresher Refresher
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewCreateCourseHandler creates the handler.
func NewCreateCourseHandler(writer roster.Writer, refresher Refresher, logger *slog.Logger) *CreateCourseHandler {
	return &CreateCourseHandler{writer: writer, refresher: refresher, validate: newValidator(), logger: defaultLogger(logger)}
}

// Handle validates the intake and creates the course.
func (h *CreateCourseHandler) Handle(ctx context.Context, cmd CreateCourseCommand) (*CreateCourseResult, error) {
	cmd.Subjects = append([]string(nil), cmd.Subjects...)
	cmd.normalize()
	if err := h.validate.Struct(cmd); err != nil {
		return nil, validationError("CreateCourse", err)
	}
	for _, s := range cmd.Subjects {
		for _, d := range roster.DefaultSubjects {
			if strings.EqualFold(s, d) {
				return nil, shared.NewDomainError("command", "CreateCourse", shared.ErrValidation,
					s+" is added to every course automatically")
			}
		}
	}

	course, err := h.writer.CreateCourse(ctx, cmd.Name, cmd.Subjects)
	if err != nil {
		return nil, shared.WrapError("command", "CreateCourse", shared.ErrExternalService, "failed to create course", err)
	}

	h.logger.Info("course created",
		slog.Int64("course_id", int64(course.ID)),
		slog.String("name", course.Name))

	return &CreateCourseResult{
		Course:     query.ToCourseDTO(*course),
		Generation: republish(ctx, h.refresher, h.logger, refresh.ViewStudents),
	}, nil
}
