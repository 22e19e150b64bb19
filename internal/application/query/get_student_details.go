package query

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/sms-hub/sms-dashboard/internal/domain/performance"
	"github.com/sms-hub/sms-dashboard/internal/domain/roster"
	"github.com/sms-hub/sms-dashboard/internal/domain/shared"
	"github.com/sms-hub/sms-dashboard/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STUDENT DETAILS QUERY
// Loads one student, their attendance and their marks in parallel, straight from
// the records service so the page never shows a stale mark after an edit.
// ══════════════════════════════════════════════════════════════════════════════

// GetStudentDetailsQuery selects a student.
type GetStudentDetailsQuery struct {
	StudentID roster.StudentID
}

// Validate checks the id.
func (q GetStudentDetailsQuery) Validate() error {
	if !q.StudentID.IsValid() {
		return roster.ErrInvalidStudentID
	}
	return nil
}

// MarkDTO is one subject's mark. Marks is nil when ungraded.
type MarkDTO struct {
	SubjectID   roster.SubjectID `json:"subject_id"`
	SubjectName string           `json:"subject_name"`
	MarkID      *roster.MarkID   `json:"mark_id,omitempty"`
	Marks       *int             `json:"marks"`
}

// AttendanceDayDTO is one attendance record of the student.
type AttendanceDayDTO struct {
	ID      roster.AttendanceID `json:"id"`
	Date    timeutil.Date       `json:"date"`
	Present bool                `json:"present"`
}

// GetStudentDetailsResult is the student page.
type GetStudentDetailsResult struct {
	Student    StudentDTO         `json:"student"`
	CourseName string             `json:"course_name"`
	Aggregate  *AggregateDTO      `json:"aggregate"`
	Marks      []MarkDTO          `json:"marks"`
	Attendance []AttendanceDayDTO `json:"attendance"`

	// Degraded names the parts that could not be loaded.
	Degraded []string `json:"degraded,omitempty"`
}

// GetStudentDetailsHandler serves the student page.
type GetStudentDetailsHandler struct {
	reader roster.Reader
	logger *slog.Logger
}

// NewGetStudentDetailsHandler creates the handler.
func NewGetStudentDetailsHandler(reader roster.Reader, logger *slog.Logger) *GetStudentDetailsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GetStudentDetailsHandler{reader: reader, logger: logger}
}

// Handle fetches the three parts concurrently. A missing student fails the
// query. Missing attendance or marks degrade to empty.
func (h *GetStudentDetailsHandler) Handle(ctx context.Context, q GetStudentDetailsQuery) (*GetStudentDetailsResult, error) {
	if err := q.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetStudentDetails", shared.ErrValidation, err.Error(), err)
	}

	var (
		student    *roster.Student
		records    []roster.AttendanceRecord
		detail     *roster.MarksDetail
		studentErr error
		attErr     error
		marksErr   error
	)

	var g errgroup.Group
	g.Go(func() error {
		student, studentErr = h.reader.GetStudent(ctx, q.StudentID)
		return nil
	})
	g.Go(func() error {
		records, attErr = h.reader.StudentAttendance(ctx, q.StudentID)
		return nil
	})
	g.Go(func() error {
		detail, marksErr = h.reader.MarksDetail(ctx, q.StudentID)
		return nil
	})
	_ = g.Wait()

	if studentErr != nil {
		kind := shared.ErrExternalService
		if shared.IsNotFound(studentErr) {
			kind = shared.ErrNotFound
		}
		return nil, shared.WrapError("query", "GetStudentDetails", kind, "student unavailable", studentErr)
	}

	result := &GetStudentDetailsResult{
		Student:    toStudentDTO(*student),
		Marks:      []MarkDTO{},
		Attendance: []AttendanceDayDTO{},
	}

	if attErr != nil {
		h.degrade(result, "attendance", q.StudentID, attErr)
		records = nil
	}
	if marksErr != nil {
		h.degrade(result, "marks", q.StudentID, marksErr)
		detail = nil
	}

	dept, ok := student.Department()
	result.CourseName = orNotAvailable(dept, ok)
	if detail != nil {
		if detail.CourseName != "" {
			result.CourseName = detail.CourseName
		}
		for _, e := range detail.Entries {
			e = e.Clone()
			result.Marks = append(result.Marks, MarkDTO{
				SubjectID:   e.SubjectID,
				SubjectName: e.SubjectName,
				MarkID:      e.MarkID,
				Marks:       e.Marks,
			})
		}
	}
	for _, r := range records {
		result.Attendance = append(result.Attendance, AttendanceDayDTO{ID: r.ID, Date: r.Date, Present: r.Present})
	}

	agg := performance.Compute(student.ID, records, detail)
	if err := agg.Check(); err != nil {
		h.logger.Warn("inconsistent aggregate",
			slog.Int64("student_id", int64(student.ID)),
			slog.String("error", err.Error()))
	}
	result.Aggregate = toAggregateDTO(agg)

	return result, nil
}

func (h *GetStudentDetailsHandler) degrade(r *GetStudentDetailsResult, part string, id roster.StudentID, err error) {
	r.Degraded = append(r.Degraded, part)
	h.logger.Warn("student detail part unavailable",
		slog.String("part", part),
		slog.Int64("student_id", int64(id)),
		slog.String("error", err.Error()))
}
