package query

import (
	"context"
	"strings"

	"github.com/sms-hub/sms-dashboard/internal/application/refresh"
	"github.com/sms-hub/sms-dashboard/internal/domain/ranking"
	"github.com/sms-hub/sms-dashboard/internal/domain/roster"
	"github.com/sms-hub/sms-dashboard/internal/domain/shared"
	"github.com/sms-hub/sms-dashboard/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST ATTENDANCE QUERY
// ══════════════════════════════════════════════════════════════════════════════

// ListAttendanceQuery selects and orders attendance records.
type ListAttendanceQuery struct {
	// Date in YYYY-MM-DD. Empty means every day.
	Date       string
	Department string
	Sort       string
	Direction  string
}

// DefaultAttendanceSort orders records when no key is given.
var DefaultAttendanceSort = ranking.SortState{Key: ranking.KeyDate, Direction: ranking.Desc}

// AttendanceRowDTO is one attendance record.
type AttendanceRowDTO struct {
	ID          roster.AttendanceID `json:"id"`
	Date        timeutil.Date       `json:"date"`
	Present     bool                `json:"present"`
	StudentID   *roster.StudentID   `json:"student_id,omitempty"`
	StudentName string              `json:"student_name"`
	Department  string              `json:"department"`
}

// ListAttendanceResult is the filtered attendance list.
type ListAttendanceResult struct {
	Records []AttendanceRowDTO `json:"records"`
	Sort    ranking.SortState  `json:"sort"`
	Present int                `json:"present"`
	Absent  int                `json:"absent"`

	Degraded bool `json:"degraded,omitempty"`
}

// ListAttendanceHandler serves the attendance list.
type ListAttendanceHandler struct {
	source SnapshotSource
}

// NewListAttendanceHandler creates the handler.
func NewListAttendanceHandler(source SnapshotSource) *ListAttendanceHandler {
	return &ListAttendanceHandler{source: source}
}

// Handle filters by date and department, then sorts.
func (h *ListAttendanceHandler) Handle(ctx context.Context, q ListAttendanceQuery) (*ListAttendanceResult, error) {
	var day timeutil.Date
	if d := strings.TrimSpace(q.Date); d != "" {
		parsed, err := timeutil.ParseDate(d)
		if err != nil {
			return nil, shared.WrapError("query", "ListAttendance", shared.ErrValidation, "invalid date", err)
		}
		day = parsed
	}

	state, err := ranking.ParseSortState(q.Sort, q.Direction, DefaultAttendanceSort)
	if err != nil {
		return nil, shared.WrapError("query", "ListAttendance", shared.ErrValidation, "invalid sort", err)
	}

	snap, err := loadSnapshot(ctx, h.source, "ListAttendance")
	if err != nil {
		return nil, err
	}

	records := ranking.FilterByDate(snap.Attendance, day)
	records = ranking.FilterByDepartment(records, q.Department, ranking.RecordDepartment)
	records, err = ranking.SortBy(records, state, ranking.AttendanceKeys)
	if err != nil {
		return nil, shared.WrapError("query", "ListAttendance", shared.ErrValidation, "invalid sort", err)
	}

	result := &ListAttendanceResult{
		Records:  make([]AttendanceRowDTO, len(records)),
		Sort:     state,
		Degraded: snap.IsDegraded(refresh.SliceAttendance),
	}
	for i, r := range records {
		row := AttendanceRowDTO{ID: r.ID, Date: r.Date, Present: r.Present}
		if id, ok := r.StudentID(); ok {
			row.StudentID = roster.Ptr(id)
		}
		row.StudentName = orNotAvailable(r.StudentName(), r.Student != nil)
		dept, ok := r.Department()
		row.Department = orNotAvailable(dept, ok)
		result.Records[i] = row

		if r.Present {
			result.Present++
		} else {
			result.Absent++
		}
	}
	return result, nil
}
