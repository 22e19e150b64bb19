package query

import (
	"context"

	"github.com/sms-hub/sms-dashboard/internal/domain/performance"
	"github.com/sms-hub/sms-dashboard/internal/domain/ranking"
	"github.com/sms-hub/sms-dashboard/internal/domain/roster"
	"github.com/sms-hub/sms-dashboard/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST STUDENTS QUERY
// Filtered and sorted roster with each student's aggregate.
// ══════════════════════════════════════════════════════════════════════════════

// ListStudentsQuery selects and orders the roster.
type ListStudentsQuery struct {
	// Department filters by exact course name. Empty means all.
	Department string

	// Sort is name, email or department. Empty sorts by name.
	Sort      string
	Direction string

	// HideEvicted drops evicted students. They are listed by default.
	HideEvicted bool
}

// DefaultStudentSort orders the roster when no key is given.
var DefaultStudentSort = ranking.SortState{Key: ranking.KeyName, Direction: ranking.Asc}

// StudentRowDTO is one row of the student list.
type StudentRowDTO struct {
	StudentDTO
	Aggregate *AggregateDTO `json:"aggregate,omitempty"`
}

// ListStudentsResult is the filtered roster.
type ListStudentsResult struct {
	Students []StudentRowDTO   `json:"students"`
	Sort     ranking.SortState `json:"sort"`
	Count    int               `json:"count"`
	Degraded []string          `json:"degraded,omitempty"`
	Filter   string            `json:"department,omitempty"`
}

// ListStudentsHandler serves the student list.
type ListStudentsHandler struct {
	source SnapshotSource
}

// NewListStudentsHandler creates the handler.
func NewListStudentsHandler(source SnapshotSource) *ListStudentsHandler {
	return &ListStudentsHandler{source: source}
}

// Handle filters, then sorts, the published roster.
func (h *ListStudentsHandler) Handle(ctx context.Context, q ListStudentsQuery) (*ListStudentsResult, error) {
	state, err := ranking.ParseSortState(q.Sort, q.Direction, DefaultStudentSort)
	if err != nil {
		return nil, shared.WrapError("query", "ListStudents", shared.ErrValidation, "invalid sort", err)
	}

	snap, err := loadSnapshot(ctx, h.source, "ListStudents")
	if err != nil {
		return nil, err
	}

	students := ranking.FilterByDepartment(snap.Students, q.Department, ranking.StudentDepartment)
	if q.HideEvicted {
		kept := students[:0:0]
		for _, s := range students {
			if !s.IsEvicted() {
				kept = append(kept, s)
			}
		}
		students = kept
	}

	sorted, err := ranking.SortBy(students, state, ranking.StudentKeys)
	if err != nil {
		return nil, shared.WrapError("query", "ListStudents", shared.ErrValidation, "invalid sort", err)
	}

	rows := make([]StudentRowDTO, len(sorted))
	for i, s := range sorted {
		rows[i] = studentRow(s, snap.Aggregates)
	}

	return &ListStudentsResult{
		Students: rows,
		Sort:     state,
		Count:    len(rows),
		Degraded: snap.Degraded,
		Filter:   q.Department,
	}, nil
}

func studentRow(s roster.Student, aggregates map[roster.StudentID]performance.Aggregate) StudentRowDTO {
	row := StudentRowDTO{StudentDTO: toStudentDTO(s)}
	if agg, ok := aggregates[s.ID]; ok {
		row.Aggregate = toAggregateDTO(agg)
	}
	return row
}
