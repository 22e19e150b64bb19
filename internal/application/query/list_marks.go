package query

import (
	"context"

	"github.com/sms-hub/sms-dashboard/internal/application/refresh"
	"github.com/sms-hub/sms-dashboard/internal/domain/performance"
	"github.com/sms-hub/sms-dashboard/internal/domain/ranking"
	"github.com/sms-hub/sms-dashboard/internal/domain/roster"
	"github.com/sms-hub/sms-dashboard/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST MARKS QUERY
// Per-student totals coloured by band.
// ══════════════════════════════════════════════════════════════════════════════

// ListMarksQuery orders the marks view by name or total.
type ListMarksQuery struct {
	Department string
	Sort       string
	Direction  string
}

// DefaultMarksSort puts the highest totals first.
var DefaultMarksSort = ranking.SortState{Key: ranking.KeyTotal, Direction: ranking.Desc}

// MarksRowDTO is one student's total. Total is nil when it could not be fetched.
type MarksRowDTO struct {
	StudentID  roster.StudentID `json:"student_id"`
	Name       string           `json:"name"`
	Department string           `json:"department"`
	Evicted    bool             `json:"evicted"`
	Total      *int             `json:"total"`
	Band       performance.Band `json:"band,omitempty"`
}

// MarksKeys are the sort keys of the marks view. Unknown totals sort below zero.
var MarksKeys = ranking.Keys[MarksRowDTO]{
	ranking.KeyName: func(r MarksRowDTO) ranking.Value { return ranking.Text(r.Name) },
	ranking.KeyTotal: func(r MarksRowDTO) ranking.Value {
		if r.Total == nil {
			return ranking.Number(-1)
		}
		return ranking.Number(float64(*r.Total))
	},
}

// ListMarksResult is the marks view.
type ListMarksResult struct {
	Rows     []MarksRowDTO     `json:"rows"`
	Sort     ranking.SortState `json:"sort"`
	Degraded bool              `json:"degraded,omitempty"`
}

// ListMarksHandler serves the marks view.
type ListMarksHandler struct {
	source SnapshotSource
}

// NewListMarksHandler creates the handler.
func NewListMarksHandler(source SnapshotSource) *ListMarksHandler {
	return &ListMarksHandler{source: source}
}

// Handle lists every student, evicted ones included, with their total.
func (h *ListMarksHandler) Handle(ctx context.Context, q ListMarksQuery) (*ListMarksResult, error) {
	state, err := ranking.ParseSortState(q.Sort, q.Direction, DefaultMarksSort)
	if err != nil {
		return nil, shared.WrapError("query", "ListMarks", shared.ErrValidation, "invalid sort", err)
	}
	if !MarksKeys.Supports(state.Key) {
		return nil, shared.WrapError("query", "ListMarks", shared.ErrValidation, "sort by name or total", ranking.ErrUnsupportedSortKey)
	}

	snap, err := loadSnapshot(ctx, h.source, "ListMarks")
	if err != nil {
		return nil, err
	}

	students := ranking.FilterByDepartment(snap.Students, q.Department, ranking.StudentDepartment)
	rows := make([]MarksRowDTO, len(students))
	for i, s := range students {
		dept, ok := s.Department()
		row := MarksRowDTO{
			StudentID:  s.ID,
			Name:       s.DisplayName(),
			Department: orNotAvailable(dept, ok),
			Evicted:    s.IsEvicted(),
		}
		if total, ok := snap.Totals[s.ID]; ok {
			row.Total = roster.Ptr(total)
			row.Band = performance.BandFor(total)
		}
		rows[i] = row
	}

	rows, err = ranking.SortBy(rows, state, MarksKeys)
	if err != nil {
		return nil, shared.WrapError("query", "ListMarks", shared.ErrValidation, "invalid sort", err)
	}

	return &ListMarksResult{
		Rows:     rows,
		Sort:     state,
		Degraded: snap.IsDegraded(refresh.SliceTotals),
	}, nil
}
