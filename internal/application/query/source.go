// Package query contains read operations following CQRS pattern.
// Queries never modify state: they read the published snapshot, or the records
// service for single-student detail, and return presentation DTOs.
package query

import (
	"context"
	"errors"

	"github.com/sms-hub/sms-dashboard/internal/application/refresh"
	"github.com/sms-hub/sms-dashboard/internal/domain/performance"
	"github.com/sms-hub/sms-dashboard/internal/domain/ranking"
	"github.com/sms-hub/sms-dashboard/internal/domain/roster"
	"github.com/sms-hub/sms-dashboard/internal/domain/shared"
)

// NotAvailable is shown in place of a missing course or student reference.
const NotAvailable = "N/A"

// SnapshotSource is implemented by refresh.Service.
type SnapshotSource interface {
	Snapshot() *refresh.Snapshot
	Board(ctx context.Context) (*ranking.Board, error)
	Refresh(ctx context.Context, views ...refresh.View) (*refresh.Snapshot, error)
}

// loadSnapshot returns the published snapshot, refreshing once when nothing
// has been published yet.
func loadSnapshot(ctx context.Context, src SnapshotSource, op string) (*refresh.Snapshot, error) {
	if snap := src.Snapshot(); snap != nil {
		return snap, nil
	}
	snap, err := src.Refresh(ctx)
	if err != nil && !errors.Is(err, refresh.ErrStaleRefresh) {
		return nil, shared.WrapError("query", op, shared.ErrServiceUnavailable, "dashboard data unavailable", err)
	}
	if snap == nil {
		snap = src.Snapshot()
	}
	if snap == nil {
		return nil, shared.NewDomainError("query", op, shared.ErrServiceUnavailable, "dashboard data unavailable")
	}
	return snap, nil
}

func orNotAvailable(s string, ok bool) string {
	if !ok || s == "" {
		return NotAvailable
	}
	return s
}

// ══════════════════════════════════════════════════════════════════════════════
// SHARED DTOs
// ══════════════════════════════════════════════════════════════════════════════

// AggregateDTO is an aggregate with percentages rounded for display.
type AggregateDTO struct {
	AttendancePercentage float64          `json:"attendance_percentage"`
	TotalMarks           int              `json:"total_marks"`
	PerformanceScore     float64          `json:"performance_score"`
	Band                 performance.Band `json:"band"`
}

func toAggregateDTO(a performance.Aggregate) *AggregateDTO {
	return &AggregateDTO{
		AttendancePercentage: performance.RoundPercent(a.AttendancePercentage, 2),
		TotalMarks:           a.TotalMarks,
		PerformanceScore:     performance.RoundPercent(a.PerformanceScore, 2),
		Band:                 a.Band,
	}
}

// StudentDTO is a roster row.
type StudentDTO struct {
	ID         roster.StudentID `json:"id"`
	Name       string           `json:"name"`
	Email      string           `json:"email"`
	Department string           `json:"department"`
	CourseID   *roster.CourseID `json:"course_id,omitempty"`
	Evicted    bool             `json:"evicted"`
}

func toStudentDTO(s roster.Student) StudentDTO {
	dept, ok := s.Department()
	dto := StudentDTO{
		ID:         s.ID,
		Name:       s.DisplayName(),
		Email:      s.Email,
		Department: orNotAvailable(dept, ok),
		Evicted:    s.IsEvicted(),
	}
	if s.Course != nil {
		dto.CourseID = roster.Ptr(s.Course.ID)
	}
	return dto
}
