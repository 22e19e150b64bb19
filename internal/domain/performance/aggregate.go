// Package performance derives per-student metrics from raw attendance and mark records.
// Everything here is a pure function of its inputs.
package performance

import (
	"fmt"
	"math"

	"github.com/sms-hub/sms-dashboard/internal/domain/roster"
	"github.com/sms-hub/sms-dashboard/internal/domain/shared"
)

const (
	// MaxTotalMarks is the denominator of the marks percentage: five subjects of 100.
	MaxTotalMarks = 500

	attendanceWeight = 0.5
	marksWeight      = 0.5
)

// ErrInconsistentAggregate flags a total outside what the subject count allows.
var ErrInconsistentAggregate = shared.NewDomainError("performance", "CheckTotal", shared.ErrInconsistent, "total marks outside expected bounds")

// Aggregate is the derived view of one student. It is rebuilt on every refresh.
type Aggregate struct {
	StudentID            roster.StudentID `json:"student_id"`
	AttendancePercentage float64          `json:"attendance_percentage"`
	TotalMarks           int              `json:"total_marks"`
	PerformanceScore     float64          `json:"performance_score"`
	SubjectCount         int              `json:"subject_count"`
	Band                 Band             `json:"band"`
}

// ComputeAttendance returns the share of present records as a percentage.
// An empty sequence yields 0. Duplicate dates are counted like any other record.
func ComputeAttendance(records []roster.AttendanceRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	present := 0
	for _, r := range records {
		if r.Present {
			present++
		}
	}
	return 100 * float64(present) / float64(len(records))
}

// ComputeTotalMarks sums the entries, counting ungraded ones as 0.
func ComputeTotalMarks(entries []roster.MarkEntry) int {
	total := 0
	for _, e := range entries {
		total += e.Value()
	}
	return total
}

// MarksPercentage scales a total to [0,100] against MaxTotalMarks.
func MarksPercentage(total int) float64 {
	return float64(total) / MaxTotalMarks * 100
}

// ComputePerformanceScore is the equal-weight blend of two percentages.
func ComputePerformanceScore(attendancePct, marksPct float64) float64 {
	return attendanceWeight*attendancePct + marksWeight*marksPct
}

// CheckTotal returns ErrInconsistentAggregate when total cannot come from
// subjectCount marks in [0,100].
func CheckTotal(total, subjectCount int) error {
	if total < 0 || total > roster.MaxMark*subjectCount {
		return shared.WrapError("performance", "CheckTotal", shared.ErrInconsistent,
			fmt.Sprintf("total %d with %d subjects", total, subjectCount), ErrInconsistentAggregate)
	}
	return nil
}

// Compute builds the aggregate of one student. A nil detail counts as no marks.
func Compute(id roster.StudentID, records []roster.AttendanceRecord, detail *roster.MarksDetail) Aggregate {
	var entries []roster.MarkEntry
	if detail != nil {
		entries = detail.Entries
	}
	return FromParts(id, ComputeAttendance(records), ComputeTotalMarks(entries), len(entries))
}

// FromParts builds an aggregate from an attendance percentage and a total that
// were obtained separately, e.g. from the service-side total endpoint.
func FromParts(id roster.StudentID, attendancePct float64, total, subjectCount int) Aggregate {
	return Aggregate{
		StudentID:            id,
		AttendancePercentage: attendancePct,
		TotalMarks:           total,
		PerformanceScore:     ComputePerformanceScore(attendancePct, MarksPercentage(total)),
		SubjectCount:         subjectCount,
		Band:                 BandFor(total),
	}
}

// Check applies CheckTotal. Aggregates with an unknown subject count pass only
// when their total is not negative.
func (a Aggregate) Check() error {
	if a.SubjectCount == 0 {
		if a.TotalMarks < 0 {
			return CheckTotal(a.TotalMarks, 0)
		}
		return nil
	}
	return CheckTotal(a.TotalMarks, a.SubjectCount)
}

// RoundPercent rounds p half away from zero to the given number of decimals.
// Use it at presentation time only.
func RoundPercent(p float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Round(p*scale) / scale
}
