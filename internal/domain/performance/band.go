package performance

import "github.com/sms-hub/sms-dashboard/internal/domain/roster"

// Band buckets a total for colour coding in the marks view.
type Band string

const (
	BandHigh   Band = "high"
	BandMedium Band = "medium"
	BandLow    Band = "low"
)

const (
	highBandFloor   = 375
	mediumBandFloor = 250
)

// BandFor returns the band of a total out of MaxTotalMarks.
func BandFor(total int) Band {
	switch {
	case total >= highBandFloor:
		return BandHigh
	case total >= mediumBandFloor:
		return BandMedium
	default:
		return BandLow
	}
}

// Tally counts one student's attendance records.
type Tally struct {
	StudentID roster.StudentID
	Student   roster.Student
	Present   int
	Total     int
}

// Percentage mirrors ComputeAttendance for a pre-counted tally.
func (t Tally) Percentage() float64 {
	if t.Total == 0 {
		return 0
	}
	return 100 * float64(t.Present) / float64(t.Total)
}

// TallyAttendance groups a mixed attendance collection by student.
// Records without a student are skipped. The result keeps first-seen order.
func TallyAttendance(records []roster.AttendanceRecord) []Tally {
	index := make(map[roster.StudentID]int)
	var out []Tally

	for _, r := range records {
		id, ok := r.StudentID()
		if !ok {
			continue
		}
		i, seen := index[id]
		if !seen {
			i = len(out)
			index[id] = i
			out = append(out, Tally{StudentID: id, Student: *r.Student})
		}
		out[i].Total++
		if r.Present {
			out[i].Present++
		}
	}
	return out
}
