package refresh

import (
	"maps"
	"slices"
	"time"

	"github.com/sms-hub/sms-dashboard/internal/domain/performance"
	"github.com/sms-hub/sms-dashboard/internal/domain/ranking"
	"github.com/sms-hub/sms-dashboard/internal/domain/roster"
)

// Snapshot is the published state of the dashboard. It is replaced, never
// modified, so readers may keep a reference.
type Snapshot struct {
	TakenAt time.Time

	Students   []roster.Student
	Courses    []roster.Course
	Attendance []roster.AttendanceRecord

	// Totals holds the service-side total of every student whose fetch succeeded.
	Totals map[roster.StudentID]int

	// Aggregates is keyed by student id and only covers students with a known total.
	Aggregates map[roster.StudentID]performance.Aggregate

	Board *ranking.Board

	// Movement holds the leader lists that changed against the previous
	// board. It stays empty while there was no previous board to compare.
	Movement map[string]ranking.ListChange

	// Generations of each view at the time the snapshot was built.
	Generations map[View]uint64

	// Degraded names the slices whose last fetch failed.
	Degraded []string
}

func emptySnapshot() *Snapshot {
	return &Snapshot{
		Totals:      map[roster.StudentID]int{},
		Aggregates:  map[roster.StudentID]performance.Aggregate{},
		Generations: map[View]uint64{},
	}
}

func (s *Snapshot) clone() *Snapshot {
	out := *s
	out.Totals = maps.Clone(s.Totals)
	out.Aggregates = maps.Clone(s.Aggregates)
	out.Generations = maps.Clone(s.Generations)
	out.Degraded = slices.Clone(s.Degraded)
	return &out
}

// Student finds a student by id.
func (s *Snapshot) Student(id roster.StudentID) (roster.Student, bool) {
	if s == nil {
		return roster.Student{}, false
	}
	for _, st := range s.Students {
		if st.ID == id {
			return st, true
		}
	}
	return roster.Student{}, false
}

// Course finds a course by id.
func (s *Snapshot) Course(id roster.CourseID) (roster.Course, bool) {
	if s == nil {
		return roster.Course{}, false
	}
	for _, c := range s.Courses {
		if c.ID == id {
			return c, true
		}
	}
	return roster.Course{}, false
}

// Aggregate returns the aggregate of id, if its total is known.
func (s *Snapshot) Aggregate(id roster.StudentID) (performance.Aggregate, bool) {
	if s == nil {
		return performance.Aggregate{}, false
	}
	a, ok := s.Aggregates[id]
	return a, ok
}

// IsDegraded reports whether slice failed in the last fetch.
func (s *Snapshot) IsDegraded(slice string) bool {
	return s != nil && slices.Contains(s.Degraded, slice)
}

func (s *Snapshot) markDegraded(slice string, failed bool) {
	i := slices.Index(s.Degraded, slice)
	switch {
	case failed && i < 0:
		s.Degraded = append(s.Degraded, slice)
	case !failed && i >= 0:
		s.Degraded = slices.Delete(s.Degraded, i, i+1)
	}
}
