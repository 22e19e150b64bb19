package query

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sms-hub/sms-dashboard/internal/application/refresh"
	"github.com/sms-hub/sms-dashboard/internal/domain/roster"
	"github.com/sms-hub/sms-dashboard/pkg/timeutil"
)

var errDown = errors.New("records service down")

type memReader struct {
	students   []roster.Student
	courses    []roster.Course
	attendance []roster.AttendanceRecord
	totals     map[roster.StudentID]int
	details    map[roster.StudentID]roster.MarksDetail

	attendanceErr error
	marksErr      error
}

func (m *memReader) ListStudents(context.Context) ([]roster.Student, error) { return m.students, nil }

func (m *memReader) GetStudent(_ context.Context, id roster.StudentID) (*roster.Student, error) {
	for _, s := range m.students {
		if s.ID == id {
			return &s, nil
		}
	}
	return nil, roster.ErrStudentNotFound
}

func (m *memReader) ListCourses(context.Context) ([]roster.Course, error) { return m.courses, nil }

func (m *memReader) GetCourse(_ context.Context, id roster.CourseID) (*roster.Course, error) {
	for _, c := range m.courses {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, roster.ErrCourseNotFound
}

func (m *memReader) ListAttendance(context.Context) ([]roster.AttendanceRecord, error) {
	return m.attendance, m.attendanceErr
}

func (m *memReader) StudentAttendance(_ context.Context, id roster.StudentID) ([]roster.AttendanceRecord, error) {
	if m.attendanceErr != nil {
		return nil, m.attendanceErr
	}
	var out []roster.AttendanceRecord
	for _, r := range m.attendance {
		if sid, ok := r.StudentID(); ok && sid == id {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memReader) MarksDetail(_ context.Context, id roster.StudentID) (*roster.MarksDetail, error) {
	if m.marksErr != nil {
		return nil, m.marksErr
	}
	d, ok := m.details[id]
	if !ok {
		return nil, roster.ErrStudentNotFound
	}
	d = d.Clone()
	return &d, nil
}

func (m *memReader) TotalMarks(_ context.Context, id roster.StudentID) (int, error) {
	total, ok := m.totals[id]
	if !ok {
		return 0, errDown
	}
	return total, nil
}

var (
	physics   = roster.Course{ID: 1, Name: "Physics", Subjects: subjects(1, "English", "Tamil", "Algebra", "Optics", "Waves")}
	chemistry = roster.Course{ID: 2, Name: "Chemistry", Subjects: subjects(6, "English", "Tamil")}
)

func subjects(first roster.SubjectID, names ...string) []roster.Subject {
	out := make([]roster.Subject, len(names))
	for i, n := range names {
		out[i] = roster.Subject{ID: first + roster.SubjectID(i), Name: n}
	}
	return out
}

func day(d int) timeutil.Date { return timeutil.NewDate(2024, time.May, d) }

func record(id roster.AttendanceID, s *roster.Student, d int, present bool) roster.AttendanceRecord {
	return roster.AttendanceRecord{ID: id, Date: day(d), Present: present, Student: s}
}

// newRoster: Anu (Physics), bala (Physics, evicted), Chitra (Chemistry), Dev (no course).
func newRoster() *memReader {
	anu := roster.Student{ID: 1, Name: "Anu", Email: "anu@school.org", Course: &physics, Lifecycle: roster.LifecycleActive}
	bala := roster.Student{ID: 2, Name: "bala", Email: "bala@school.org", Course: &physics, Lifecycle: roster.LifecycleEvicted}
	chitra := roster.Student{ID: 3, Name: "Chitra", Email: "chitra@school.org", Course: &chemistry, Lifecycle: roster.LifecycleActive}
	dev := roster.Student{ID: 4, Name: "Dev", Email: "dev@school.org", Lifecycle: roster.LifecycleActive}

	return &memReader{
		students: []roster.Student{anu, bala, chitra, dev},
		courses:  []roster.Course{physics, chemistry},
		attendance: []roster.AttendanceRecord{
			record(1, &anu, 1, true),
			record(2, &anu, 2, false),
			record(3, &chitra, 1, true),
			record(4, &dev, 2, true),
			record(5, nil, 1, false),
		},
		totals: map[roster.StudentID]int{1: 410, 2: 300, 3: 120},
		details: map[roster.StudentID]roster.MarksDetail{
			1: {StudentID: 1, StudentName: "Anu", CourseName: "Physics", Entries: []roster.MarkEntry{
				{MarkID: roster.Ptr(roster.MarkID(11)), SubjectID: 1, SubjectName: "English", Marks: roster.Ptr(90)},
				{MarkID: roster.Ptr(roster.MarkID(12)), SubjectID: 2, SubjectName: "Tamil", Marks: roster.Ptr(80)},
				{SubjectID: 3, SubjectName: "Algebra"},
			}},
		},
	}
}

func newSource(t *testing.T, reader roster.Reader) *refresh.Service {
	t.Helper()
	svc := refresh.NewService(reader, nil, refresh.Config{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	_, err := svc.Refresh(t.Context())
	require.NoError(t, err)
	return svc
}
