package refresh

import (
	"context"
	"errors"
	"sync"

	"github.com/sms-hub/sms-dashboard/internal/domain/roster"
)

var errBackend = errors.New("backend down")

type fakeReader struct {
	mu sync.Mutex

	students   []roster.Student
	courses    []roster.Course
	attendance []roster.AttendanceRecord
	totals     map[roster.StudentID]int

	studentsErr   error
	attendanceErr error
	totalErr      map[roster.StudentID]error

	// attendanceGate, when set, blocks the first ListAttendance call until closed.
	attendanceGate    chan struct{}
	attendanceEntered chan struct{}
	attendanceCalls   int
	// attendanceOverride is returned instead of attendance by the first call.
	attendanceOverride []roster.AttendanceRecord
}

func (f *fakeReader) ListStudents(context.Context) ([]roster.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.studentsErr != nil {
		return nil, f.studentsErr
	}
	return append([]roster.Student(nil), f.students...), nil
}

func (f *fakeReader) GetStudent(_ context.Context, id roster.StudentID) (*roster.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.students {
		if s.ID == id {
			return &s, nil
		}
	}
	return nil, roster.ErrStudentNotFound
}

func (f *fakeReader) ListCourses(context.Context) ([]roster.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]roster.Course(nil), f.courses...), nil
}

func (f *fakeReader) GetCourse(_ context.Context, id roster.CourseID) (*roster.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.courses {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, roster.ErrCourseNotFound
}

func (f *fakeReader) ListAttendance(context.Context) ([]roster.AttendanceRecord, error) {
	f.mu.Lock()
	f.attendanceCalls++
	first := f.attendanceCalls == 1
	gate, entered := f.attendanceGate, f.attendanceEntered
	override := f.attendanceOverride
	f.mu.Unlock()

	if first && gate != nil {
		close(entered)
		<-gate
		return override, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attendanceErr != nil {
		return nil, f.attendanceErr
	}
	return append([]roster.AttendanceRecord(nil), f.attendance...), nil
}

func (f *fakeReader) StudentAttendance(_ context.Context, id roster.StudentID) ([]roster.AttendanceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []roster.AttendanceRecord
	for _, r := range f.attendance {
		if sid, ok := r.StudentID(); ok && sid == id {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReader) MarksDetail(context.Context, roster.StudentID) (*roster.MarksDetail, error) {
	return nil, roster.ErrStudentNotFound
}

func (f *fakeReader) TotalMarks(_ context.Context, id roster.StudentID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.totalErr[id]; err != nil {
		return 0, err
	}
	return f.totals[id], nil
}
