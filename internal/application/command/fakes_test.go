package command

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/sms-hub/sms-dashboard/internal/application/refresh"
	"github.com/sms-hub/sms-dashboard/internal/domain/editsession"
	"github.com/sms-hub/sms-dashboard/internal/domain/ranking"
	"github.com/sms-hub/sms-dashboard/internal/domain/roster"
	"github.com/sms-hub/sms-dashboard/pkg/timeutil"
)

var errBackend = errors.New("backend down")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStore is an in-memory records service.
type fakeStore struct {
	mu sync.Mutex

	students map[roster.StudentID]roster.Student
	courses  map[roster.CourseID]roster.Course
	details  map[roster.StudentID]roster.MarksDetail
	records  map[roster.AttendanceID]roster.AttendanceRecord

	updateMarksErr    error
	writeStarted      chan struct{} // closed when UpdateMarks is entered, if set
	releaseWrite      chan struct{} // UpdateMarks waits on it, if set
	listAttendanceErr error
	attendanceWrites  []roster.AttendanceID
	markWrites        [][]roster.MarkUpdate
	studentWrites  []roster.StudentDraft
	courseWrites   [][]string
	nextID         int64
}

func newStore() *fakeStore {
	physics := roster.Course{ID: 1, Name: "Physics", Subjects: []roster.Subject{{ID: 1, Name: "English"}, {ID: 2, Name: "Tamil"}}}
	anu := roster.Student{ID: 1, Name: "Anu", Email: "anu@school.org", Course: &physics, Lifecycle: roster.LifecycleActive}
	bala := roster.Student{ID: 2, Name: "Bala", Email: "bala@school.org", Course: &physics, Lifecycle: roster.LifecycleEvicted}
	return &fakeStore{
		students: map[roster.StudentID]roster.Student{1: anu, 2: bala},
		courses: map[roster.CourseID]roster.Course{1: physics},
		details: map[roster.StudentID]roster.MarksDetail{
			1: {StudentID: 1, StudentName: "Anu", CourseName: "Physics", Entries: []roster.MarkEntry{
				{MarkID: roster.Ptr(roster.MarkID(10)), SubjectID: 1, SubjectName: "English", Marks: roster.Ptr(70)},
				{SubjectID: 2, SubjectName: "Tamil"},
			}},
			2: {StudentID: 2, StudentName: "Bala", CourseName: "Physics", Entries: []roster.MarkEntry{
				{SubjectID: 1, SubjectName: "English", Marks: roster.Ptr(50)},
			}},
		},
		records: map[roster.AttendanceID]roster.AttendanceRecord{
			5: {ID: 5, Date: timeutil.NewDate(2024, time.May, 1), Present: false},
			6: {ID: 6, Date: timeutil.NewDate(2024, time.May, 1), Present: false, Student: &bala},
			7: {ID: 7, Date: timeutil.NewDate(2024, time.May, 2), Present: false, Student: &anu},
		},
		nextID: 100,
	}
}

func (f *fakeStore) ListStudents(context.Context) ([]roster.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]roster.Student, 0, len(f.students))
	for _, s := range f.students {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeStore) GetStudent(_ context.Context, id roster.StudentID) (*roster.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.students[id]
	if !ok {
		return nil, roster.ErrStudentNotFound
	}
	return &s, nil
}

func (f *fakeStore) ListCourses(context.Context) ([]roster.Course, error) { return nil, nil }

func (f *fakeStore) GetCourse(_ context.Context, id roster.CourseID) (*roster.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.courses[id]
	if !ok {
		return nil, roster.ErrCourseNotFound
	}
	return &c, nil
}

func (f *fakeStore) ListAttendance(context.Context) ([]roster.AttendanceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listAttendanceErr != nil {
		return nil, f.listAttendanceErr
	}
	out := make([]roster.AttendanceRecord, 0, len(f.records))
	for _, r := range f.records {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeStore) StudentAttendance(context.Context, roster.StudentID) ([]roster.AttendanceRecord, error) {
	return nil, nil
}

func (f *fakeStore) MarksDetail(_ context.Context, id roster.StudentID) (*roster.MarksDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.details[id]
	if !ok {
		return nil, roster.ErrStudentNotFound
	}
	d = d.Clone()
	return &d, nil
}

func (f *fakeStore) TotalMarks(context.Context, roster.StudentID) (int, error) { return 0, nil }

func (f *fakeStore) CreateStudent(_ context.Context, d roster.StudentDraft) (*roster.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.studentWrites = append(f.studentWrites, d)
	f.nextID++
	s := roster.Student{ID: roster.StudentID(f.nextID), Name: d.Name, Email: d.Email, Lifecycle: d.Lifecycle}
	if d.CourseID != nil {
		c := f.courses[*d.CourseID]
		s.Course = &c
	}
	f.students[s.ID] = s
	return &s, nil
}

func (f *fakeStore) UpdateStudent(_ context.Context, id roster.StudentID, d roster.StudentDraft) (*roster.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.studentWrites = append(f.studentWrites, d)
	s, ok := f.students[id]
	if !ok {
		return nil, roster.ErrStudentNotFound
	}
	s.Name, s.Email, s.Lifecycle = d.Name, d.Email, d.Lifecycle
	s.Course = nil
	if d.CourseID != nil {
		c := f.courses[*d.CourseID]
		s.Course = &c
	}
	f.students[id] = s
	return &s, nil
}

func (f *fakeStore) CreateCourse(_ context.Context, name string, subjects []string) (*roster.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.courseWrites = append(f.courseWrites, subjects)
	f.nextID++
	c := roster.Course{ID: roster.CourseID(f.nextID), Name: name}
	for i, s := range append(append([]string(nil), roster.DefaultSubjects...), subjects...) {
		c.Subjects = append(c.Subjects, roster.Subject{ID: roster.SubjectID(i + 1), Name: s})
	}
	f.courses[c.ID] = c
	return &c, nil
}

func (f *fakeStore) SetAttendance(_ context.Context, id roster.AttendanceID, present bool) (*roster.AttendanceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok {
		return nil, roster.ErrAttendanceNotFound
	}
	r.Present = present
	f.records[id] = r
	f.attendanceWrites = append(f.attendanceWrites, id)
	return &r, nil
}

func (f *fakeStore) UpdateMarks(_ context.Context, updates []roster.MarkUpdate) error {
	if f.writeStarted != nil {
		close(f.writeStarted)
	}
	if f.releaseWrite != nil {
		<-f.releaseWrite
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateMarksErr != nil {
		return f.updateMarksErr
	}
	f.markWrites = append(f.markWrites, updates)
	return nil
}

// fakeRefresher records every refresh request.
type fakeRefresher struct {
	mu    sync.Mutex
	calls [][]refresh.View
	gen   uint64
	err   error
}

func (f *fakeRefresher) Refresh(_ context.Context, views ...refresh.View) (*refresh.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, views)
	if f.err != nil {
		return nil, f.err
	}
	f.gen++
	return &refresh.Snapshot{Board: &ranking.Board{Generation: f.gen}}, nil
}

// fakeLock is a single-owner lock shared by "replicas".
type fakeLock struct {
	mu       sync.Mutex
	owner    string
	released []string
	extended int

	// onExtend runs after every Extend, outside the mutex.
	onExtend func()
}

func (f *fakeLock) Acquire(_ context.Context, owner string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.owner != "" && f.owner != owner {
		return false, nil
	}
	f.owner = owner
	return true, nil
}

func (f *fakeLock) Extend(_ context.Context, owner string) error {
	f.mu.Lock()
	if f.owner == owner {
		f.extended++
	}
	hook := f.onExtend
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (f *fakeLock) Release(_ context.Context, owner string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, owner)
	if f.owner == owner {
		f.owner = ""
	}
	return nil
}

// memJournal is an in-memory edit journal.
type memJournal struct {
	entries []editsession.JournalEntry
	err     error
}

func (m *memJournal) Append(_ context.Context, e editsession.JournalEntry) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *memJournal) ListByStudent(context.Context, roster.StudentID, int) ([]editsession.JournalEntry, error) {
	return m.entries, m.err
}
