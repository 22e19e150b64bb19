package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sms-hub/sms-dashboard/internal/application/refresh"
	"github.com/sms-hub/sms-dashboard/internal/domain/roster"
	"github.com/sms-hub/sms-dashboard/internal/domain/shared"
)

func TestEvictStudent(t *testing.T) {
	h := newHarness()
	id := h.openEdit(t, 1)
	evict := NewEvictStudentHandler(h.store, h.store, h.sessions, h.lock, h.refresher, discardLogger())

	res, err := evict.Handle(t.Context(), EvictStudentCommand{StudentID: 1})
	require.NoError(t, err)
	assert.True(t, res.Evicted)
	assert.Equal(t, "Anu", res.Name)

	require.Len(t, h.store.studentWrites, 1)
	draft := h.store.studentWrites[0]
	assert.Equal(t, "Anu (evicted)", draft.WireName())
	require.NotNil(t, draft.CourseID)
	assert.Equal(t, roster.CourseID(1), *draft.CourseID)

	require.NotNil(t, res.ClosedSession, "the evicted student's edit session is closed")
	assert.Equal(t, id, *res.ClosedSession)
	assert.Nil(t, h.sessions.Active())
	assert.Empty(t, h.lock.owner)

	assert.Equal(t, [][]refresh.View{{refresh.ViewStudents, refresh.ViewMarks}}, h.refresher.calls)

	_, err = evict.Handle(t.Context(), EvictStudentCommand{StudentID: 1})
	assert.ErrorIs(t, err, roster.ErrAlreadyEvicted)

	_, err = evict.Handle(t.Context(), EvictStudentCommand{StudentID: 77})
	assert.True(t, shared.IsNotFound(err))
}

func TestUpdateAttendance(t *testing.T) {
	store, r := newStore(), &fakeRefresher{}
	h := NewUpdateAttendanceHandler(store, store, r, discardLogger())

	res, err := h.Handle(t.Context(), UpdateAttendanceCommand{AttendanceID: 5, Present: true})
	require.NoError(t, err)
	assert.True(t, res.Present)
	assert.Equal(t, [][]refresh.View{{refresh.ViewAttendance}}, r.calls)

	_, err = h.Handle(t.Context(), UpdateAttendanceCommand{AttendanceID: 42, Present: true})
	assert.True(t, shared.IsNotFound(err))

	_, err = h.Handle(t.Context(), UpdateAttendanceCommand{})
	assert.True(t, shared.IsValidation(err))
}

func TestUpdateAttendance_EvictedStudentIsReadOnly(t *testing.T) {
	store, r := newStore(), &fakeRefresher{}
	h := NewUpdateAttendanceHandler(store, store, r, discardLogger())

	_, err := h.Handle(t.Context(), UpdateAttendanceCommand{AttendanceID: 6, Present: true})
	require.Error(t, err)
	assert.True(t, shared.IsInvalidState(err))
	assert.ErrorIs(t, err, roster.ErrEvictedReadOnly)
	assert.False(t, store.records[6].Present)
	assert.Empty(t, store.attendanceWrites, "no write reaches the records service")
	assert.Empty(t, r.calls)

	res, err := h.Handle(t.Context(), UpdateAttendanceCommand{AttendanceID: 7, Present: true})
	require.NoError(t, err)
	assert.True(t, res.Present)
	assert.Equal(t, []roster.AttendanceID{7}, store.attendanceWrites)
}

func TestUpdateAttendance_LookupFailure(t *testing.T) {
	store := newStore()
	store.listAttendanceErr = errBackend
	h := NewUpdateAttendanceHandler(store, store, &fakeRefresher{}, discardLogger())

	_, err := h.Handle(t.Context(), UpdateAttendanceCommand{AttendanceID: 5, Present: true})
	require.Error(t, err)
	assert.True(t, shared.IsExternalService(err))
	assert.Empty(t, store.attendanceWrites)
}

func TestUpdateAttendance_RefreshFailureIsNotFatal(t *testing.T) {
	store := newStore()
	h := NewUpdateAttendanceHandler(store, store, &fakeRefresher{err: errBackend}, discardLogger())

	res, err := h.Handle(t.Context(), UpdateAttendanceCommand{AttendanceID: 5})
	require.NoError(t, err)
	assert.Zero(t, res.Generation)
}

func TestCreateCourse_Validation(t *testing.T) {
	h := NewCreateCourseHandler(newStore(), &fakeRefresher{}, discardLogger())

	tests := []struct {
		name string
		cmd  CreateCourseCommand
		msg  string
	}{
		{"blank name", CreateCourseCommand{Name: "  ", Subjects: []string{"A", "B", "C"}}, "Name must not be blank"},
		{"blank subject", CreateCourseCommand{Name: "Physics", Subjects: []string{"A", " ", "C"}}, "Subjects[1] must not be blank"},
		{"two subjects", CreateCourseCommand{Name: "Physics", Subjects: []string{"A", "B"}}, "exactly 3"},
		{"four subjects", CreateCourseCommand{Name: "Physics", Subjects: []string{"A", "B", "C", "D"}}, "exactly 3"},
		{"repeated subject", CreateCourseCommand{Name: "Physics", Subjects: []string{"A", "A", "C"}}, "must not repeat"},
		{"default subject", CreateCourseCommand{Name: "Physics", Subjects: []string{"A", "english", "C"}}, "automatically"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Handle(t.Context(), tt.cmd)
			require.Error(t, err)
			assert.True(t, shared.IsValidation(err))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestCreateCourse(t *testing.T) {
	store, r := newStore(), &fakeRefresher{}
	h := NewCreateCourseHandler(store, r, discardLogger())

	subjects := []string{" Algebra ", "Optics", "Waves"}
	res, err := h.Handle(t.Context(), CreateCourseCommand{Name: " Physics II ", Subjects: subjects})
	require.NoError(t, err)

	assert.Equal(t, " Algebra ", subjects[0], "caller's slice is not modified")
	assert.Equal(t, [][]string{{"Algebra", "Optics", "Waves"}}, store.courseWrites)
	assert.Equal(t, "Physics II", res.Course.Name)
	assert.Equal(t, []string{"English", "Tamil", "Algebra", "Optics", "Waves"}, res.Course.Subjects)
	assert.Equal(t, "Optics, Waves, ...", res.Course.Preview)
	assert.Equal(t, [][]refresh.View{{refresh.ViewStudents}}, r.calls)
}

func TestCreateStudent(t *testing.T) {
	store, r := newStore(), &fakeRefresher{}
	h := NewCreateStudentHandler(store, store, r, discardLogger())

	course := int64(1)
	res, err := h.Handle(t.Context(), CreateStudentCommand{Name: " Kavya ", Email: "kavya@school.org", CourseID: &course})
	require.NoError(t, err)
	assert.Equal(t, "Kavya", res.Name)
	assert.Equal(t, "Physics", res.Department)
	assert.Equal(t, roster.LifecycleActive, store.studentWrites[0].Lifecycle)
	assert.Equal(t, [][]refresh.View{{refresh.ViewStudents, refresh.ViewMarks}}, r.calls)

	res, err = h.Handle(t.Context(), CreateStudentCommand{Name: "Ravi", Email: "ravi@school.org"})
	require.NoError(t, err)
	assert.Equal(t, "N/A", res.Department)
}

func TestCreateStudent_Validation(t *testing.T) {
	h := NewCreateStudentHandler(newStore(), newStore(), &fakeRefresher{}, discardLogger())
	missing := int64(9)
	zero := int64(0)

	tests := []struct {
		name string
		cmd  CreateStudentCommand
	}{
		{"blank name", CreateStudentCommand{Name: " ", Email: "a@b.org"}},
		{"bad email", CreateStudentCommand{Name: "A", Email: "not-an-email"}},
		{"zero course", CreateStudentCommand{Name: "A", Email: "a@b.org", CourseID: &zero}},
		{"unknown course", CreateStudentCommand{Name: "A", Email: "a@b.org", CourseID: &missing}},
		{"eviction marker", CreateStudentCommand{Name: "A (evicted)", Email: "a@b.org"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Handle(t.Context(), tt.cmd)
			require.Error(t, err)
			assert.True(t, shared.IsValidation(err))
		})
	}
}

func TestUpdateStudent(t *testing.T) {
	store, r := newStore(), &fakeRefresher{}
	h := NewUpdateStudentHandler(store, store, r, discardLogger())

	res, err := h.Handle(t.Context(), UpdateStudentCommand{StudentID: 1, Name: " Anu R ", Email: "anu.r@school.org"})
	require.NoError(t, err)
	assert.Equal(t, "Anu R", res.Name)
	assert.Equal(t, "N/A", res.Department, "a nil course clears it")

	require.Len(t, store.studentWrites, 1)
	draft := store.studentWrites[0]
	assert.Equal(t, roster.LifecycleActive, draft.Lifecycle)
	assert.Equal(t, "Anu R", draft.WireName())
	assert.Nil(t, draft.CourseID)
	assert.Equal(t, [][]refresh.View{{refresh.ViewStudents, refresh.ViewAttendance, refresh.ViewMarks}}, r.calls)

	course := int64(1)
	res, err = h.Handle(t.Context(), UpdateStudentCommand{StudentID: 1, Name: "Anu", Email: "anu@school.org", CourseID: &course})
	require.NoError(t, err)
	assert.Equal(t, "Physics", res.Department)
}

func TestUpdateStudent_EvictedIsReadOnly(t *testing.T) {
	store, r := newStore(), &fakeRefresher{}
	h := NewUpdateStudentHandler(store, store, r, discardLogger())

	_, err := h.Handle(t.Context(), UpdateStudentCommand{StudentID: 2, Name: "Bala", Email: "bala@school.org"})
	require.Error(t, err)
	assert.True(t, shared.IsInvalidState(err))
	assert.ErrorIs(t, err, roster.ErrEvictedReadOnly)
	assert.Empty(t, store.studentWrites)
	assert.Empty(t, r.calls)
}

func TestUpdateStudent_Errors(t *testing.T) {
	h := NewUpdateStudentHandler(newStore(), newStore(), &fakeRefresher{}, discardLogger())
	missing := int64(9)

	tests := []struct {
		name  string
		cmd   UpdateStudentCommand
		check func(error) bool
	}{
		{"zero id", UpdateStudentCommand{Name: "A", Email: "a@b.org"}, shared.IsValidation},
		{"blank name", UpdateStudentCommand{StudentID: 1, Name: " ", Email: "a@b.org"}, shared.IsValidation},
		{"bad email", UpdateStudentCommand{StudentID: 1, Name: "A", Email: "nope"}, shared.IsValidation},
		{"eviction marker", UpdateStudentCommand{StudentID: 1, Name: "A (evicted)", Email: "a@b.org"}, shared.IsValidation},
		{"unknown course", UpdateStudentCommand{StudentID: 1, Name: "A", Email: "a@b.org", CourseID: &missing}, shared.IsValidation},
		{"unknown student", UpdateStudentCommand{StudentID: 77, Name: "A", Email: "a@b.org"}, shared.IsNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Handle(t.Context(), tt.cmd)
			require.Error(t, err)
			assert.True(t, tt.check(err), err.Error())
		})
	}
}

func TestRefreshDashboard(t *testing.T) {
	r := &fakeRefresher{}
	h := NewRefreshDashboardHandler(r, discardLogger())

	res, err := h.Handle(t.Context(), RefreshDashboardCommand{Views: []string{"marks"}})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.Generation)
	assert.Equal(t, [][]refresh.View{{refresh.ViewMarks}}, r.calls)

	_, err = h.Handle(t.Context(), RefreshDashboardCommand{Views: []string{"board"}})
	assert.True(t, shared.IsValidation(err))

	r.err = refresh.ErrStaleRefresh
	res, err = h.Handle(t.Context(), RefreshDashboardCommand{})
	require.NoError(t, err)
	assert.True(t, res.Stale)
}
