package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sms-hub/sms-dashboard/internal/application/command"
	"github.com/sms-hub/sms-dashboard/internal/application/query"
	"github.com/sms-hub/sms-dashboard/internal/application/refresh"
	"github.com/sms-hub/sms-dashboard/internal/domain/editsession"
	"github.com/sms-hub/sms-dashboard/internal/domain/roster"
	"github.com/sms-hub/sms-dashboard/internal/domain/shared"
	"github.com/sms-hub/sms-dashboard/internal/infrastructure/scheduler"
	"github.com/sms-hub/sms-dashboard/internal/infrastructure/scheduler/jobs"
	"github.com/sms-hub/sms-dashboard/internal/interface/http/handlers"
	"github.com/sms-hub/sms-dashboard/pkg/logger"
	"github.com/sms-hub/sms-dashboard/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// FIXTURES
// ══════════════════════════════════════════════════════════════════════════════

// memStore is an in-memory records service.
type memStore struct {
	mu         sync.Mutex
	students   map[roster.StudentID]roster.Student
	courses    map[roster.CourseID]roster.Course
	details    map[roster.StudentID]roster.MarksDetail
	attendance map[roster.AttendanceID]roster.AttendanceRecord
	markWrites [][]roster.MarkUpdate
	nextID     int64
}

func newMemStore() *memStore {
	physics := roster.Course{ID: 1, Name: "Physics", Subjects: []roster.Subject{{ID: 1, Name: "English"}, {ID: 2, Name: "Tamil"}}}
	anu := roster.Student{ID: 1, Name: "Anu", Email: "anu@school.org", Course: &physics, Lifecycle: roster.LifecycleActive}
	bala := roster.Student{ID: 2, Name: "Bala", Email: "bala@school.org", Course: &physics, Lifecycle: roster.LifecycleActive}
	return &memStore{
		students: map[roster.StudentID]roster.Student{1: anu, 2: bala},
		courses:  map[roster.CourseID]roster.Course{1: physics},
		details: map[roster.StudentID]roster.MarksDetail{
			1: {StudentID: 1, StudentName: "Anu", CourseName: "Physics", Entries: []roster.MarkEntry{
				{MarkID: roster.Ptr(roster.MarkID(10)), SubjectID: 1, SubjectName: "English", Marks: roster.Ptr(70)},
				{SubjectID: 2, SubjectName: "Tamil"},
			}},
		},
		attendance: map[roster.AttendanceID]roster.AttendanceRecord{
			5: {ID: 5, Date: timeutil.NewDate(2024, time.May, 1), Present: false, Student: &anu},
		},
		nextID: 100,
	}
}

func (m *memStore) ListStudents(context.Context) ([]roster.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]roster.Student, 0, len(m.students))
	for _, s := range m.students {
		out = append(out, s)
	}
	return out, nil
}

func (m *memStore) GetStudent(_ context.Context, id roster.StudentID) (*roster.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[id]
	if !ok {
		return nil, roster.ErrStudentNotFound
	}
	return &s, nil
}

func (m *memStore) ListCourses(context.Context) ([]roster.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]roster.Course, 0, len(m.courses))
	for _, c := range m.courses {
		out = append(out, c)
	}
	return out, nil
}

func (m *memStore) GetCourse(_ context.Context, id roster.CourseID) (*roster.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.courses[id]
	if !ok {
		return nil, roster.ErrCourseNotFound
	}
	return &c, nil
}

func (m *memStore) ListAttendance(context.Context) ([]roster.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]roster.AttendanceRecord, 0, len(m.attendance))
	for _, r := range m.attendance {
		out = append(out, r)
	}
	return out, nil
}

func (m *memStore) StudentAttendance(_ context.Context, id roster.StudentID) ([]roster.AttendanceRecord, error) {
	all, _ := m.ListAttendance(context.Background())
	var out []roster.AttendanceRecord
	for _, r := range all {
		if sid, ok := r.StudentID(); ok && sid == id {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) MarksDetail(_ context.Context, id roster.StudentID) (*roster.MarksDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.details[id]
	if !ok {
		return nil, roster.ErrStudentNotFound
	}
	d = d.Clone()
	return &d, nil
}

func (m *memStore) TotalMarks(_ context.Context, id roster.StudentID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, e := range m.details[id].Entries {
		if e.Marks != nil {
			total += *e.Marks
		}
	}
	return total, nil
}

func (m *memStore) CreateStudent(_ context.Context, d roster.StudentDraft) (*roster.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	s := roster.Student{ID: roster.StudentID(m.nextID), Name: d.Name, Email: d.Email, Lifecycle: d.Lifecycle}
	if d.CourseID != nil {
		c := m.courses[*d.CourseID]
		s.Course = &c
	}
	m.students[s.ID] = s
	return &s, nil
}

func (m *memStore) UpdateStudent(_ context.Context, id roster.StudentID, d roster.StudentDraft) (*roster.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[id]
	if !ok {
		return nil, roster.ErrStudentNotFound
	}
	s.Name, s.Email, s.Lifecycle = d.Name, d.Email, d.Lifecycle
	s.Course = nil
	if d.CourseID != nil {
		c := m.courses[*d.CourseID]
		s.Course = &c
	}
	m.students[id] = s
	return &s, nil
}

func (m *memStore) CreateCourse(_ context.Context, name string, subjects []string) (*roster.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	c := roster.Course{ID: roster.CourseID(m.nextID), Name: name}
	for i, s := range append(append([]string(nil), roster.DefaultSubjects...), subjects...) {
		c.Subjects = append(c.Subjects, roster.Subject{ID: roster.SubjectID(i + 1), Name: s})
	}
	m.courses[c.ID] = c
	return &c, nil
}

func (m *memStore) SetAttendance(_ context.Context, id roster.AttendanceID, present bool) (*roster.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.attendance[id]
	if !ok {
		return nil, roster.ErrAttendanceNotFound
	}
	r.Present = present
	m.attendance[id] = r
	return &r, nil
}

func (m *memStore) UpdateMarks(_ context.Context, updates []roster.MarkUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markWrites = append(m.markWrites, updates)
	return nil
}

type testEnv struct {
	store  *memStore
	server *Server
}

func newTestEnv(t *testing.T, mutate func(*Dependencies)) *testEnv {
	t.Helper()

	store := newMemStore()
	slogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := refresh.NewService(store, nil, refresh.Config{Logger: slogger})
	sessions := editsession.NewManager(editsession.ManagerConfig{TTL: 30 * time.Minute})

	deps := Dependencies{
		GetDashboard:      query.NewGetDashboardHandler(svc),
		ListStudents:      query.NewListStudentsHandler(svc),
		GetStudentDetails: query.NewGetStudentDetailsHandler(store, slogger),
		ListAttendance:    query.NewListAttendanceHandler(svc),
		ListMarks:         query.NewListMarksHandler(svc),
		ListCourses:       query.NewListCoursesHandler(svc),
		GetJournal:        query.NewGetJournalHandler(nil),
		GetSession:        query.NewGetSessionHandler(sessions),

		RefreshDashboard: command.NewRefreshDashboardHandler(svc, slogger),
		CreateStudent:    command.NewCreateStudentHandler(store, store, svc, slogger),
		UpdateStudent:    command.NewUpdateStudentHandler(store, store, svc, slogger),
		EvictStudent:     command.NewEvictStudentHandler(store, store, sessions, nil, svc, slogger),
		UpdateAttendance: command.NewUpdateAttendanceHandler(store, store, svc, slogger),
		CreateCourse:     command.NewCreateCourseHandler(store, svc, slogger),
		OpenSession:      command.NewOpenSessionHandler(store, sessions, nil, slogger),
		EditField:        command.NewEditFieldHandler(sessions, nil, slogger),
		CommitSession:    command.NewCommitSessionHandler(sessions, store, svc, nil, nil, command.CommitSessionConfig{Logger: slogger}),
		CancelSession:    command.NewCancelSessionHandler(sessions, nil, slogger),

		Logger: logger.New(logger.Options{Output: io.Discard}),
	}
	if mutate != nil {
		mutate(&deps)
	}

	return &testEnv{store: store, server: NewServer(DefaultConfig(), deps)}
}

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *APIError       `json:"error"`
	RequestID string          `json:"request_id"`
}

func (e *testEnv) do(t *testing.T, method, target, body string, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

// ══════════════════════════════════════════════════════════════════════════════
// TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestHealth_RequestID(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, body := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, body.Success)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, rec.Header().Get("X-Request-ID"), body.RequestID)

	rec, body = env.do(t, http.MethodGet, "/health", "", "X-Request-ID", "req-42")
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "req-42", body.RequestID)
}

func TestReady(t *testing.T) {
	checker := handlers.NewCompositeHealthChecker("test")
	checker.AddOptionalCheck("redis", func(context.Context) error { return errors.New("connection refused") })
	env := newTestEnv(t, func(d *Dependencies) { d.HealthChecker = checker })

	rec, _ := env.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code, "an optional failure only degrades")

	checker.AddCheck("sms_api", func(context.Context) error { return errors.New("circuit open") })
	rec, body := env.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var status handlers.HealthStatus
	require.NoError(t, json.Unmarshal(body.Data, &status))
	assert.False(t, status.Ready)
	assert.Equal(t, "circuit open", status.Checks["sms_api"].Message)
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, body := env.do(t, http.MethodGet, "/api/v1/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res query.GetDashboardResult
	require.NoError(t, json.Unmarshal(body.Data, &res))
	require.NotNil(t, res.Board)
	assert.Equal(t, 2, res.Board.StudentCount)

	rec, _ = env.do(t, http.MethodPost, "/api/v1/dashboard/refresh", `{"views":["marks"]}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/api/v1/dashboard/refresh", "")
	assert.Equal(t, http.StatusOK, rec.Code, "the body is optional")

	rec, body = env.do(t, http.MethodPost, "/api/v1/dashboard/refresh", `{"views":["board"]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "validation_failed", body.Error.Code)
}

func TestListStudents(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, body := env.do(t, http.MethodGet, "/api/v1/students?sort=name&dir=desc", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res query.ListStudentsResult
	require.NoError(t, json.Unmarshal(body.Data, &res))
	require.Len(t, res.Students, 2)
	assert.Equal(t, "Bala", res.Students[0].Name)

	rec, _ = env.do(t, http.MethodGet, "/api/v1/students?sort=shoe_size", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, body = env.do(t, http.MethodGet, "/api/v1/students?hide_evicted=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_request", body.Error.Code)
}

func TestGetStudent(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, _ := env.do(t, http.MethodGet, "/api/v1/students/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body := env.do(t, http.MethodGet, "/api/v1/students/99", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", body.Error.Code)

	rec, body = env.do(t, http.MethodGet, "/api/v1/students/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res query.GetStudentDetailsResult
	require.NoError(t, json.Unmarshal(body.Data, &res))
	assert.Equal(t, "Anu", res.Student.Name)
}

func TestJournalDisabled(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, body := env.do(t, http.MethodGet, "/api/v1/students/1/journal?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res query.GetJournalResult
	require.NoError(t, json.Unmarshal(body.Data, &res))
	assert.False(t, res.Enabled)

	rec, _ = env.do(t, http.MethodGet, "/api/v1/students/1/journal?limit=ten", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateAttendance(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, _ := env.do(t, http.MethodPut, "/api/v1/attendance/5", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "present is required")

	rec, _ = env.do(t, http.MethodPut, "/api/v1/attendance/5?present=true", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, env.store.attendance[5].Present)

	rec, _ = env.do(t, http.MethodPut, "/api/v1/attendance/6?present=true", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateStudent(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, _ := env.do(t, http.MethodPut, "/api/v1/students/2", `{"name":"Bala K","email":"bala.k@school.org","course_id":1}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Bala K", env.store.students[2].Name)

	rec, _ = env.do(t, http.MethodPut, "/api/v1/students/2", `{"name":"Bala","email":"nope"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, _ = env.do(t, http.MethodPut, "/api/v1/students/99", `{"name":"Nobody","email":"n@school.org"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/api/v1/students/2/evict", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, body := env.do(t, http.MethodPut, "/api/v1/students/2", `{"name":"Bala","email":"bala@school.org"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_state", body.Error.Code)
	assert.True(t, env.store.students[2].IsEvicted(), "the lifecycle is untouched")
}

func TestCreateCourse(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, _ := env.do(t, http.MethodPost, "/api/v1/courses", `{"name":"Chemistry","subjects":["Organic","Inorganic","Physical"]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, _ = env.do(t, http.MethodPost, "/api/v1/courses", `{"name":"Chemistry","subjects":["Organic"]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, body := env.do(t, http.MethodPost, "/api/v1/courses", `{"name":"Chemistry","colour":"red"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body.Error.Message, "colour")

	rec, _ = env.do(t, http.MethodPost, "/api/v1/courses", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEditSessionFlow(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, body := env.do(t, http.MethodPost, "/api/v1/sessions", `{"student_id":1}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var opened command.OpenSessionResult
	require.NoError(t, json.Unmarshal(body.Data, &opened))
	id := string(opened.Session.ID)
	require.NotEmpty(t, id)
	assert.Len(t, opened.Session.Fields, 2)

	rec, _ = env.do(t, http.MethodPatch, "/api/v1/sessions/"+id+"/fields/x", `{"input":"1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = env.do(t, http.MethodPatch, "/api/v1/sessions/"+id+"/fields/9", `{"input":"1"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, body = env.do(t, http.MethodPatch, "/api/v1/sessions/"+id+"/fields/1", `{"input":"85"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var edited command.EditFieldResult
	require.NoError(t, json.Unmarshal(body.Data, &edited))
	assert.Equal(t, 155, edited.Session.Total)

	rec, body = env.do(t, http.MethodGet, "/api/v1/sessions/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got query.SessionDTO
	require.NoError(t, json.Unmarshal(body.Data, &got))
	assert.True(t, got.CanCommit)

	rec, _ = env.do(t, http.MethodPost, "/api/v1/sessions", `{"student_id":1}`)
	assert.Equal(t, http.StatusConflict, rec.Code, "unsaved input blocks a second session")

	rec, _ = env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/commit", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, env.store.markWrites, 1)

	rec, _ = env.do(t, http.MethodGet, "/api/v1/sessions/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelSession(t *testing.T) {
	env := newTestEnv(t, nil)

	_, body := env.do(t, http.MethodPost, "/api/v1/sessions", `{"student_id":1,"mode":"view"}`)
	var opened command.OpenSessionResult
	require.NoError(t, json.Unmarshal(body.Data, &opened))

	rec, _ := env.do(t, http.MethodDelete, "/api/v1/sessions/"+string(opened.Session.ID), "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = env.do(t, http.MethodDelete, "/api/v1/sessions/"+string(opened.Session.ID), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOperatorToken(t *testing.T) {
	hash, err := handlers.HashToken("s3cret")
	require.NoError(t, err)
	auth, err := handlers.NewOperatorAuth(hash)
	require.NoError(t, err)
	env := newTestEnv(t, func(d *Dependencies) { d.OperatorAuth = auth })

	rec, body := env.do(t, http.MethodPost, "/api/v1/dashboard/refresh", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", body.Error.Code)

	rec, _ = env.do(t, http.MethodPost, "/api/v1/dashboard/refresh", "", handlers.OperatorTokenHeader, "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/api/v1/dashboard/refresh", "", handlers.OperatorTokenHeader, "s3cret")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = env.do(t, http.MethodGet, "/api/v1/students", "")
	assert.Equal(t, http.StatusOK, rec.Code, "reads need no token")
}

type failingJob struct{}

func (failingJob) Name() string              { return "always_fails" }
func (failingJob) Description() string       { return "fails every run" }
func (failingJob) Run(context.Context) error { return errors.New("upstream down") }

func TestJobs(t *testing.T) {
	sched := scheduler.New(scheduler.Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	env := newTestEnv(t, func(d *Dependencies) { d.Jobs = sched })
	refreshJob := jobs.NewRefreshDashboardJob(env.server.deps.RefreshDashboard, time.Second, nil)
	require.NoError(t, sched.Register(refreshJob, scheduler.Every(time.Minute)))
	require.NoError(t, sched.Register(failingJob{}, scheduler.Every(time.Minute)))
	require.NoError(t, sched.SetEnabled("always_fails", false))

	rec, body := env.do(t, http.MethodPost, "/api/v1/jobs/refresh_dashboard/run", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var run JobRunDTO
	require.NoError(t, json.Unmarshal(body.Data, &run))
	assert.True(t, run.Success)
	assert.True(t, run.Manual)

	rec, body = env.do(t, http.MethodGet, "/api/v1/jobs/refresh_dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var job JobDTO
	require.NoError(t, json.Unmarshal(body.Data, &job))
	assert.True(t, job.Enabled)
	assert.Equal(t, "@every 1m0s", job.Schedule)
	assert.Equal(t, int64(1), job.RunCount)
	require.Len(t, job.Runs, 1)
	assert.Equal(t, run.RunID, job.Runs[0].RunID)

	rec, body = env.do(t, http.MethodPost, "/api/v1/jobs/always_fails/run", "")
	require.Equal(t, http.StatusOK, rec.Code, "a failed run is reported, not raised")
	require.NoError(t, json.Unmarshal(body.Data, &run))
	assert.False(t, run.Success)
	assert.Equal(t, "upstream down", run.Error)

	rec, body = env.do(t, http.MethodGet, "/api/v1/jobs/always_fails", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(body.Data, &job))
	assert.False(t, job.Enabled)
	assert.Nil(t, job.NextRun, "a disabled job has no next run")
	assert.Equal(t, int64(1), job.FailCount)
	require.Len(t, job.Runs, 1, "runs of other jobs are not listed")

	rec, body = env.do(t, http.MethodGet, "/api/v1/jobs/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", body.Error.Code)
	rec, _ = env.do(t, http.MethodPost, "/api/v1/jobs/missing/run", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJobs_AlreadyRunning(t *testing.T) {
	sched := scheduler.New(scheduler.Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, sched.Register(blockingJob{started: started, release: release}, scheduler.Every(time.Hour)))
	env := newTestEnv(t, func(d *Dependencies) { d.Jobs = sched })

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = sched.RunNow(context.Background(), "blocking")
	}()
	<-started

	rec, body := env.do(t, http.MethodPost, "/api/v1/jobs/blocking/run", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", body.Error.Code)

	close(release)
	<-done
}

type blockingJob struct {
	started chan struct{}
	release chan struct{}
}

func (blockingJob) Name() string        { return "blocking" }
func (blockingJob) Description() string { return "" }

func (j blockingJob) Run(context.Context) error {
	close(j.started)
	<-j.release
	return nil
}

func TestNotConfigured(t *testing.T) {
	env := newTestEnv(t, func(d *Dependencies) { *d = Dependencies{} })

	rec, body := env.do(t, http.MethodGet, "/api/v1/marks", "")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	assert.Equal(t, "not_implemented", body.Error.Code)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, nil)
	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 2
	srv := NewServer(cfg, env.server.deps)
	t.Cleanup(srv.rateLimiter.Stop)

	codes := make([]int, 0, 3)
	for range 3 {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestStatusFor(t *testing.T) {
	upstream404 := shared.WrapError("external", "GetStudent", shared.ErrNotFound, "not found", nil)

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", roster.ErrStudentNotFound, http.StatusNotFound},
		{"expired", editsession.ErrSessionExpired, http.StatusGone},
		{"conflict", editsession.ErrSessionConflict, http.StatusConflict},
		{"read only", editsession.ErrReadOnly, http.StatusConflict},
		{"commit in flight", editsession.ErrCommitting, http.StatusConflict},
		{"evicted student", roster.ErrEvictedReadOnly, http.StatusConflict},
		{"commit blocked", editsession.ErrCommitBlocked, http.StatusUnprocessableEntity},
		{"invalid id", roster.ErrInvalidStudentID, http.StatusBadRequest},
		{"rate limited", shared.ErrSMSAPIRateLimited, http.StatusServiceUnavailable},
		{"outer kind wins", shared.WrapError("query", "GetStudentDetails", shared.ErrExternalService, "unavailable", upstream404), http.StatusBadGateway},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, statusFor(tt.err).status)
		})
	}
}

func TestPublicMessage_HidesInternalErrors(t *testing.T) {
	assert.Equal(t, "An unexpected error occurred", publicMessage(errors.New("pq: password wrong"), 500))
	assert.Equal(t, "student not found", publicMessage(roster.ErrStudentNotFound, 404))
}
