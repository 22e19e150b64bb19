package sms

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sms-hub/sms-dashboard/internal/domain/roster"
	"github.com/sms-hub/sms-dashboard/internal/domain/shared"
	"github.com/sms-hub/sms-dashboard/pkg/timeutil"
)

func newTestClient(t *testing.T, mux *http.ServeMux, opts ...func(*ClientConfig)) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := DefaultClientConfig(srv.URL)
	cfg.RateLimiterConfig = RateLimiterConfig{}
	cfg.MaxAttempts = 3
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewClient(cfg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_ListStudents(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/students", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[
			{"id": 1, "name": "Anu", "email": "anu@school.org", "course": {"id": 3, "name": "Physics"}},
			{"id": 2, "name": "Bala (evicted)", "email": "bala@school.org", "course": null}
		]`)
	})
	c := newTestClient(t, mux)

	students, err := c.ListStudents(t.Context())
	require.NoError(t, err)
	require.Len(t, students, 2)

	assert.Equal(t, "Anu", students[0].Name)
	dept, ok := students[0].Department()
	assert.True(t, ok)
	assert.Equal(t, "Physics", dept)
	assert.False(t, students[0].IsEvicted())

	assert.Equal(t, "Bala", students[1].Name)
	assert.True(t, students[1].IsEvicted())
	assert.Nil(t, students[1].Course)
}

func TestClient_MarksDetail_NullableFields(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/marks/student/7/details", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{
			"studentId": 7, "studentName": "Kavya", "courseName": "Physics",
			"marks": [
				{"subjectId": 1, "subjectName": "English", "marks": 88, "markId": 40},
				{"subjectId": 2, "subjectName": "Tamil", "marks": null, "markId": null}
			]
		}`)
	})
	c := newTestClient(t, mux)

	d, err := c.MarksDetail(t.Context(), 7)
	require.NoError(t, err)

	assert.Equal(t, "Physics", d.CourseName)
	require.Len(t, d.Entries, 2)
	assert.Equal(t, roster.Ptr(88), d.Entries[0].Marks)
	assert.Equal(t, roster.Ptr(roster.MarkID(40)), d.Entries[0].MarkID)
	assert.Nil(t, d.Entries[1].Marks)
	assert.Nil(t, d.Entries[1].MarkID)
}

func TestClient_TotalMarks(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/marks/student/9/total", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "412")
	})
	c := newTestClient(t, mux)

	total, err := c.TotalMarks(t.Context(), 9)
	require.NoError(t, err)
	assert.Equal(t, 412, total)
}

func TestClient_UpdateMarks_Payload(t *testing.T) {
	var got []map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /api/marks/bulk", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, []any{})
	})
	c := newTestClient(t, mux)

	err := c.UpdateMarks(t.Context(), []roster.MarkUpdate{
		{MarkID: roster.Ptr(roster.MarkID(40)), StudentID: 7, SubjectID: 1, Marks: 90},
		{StudentID: 7, SubjectID: 2, Marks: 0},
	})
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.EqualValues(t, 40, got[0]["markId"])
	assert.EqualValues(t, 90, got[0]["marks"])
	assert.Nil(t, got[1]["markId"])
	assert.Contains(t, got[1], "markId")
	assert.EqualValues(t, 0, got[1]["marks"])
	assert.EqualValues(t, 7, got[1]["studentId"])
}

func TestClient_UpdateStudent_SendsWireName(t *testing.T) {
	var body StudentRequestDTO
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /api/students/5", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusOK, StudentDTO{ID: 5, Name: body.Name, Email: body.Email})
	})
	c := newTestClient(t, mux)

	st := roster.Student{ID: 5, Name: "Dev", Email: "dev@school.org", Course: &roster.Course{ID: 2}, Lifecycle: roster.LifecycleActive}
	draft, err := st.Evict()
	require.NoError(t, err)

	updated, err := c.UpdateStudent(t.Context(), 5, draft)
	require.NoError(t, err)

	assert.Equal(t, "Dev (evicted)", body.Name)
	require.NotNil(t, body.Course)
	assert.Equal(t, int64(2), body.Course.ID)
	assert.Equal(t, "Dev", updated.Name)
	assert.True(t, updated.IsEvicted())
}

func TestClient_SetAttendance(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /api/attendance/12", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("present"))
		_, _ = io.WriteString(w, `{"id": 12, "date": [2024, 5, 1], "present": true, "student": {"id": 1, "name": "Anu"}}`)
	})
	c := newTestClient(t, mux)

	rec, err := c.SetAttendance(t.Context(), 12, true)
	require.NoError(t, err)
	assert.True(t, rec.Present)
	assert.Equal(t, timeutil.NewDate(2024, time.May, 1), rec.Date)
	assert.Equal(t, "Anu", rec.StudentName())
}

func TestClient_NotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/students/404", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusNotFound, APIErrorDTO{Status: 404, Message: "Student not found"})
	})
	c := newTestClient(t, mux)

	_, err := c.GetStudent(t.Context(), 404)
	require.Error(t, err)

	assert.ErrorIs(t, err, roster.ErrStudentNotFound)
	assert.True(t, shared.IsNotFound(err))
	assert.Contains(t, err.Error(), "Student not found")
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, c.Available())
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/courses", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = io.WriteString(w, `[{"id": 1, "name": "Physics", "subjects": [{"id": 1, "name": "English"}, {"id": 2, "name": "Tamil"}]}]`)
	})
	c := newTestClient(t, mux)

	courses, err := c.ListCourses(t.Context())
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, []string{"English", "Tamil"}, courses[0].SubjectNames())
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/attendance", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, `[{"id": 1, "date": "2024-05-01", "present": false, "student": null}]`)
	})
	c := newTestClient(t, mux)

	records, err := c.ListAttendance(t.Context())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Nil(t, records[0].Student)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_BreakerOpensOnTransientFailures(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/students", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	c := newTestClient(t, mux, func(cfg *ClientConfig) {
		cfg.MaxAttempts = 1
		cfg.BreakerFailureThreshold = 2
		cfg.BreakerOpenTimeout = time.Hour
	})

	for range 2 {
		_, err := c.ListStudents(t.Context())
		require.Error(t, err)
		assert.True(t, shared.IsExternalService(err))
	}
	assert.False(t, c.Available())

	_, err := c.ListStudents(t.Context())
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
	assert.Equal(t, int32(2), calls.Load())

	c.Reset()
	assert.True(t, c.Available())
}

func TestClient_InvalidJSON(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/students", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"not": "a list"}`)
	})
	c := newTestClient(t, mux)

	_, err := c.ListStudents(t.Context())
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrSMSAPIInvalidResponse)
}

func TestClient_CreateCourse(t *testing.T) {
	var body CourseRequestDTO
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/courses", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusCreated, CourseDTO{ID: 4, Name: body.Name, Subjects: []SubjectDTO{
			{ID: 1, Name: "English"}, {ID: 2, Name: "Tamil"}, {ID: 3, Name: "Algebra"}, {ID: 4, Name: "Optics"}, {ID: 5, Name: "Waves"},
		}})
	})
	c := newTestClient(t, mux)

	course, err := c.CreateCourse(t.Context(), "Physics", []string{"Algebra", "Optics", "Waves"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Algebra", "Optics", "Waves"}, body.Subjects)
	assert.Equal(t, "Optics, Waves, ...", course.Preview())
}
