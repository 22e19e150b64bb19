package http

import (
	"net/http"

	"github.com/sms-hub/sms-dashboard/internal/application/command"
	"github.com/sms-hub/sms-dashboard/internal/application/query"
	"github.com/sms-hub/sms-dashboard/internal/domain/roster"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENTS
// ══════════════════════════════════════════════════════════════════════════════

// handleListStudents serves the roster.
// Query: department, sort (name|email|department), dir (asc|desc), hide_evicted.
func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	if s.deps.ListStudents == nil {
		writeNotConfigured(w, r)
		return
	}

	hide, _, err := queryBool(r, "hide_evicted")
	if respondBadRequest(w, r, err) {
		return
	}

	q := r.URL.Query()
	result, err := s.deps.ListStudents.Handle(r.Context(), query.ListStudentsQuery{
		Department:  q.Get("department"),
		Sort:        q.Get("sort"),
		Direction:   q.Get("dir"),
		HideEvicted: hide,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{TotalCount: result.Count})
}

func (s *Server) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetStudentDetails == nil {
		writeNotConfigured(w, r)
		return
	}

	id, err := pathInt64(r, "id")
	if respondBadRequest(w, r, err) {
		return
	}

	result, err := s.deps.GetStudentDetails.Handle(r.Context(), query.GetStudentDetailsQuery{
		StudentID: roster.StudentID(id),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

func (s *Server) handleCreateStudent(w http.ResponseWriter, r *http.Request) {
	if s.deps.CreateStudent == nil {
		writeNotConfigured(w, r)
		return
	}

	var cmd command.CreateStudentCommand
	if err := s.decodeJSON(w, r, &cmd, false); respondBadRequest(w, r, err) {
		return
	}

	result, err := s.deps.CreateStudent.Handle(r.Context(), cmd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, result)
}

func (s *Server) handleUpdateStudent(w http.ResponseWriter, r *http.Request) {
	if s.deps.UpdateStudent == nil {
		writeNotConfigured(w, r)
		return
	}

	id, err := pathInt64(r, "id")
	if respondBadRequest(w, r, err) {
		return
	}
	var cmd command.UpdateStudentCommand
	if err := s.decodeJSON(w, r, &cmd, false); respondBadRequest(w, r, err) {
		return
	}
	cmd.StudentID = roster.StudentID(id)

	result, err := s.deps.UpdateStudent.Handle(r.Context(), cmd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

func (s *Server) handleEvictStudent(w http.ResponseWriter, r *http.Request) {
	if s.deps.EvictStudent == nil {
		writeNotConfigured(w, r)
		return
	}

	id, err := pathInt64(r, "id")
	if respondBadRequest(w, r, err) {
		return
	}

	result, err := s.deps.EvictStudent.Handle(r.Context(), command.EvictStudentCommand{
		StudentID: roster.StudentID(id),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handleGetJournal lists committed edits of a student. Query: limit.
func (s *Server) handleGetJournal(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetJournal == nil {
		writeNotConfigured(w, r)
		return
	}

	id, err := pathInt64(r, "id")
	if respondBadRequest(w, r, err) {
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if respondBadRequest(w, r, err) {
		return
	}

	result, err := s.deps.GetJournal.Handle(r.Context(), query.GetJournalQuery{
		StudentID: roster.StudentID(id),
		Limit:     limit,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{TotalCount: len(result.Entries)})
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE
// ══════════════════════════════════════════════════════════════════════════════

// handleListAttendance serves attendance records.
// Query: date (YYYY-MM-DD), department, sort, dir.
func (s *Server) handleListAttendance(w http.ResponseWriter, r *http.Request) {
	if s.deps.ListAttendance == nil {
		writeNotConfigured(w, r)
		return
	}

	q := r.URL.Query()
	result, err := s.deps.ListAttendance.Handle(r.Context(), query.ListAttendanceQuery{
		Date:       q.Get("date"),
		Department: q.Get("department"),
		Sort:       q.Get("sort"),
		Direction:  q.Get("dir"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handleUpdateAttendance sets presence. Query: present (required).
func (s *Server) handleUpdateAttendance(w http.ResponseWriter, r *http.Request) {
	if s.deps.UpdateAttendance == nil {
		writeNotConfigured(w, r)
		return
	}

	id, err := pathInt64(r, "id")
	if respondBadRequest(w, r, err) {
		return
	}
	present, ok, err := queryBool(r, "present")
	if respondBadRequest(w, r, err) {
		return
	}
	if !ok {
		writeJSONError(w, r, http.StatusBadRequest, "bad_request", "present is required")
		return
	}

	result, err := s.deps.UpdateAttendance.Handle(r.Context(), command.UpdateAttendanceCommand{
		AttendanceID: roster.AttendanceID(id),
		Present:      present,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// MARKS & COURSES
// ══════════════════════════════════════════════════════════════════════════════

// handleListMarks serves per-student totals. Query: department, sort, dir.
func (s *Server) handleListMarks(w http.ResponseWriter, r *http.Request) {
	if s.deps.ListMarks == nil {
		writeNotConfigured(w, r)
		return
	}

	q := r.URL.Query()
	result, err := s.deps.ListMarks.Handle(r.Context(), query.ListMarksQuery{
		Department: q.Get("department"),
		Sort:       q.Get("sort"),
		Direction:  q.Get("dir"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	if s.deps.ListCourses == nil {
		writeNotConfigured(w, r)
		return
	}

	result, err := s.deps.ListCourses.Handle(r.Context(), query.ListCoursesQuery{})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

func (s *Server) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	if s.deps.CreateCourse == nil {
		writeNotConfigured(w, r)
		return
	}

	var cmd command.CreateCourseCommand
	if err := s.decodeJSON(w, r, &cmd, false); respondBadRequest(w, r, err) {
		return
	}

	result, err := s.deps.CreateCourse.Handle(r.Context(), cmd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, result)
}
