// Package sms implements the client for the remote student-records API.
// This package handles all communication with the records service: fetching
// students, courses, attendance and marks, and sending roster mutations.
package sms

import (
	"fmt"

	"github.com/volatiletech/null/v8"

	"github.com/sms-hub/sms-dashboard/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROSTER DTOs
// ══════════════════════════════════════════════════════════════════════════════

// SubjectDTO is a subject as returned inside a course.
type SubjectDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CourseDTO is a course. Subjects may be omitted when the course is embedded
// in a student.
type CourseDTO struct {
	ID       int64        `json:"id"`
	Name     string       `json:"name"`
	Subjects []SubjectDTO `json:"subjects,omitempty"`
}

// StudentDTO is a student as the records service stores it.
// Name carries the eviction marker when the student is evicted.
type StudentDTO struct {
	ID     int64      `json:"id"`
	Name   string     `json:"name"`
	Email  string     `json:"email"`
	Course *CourseDTO `json:"course"`
}

// AttendanceDTO is one attendance row. Student is null for dangling records.
type AttendanceDTO struct {
	ID      int64         `json:"id"`
	Student *StudentDTO   `json:"student"`
	Date    timeutil.Date `json:"date"`
	Present bool          `json:"present"`
}

// ══════════════════════════════════════════════════════════════════════════════
// MARKS DTOs
// ══════════════════════════════════════════════════════════════════════════════

// SubjectMarkDTO is one row of the marks details response.
// Marks and MarkID are null when the subject has not been graded.
type SubjectMarkDTO struct {
	SubjectID   int64      `json:"subjectId"`
	SubjectName string     `json:"subjectName"`
	Marks       null.Int   `json:"marks"`
	MarkID      null.Int64 `json:"markId"`
}

// MarksDetailDTO is the response of GET /marks/student/{id}/details.
type MarksDetailDTO struct {
	StudentID   int64            `json:"studentId"`
	StudentName string           `json:"studentName"`
	CourseName  string           `json:"courseName"`
	Marks       []SubjectMarkDTO `json:"marks"`
}

// MarkUpdateDTO is one element of PUT /marks/bulk. A null MarkID creates the mark.
type MarkUpdateDTO struct {
	MarkID    null.Int64 `json:"markId"`
	StudentID int64      `json:"studentId"`
	SubjectID int64      `json:"subjectId"`
	Marks     int        `json:"marks"`
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST BODIES
// ══════════════════════════════════════════════════════════════════════════════

// CourseRefDTO references a course by id in a student body.
type CourseRefDTO struct {
	ID int64 `json:"id"`
}

// StudentRequestDTO is the body of POST /students and PUT /students/{id}.
type StudentRequestDTO struct {
	Name   string        `json:"name"`
	Email  string        `json:"email"`
	Course *CourseRefDTO `json:"course,omitempty"`
}

// CourseRequestDTO is the body of POST /courses. Only custom subjects are sent.
type CourseRequestDTO struct {
	Name     string   `json:"name"`
	Subjects []string `json:"subjects"`
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// APIErrorDTO is the error body Spring-style services return. Every field is optional.
type APIErrorDTO struct {
	Status  int    `json:"status,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
	Path    string `json:"path,omitempty"`
}

// Describe returns the most specific text in the body.
func (e APIErrorDTO) Describe() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Error != "":
		return e.Error
	default:
		return fmt.Sprintf("status %d", e.Status)
	}
}
