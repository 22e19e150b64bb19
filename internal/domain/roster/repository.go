package roster

import "context"

// ══════════════════════════════════════════════════════════════════════════════
// RECORDS SERVICE INTERFACES
// Implemented by infrastructure/external/sms.
// ══════════════════════════════════════════════════════════════════════════════

// Reader fetches roster snapshots from the records service.
type Reader interface {
	ListStudents(ctx context.Context) ([]Student, error)
	GetStudent(ctx context.Context, id StudentID) (*Student, error)

	ListCourses(ctx context.Context) ([]Course, error)
	GetCourse(ctx context.Context, id CourseID) (*Course, error)

	// ListAttendance returns every attendance record of every student.
	ListAttendance(ctx context.Context) ([]AttendanceRecord, error)
	StudentAttendance(ctx context.Context, id StudentID) ([]AttendanceRecord, error)

	// MarksDetail returns one entry per subject of the student's course.
	MarksDetail(ctx context.Context, id StudentID) (*MarksDetail, error)

	// TotalMarks is the service-side sum of the student's marks.
	TotalMarks(ctx context.Context, id StudentID) (int, error)
}

// Writer sends mutations to the records service.
type Writer interface {
	CreateStudent(ctx context.Context, draft StudentDraft) (*Student, error)
	UpdateStudent(ctx context.Context, id StudentID, draft StudentDraft) (*Student, error)

	// CreateCourse sends the custom subjects only. DefaultSubjects are added server-side.
	CreateCourse(ctx context.Context, name string, subjects []string) (*Course, error)

	SetAttendance(ctx context.Context, id AttendanceID, present bool) (*AttendanceRecord, error)

	UpdateMarks(ctx context.Context, updates []MarkUpdate) error
}
