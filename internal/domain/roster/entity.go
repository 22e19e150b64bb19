package roster

import (
	"strings"

	"github.com/sms-hub/sms-dashboard/internal/domain/shared"
	"github.com/sms-hub/sms-dashboard/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// IDENTIFIERS
// ══════════════════════════════════════════════════════════════════════════════

type (
	StudentID    int64
	CourseID     int64
	SubjectID    int64
	AttendanceID int64
	MarkID       int64
)

// IsValid reports whether the id was assigned by the records service.
func (id StudentID) IsValid() bool { return id > 0 }

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Lifecycle is the enrolment state of a student.
type Lifecycle string

const (
	LifecycleActive  Lifecycle = "active"
	LifecycleEvicted Lifecycle = "evicted"
)

// EvictionMarker is the text the records service keeps in a student's name to flag eviction.
const EvictionMarker = "(evicted)"

func (l Lifecycle) IsValid() bool {
	return l == LifecycleActive || l == LifecycleEvicted
}

// ParseWireName splits a stored name into the clean name and the lifecycle it encodes.
// The marker is detected anywhere in the name.
func ParseWireName(raw string) (string, Lifecycle) {
	if !strings.Contains(raw, EvictionMarker) {
		return strings.TrimSpace(raw), LifecycleActive
	}
	clean := strings.ReplaceAll(raw, EvictionMarker, "")
	return strings.TrimSpace(clean), LifecycleEvicted
}

func wireName(name string, lifecycle Lifecycle) string {
	if lifecycle == LifecycleEvicted {
		return name + " " + EvictionMarker
	}
	return name
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT
// ══════════════════════════════════════════════════════════════════════════════

// Student is a roster entry. Name never contains the eviction marker.
type Student struct {
	ID        StudentID
	Name      string
	Email     string
	Course    *Course
	Lifecycle Lifecycle
}

// IsEvicted reports whether the student is excluded from rankings and editing.
func (s Student) IsEvicted() bool {
	return s.Lifecycle == LifecycleEvicted
}

// DisplayName is the name shown to operators.
func (s Student) DisplayName() string {
	return s.Name
}

// WireName is the name as the records service stores it.
func (s Student) WireName() string {
	return wireName(s.Name, s.Lifecycle)
}

// Department returns the course name, or false when no course is assigned.
func (s Student) Department() (string, bool) {
	if s.Course == nil {
		return "", false
	}
	return s.Course.Name, true
}

// Draft returns the writable fields of s.
func (s Student) Draft() StudentDraft {
	d := StudentDraft{Name: s.Name, Email: s.Email, Lifecycle: s.Lifecycle}
	if s.Course != nil {
		id := s.Course.ID
		d.CourseID = &id
	}
	return d
}

// Evict returns the draft that marks s as evicted.
func (s Student) Evict() (StudentDraft, error) {
	if s.IsEvicted() {
		return StudentDraft{}, ErrAlreadyEvicted
	}
	d := s.Draft()
	d.Lifecycle = LifecycleEvicted
	return d, nil
}

// StudentDraft is the body of a create or update call.
type StudentDraft struct {
	Name      string
	Email     string
	CourseID  *CourseID
	Lifecycle Lifecycle
}

// WireName is the name as it must be sent to the records service.
func (d StudentDraft) WireName() string {
	return wireName(strings.TrimSpace(d.Name), d.Lifecycle)
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE
// ══════════════════════════════════════════════════════════════════════════════

// AttendanceRecord is one student's presence on one calendar day.
// Student may be nil when the records service returns a dangling record.
type AttendanceRecord struct {
	ID      AttendanceID
	Date    timeutil.Date
	Present bool
	Student *Student
}

// StudentID returns the owning student's id, or false for a dangling record.
func (r AttendanceRecord) StudentID() (StudentID, bool) {
	if r.Student == nil {
		return 0, false
	}
	return r.Student.ID, true
}

// StudentName returns the owning student's display name, or "".
func (r AttendanceRecord) StudentName() string {
	if r.Student == nil {
		return ""
	}
	return r.Student.DisplayName()
}

// Department returns the course name reached through the student.
func (r AttendanceRecord) Department() (string, bool) {
	if r.Student == nil {
		return "", false
	}
	return r.Student.Department()
}

// ══════════════════════════════════════════════════════════════════════════════
// MARKS
// ══════════════════════════════════════════════════════════════════════════════

const (
	MinMark = 0
	MaxMark = 100
)

// ValidMark reports whether v is a mark the records service accepts.
func ValidMark(v int) bool {
	return v >= MinMark && v <= MaxMark
}

// MarkEntry is a student's result in one subject. Marks is nil when ungraded.
// MarkID is nil when the records service has no mark row yet.
type MarkEntry struct {
	MarkID      *MarkID
	SubjectID   SubjectID
	SubjectName string
	Marks       *int
}

// Value returns the mark, treating ungraded as 0.
func (e MarkEntry) Value() int {
	if e.Marks == nil {
		return 0
	}
	return *e.Marks
}

// IsGraded reports whether a mark has been entered.
func (e MarkEntry) IsGraded() bool {
	return e.Marks != nil
}

// Clone returns a copy that shares no pointers with e.
func (e MarkEntry) Clone() MarkEntry {
	out := MarkEntry{SubjectID: e.SubjectID, SubjectName: e.SubjectName}
	if e.MarkID != nil {
		id := *e.MarkID
		out.MarkID = &id
	}
	if e.Marks != nil {
		v := *e.Marks
		out.Marks = &v
	}
	return out
}

// MarksDetail groups a student's mark entries, one per subject of the course, in course order.
type MarksDetail struct {
	StudentID   StudentID
	StudentName string
	CourseName  string
	Entries     []MarkEntry
}

// Clone returns a deep copy of d.
func (d MarksDetail) Clone() MarksDetail {
	out := d
	out.Entries = make([]MarkEntry, len(d.Entries))
	for i, e := range d.Entries {
		out.Entries[i] = e.Clone()
	}
	return out
}

// MarkUpdate is one element of a bulk marks write. A nil MarkID creates the mark.
type MarkUpdate struct {
	MarkID    *MarkID
	StudentID StudentID
	SubjectID SubjectID
	Marks     int
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	ErrStudentNotFound    = shared.NewDomainError("roster", "FindStudent", shared.ErrNotFound, "student not found")
	ErrCourseNotFound     = shared.NewDomainError("roster", "FindCourse", shared.ErrNotFound, "course not found")
	ErrAttendanceNotFound = shared.NewDomainError("roster", "FindAttendance", shared.ErrNotFound, "attendance record not found")
	ErrAlreadyEvicted     = shared.NewDomainError("roster", "Evict", shared.ErrStateTransition, "student is already evicted")
	ErrEvictedReadOnly    = shared.NewDomainError("roster", "Edit", shared.ErrInvalidState, "evicted students cannot be edited")
	ErrInvalidStudentID   = shared.NewDomainError("roster", "Validate", shared.ErrInvalidID, "student id must be positive")
)

// Ptr returns a pointer to v. Handy for optional ids and marks.
func Ptr[T any](v T) *T {
	return &v
}
