package ranking

import (
	"slices"

	"github.com/sms-hub/sms-dashboard/internal/domain/roster"
	"github.com/sms-hub/sms-dashboard/pkg/timeutil"
)

// FilterByDepartment keeps items whose course name equals department exactly.
// The match is case-sensitive. An empty department keeps everything, and items
// without a course never match a non-empty one.
func FilterByDepartment[T any](items []T, department string, departmentOf func(T) (string, bool)) []T {
	if department == "" {
		return slices.Clone(items)
	}
	out := make([]T, 0, len(items))
	for _, it := range items {
		if d, ok := departmentOf(it); ok && d == department {
			out = append(out, it)
		}
	}
	return out
}

// FilterByDate keeps attendance records taken on day. A zero day keeps everything.
func FilterByDate(records []roster.AttendanceRecord, day timeutil.Date) []roster.AttendanceRecord {
	if day.IsZero() {
		return slices.Clone(records)
	}
	out := make([]roster.AttendanceRecord, 0, len(records))
	for _, r := range records {
		if r.Date.Equal(day) {
			out = append(out, r)
		}
	}
	return out
}

// StudentDepartment adapts roster.Student for FilterByDepartment.
func StudentDepartment(s roster.Student) (string, bool) { return s.Department() }

// RecordDepartment adapts roster.AttendanceRecord for FilterByDepartment.
func RecordDepartment(r roster.AttendanceRecord) (string, bool) { return r.Department() }

// StudentKeys are the sort keys of the student list.
var StudentKeys = Keys[roster.Student]{
	KeyName:  func(s roster.Student) Value { return Text(s.DisplayName()) },
	KeyEmail: func(s roster.Student) Value { return Text(s.Email) },
	KeyDepartment: func(s roster.Student) Value {
		d, _ := s.Department()
		return Text(d)
	},
}

// AttendanceKeys are the sort keys of the attendance list.
var AttendanceKeys = Keys[roster.AttendanceRecord]{
	KeyName: func(r roster.AttendanceRecord) Value { return Text(r.StudentName()) },
	KeyDate: func(r roster.AttendanceRecord) Value { return Day(r.Date) },
	KeyDepartment: func(r roster.AttendanceRecord) Value {
		d, _ := r.Department()
		return Text(d)
	},
}
