package roster

import "strings"

// DefaultSubjects are added by the records service to every new course, ahead of
// the custom subjects.
var DefaultSubjects = []string{"English", "Tamil"}

// CustomSubjectCount is the number of subjects an operator supplies when creating a course.
const CustomSubjectCount = 3

// Subject belongs to exactly one course.
type Subject struct {
	ID   SubjectID
	Name string
}

// Course is a department. Subjects keep the order the records service returns.
type Course struct {
	ID       CourseID
	Name     string
	Subjects []Subject
}

// SubjectNames returns the subject names in course order.
func (c Course) SubjectNames() []string {
	names := make([]string, len(c.Subjects))
	for i, s := range c.Subjects {
		names[i] = s.Name
	}
	return names
}

// Preview summarises a course by its 4th and 5th subjects, the first custom
// subjects after the defaults. Courses with neither read "Less than 4 subjects".
func (c Course) Preview() string {
	var names []string
	for _, idx := range []int{3, 4} {
		if idx < len(c.Subjects) && c.Subjects[idx].Name != "" {
			names = append(names, c.Subjects[idx].Name)
		}
	}
	if len(names) == 0 {
		return "Less than 4 subjects"
	}
	return strings.Join(names, ", ") + ", ..."
}
