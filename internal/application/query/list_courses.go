package query

import (
	"context"
	"slices"
	"strings"

	"github.com/sms-hub/sms-dashboard/internal/domain/roster"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST COURSES QUERY
// ══════════════════════════════════════════════════════════════════════════════

// ListCoursesQuery has no parameters.
type ListCoursesQuery struct{}

// CourseDTO is a course with its subject preview.
type CourseDTO struct {
	ID       roster.CourseID `json:"id"`
	Name     string          `json:"name"`
	Subjects []string        `json:"subjects"`
	Preview  string          `json:"preview"`
	Students int             `json:"students"`
}

// ListCoursesResult lists courses by name.
type ListCoursesResult struct {
	Courses []CourseDTO `json:"courses"`
}

// ListCoursesHandler serves the course list.
type ListCoursesHandler struct {
	source SnapshotSource
}

// NewListCoursesHandler creates the handler.
func NewListCoursesHandler(source SnapshotSource) *ListCoursesHandler {
	return &ListCoursesHandler{source: source}
}

// Handle lists the published courses with their enrolment counts.
func (h *ListCoursesHandler) Handle(ctx context.Context, _ ListCoursesQuery) (*ListCoursesResult, error) {
	snap, err := loadSnapshot(ctx, h.source, "ListCourses")
	if err != nil {
		return nil, err
	}

	enrolled := make(map[roster.CourseID]int)
	for _, s := range snap.Students {
		if s.Course != nil && !s.IsEvicted() {
			enrolled[s.Course.ID]++
		}
	}

	courses := make([]CourseDTO, len(snap.Courses))
	for i, c := range snap.Courses {
		courses[i] = ToCourseDTO(c)
		courses[i].Students = enrolled[c.ID]
	}
	slices.SortStableFunc(courses, func(a, b CourseDTO) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})

	return &ListCoursesResult{Courses: courses}, nil
}

// ToCourseDTO converts a course for presentation.
func ToCourseDTO(c roster.Course) CourseDTO {
	return CourseDTO{
		ID:       c.ID,
		Name:     c.Name,
		Subjects: c.SubjectNames(),
		Preview:  c.Preview(),
	}
}
