package sms

import (
	"errors"
	"strings"

	"github.com/volatiletech/null/v8"

	"github.com/sms-hub/sms-dashboard/internal/domain/roster"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAPPER - DTO to Domain Entity transformations
// ══════════════════════════════════════════════════════════════════════════════

// ErrNilDTO is returned when a mapping is asked to convert nothing.
var ErrNilDTO = errors.New("sms: nil dto")

// Mapper converts between wire DTOs and roster entities. It is the only place
// that knows the eviction marker lives inside the student name.
type Mapper struct{}

// NewMapper creates a new Mapper instance.
func NewMapper() *Mapper {
	return &Mapper{}
}

// StudentFromDTO converts a StudentDTO, splitting the lifecycle out of the name.
func (m *Mapper) StudentFromDTO(dto *StudentDTO) (roster.Student, error) {
	if dto == nil {
		return roster.Student{}, ErrNilDTO
	}
	name, lifecycle := roster.ParseWireName(dto.Name)

	s := roster.Student{
		ID:        roster.StudentID(dto.ID),
		Name:      name,
		Email:     strings.TrimSpace(dto.Email),
		Lifecycle: lifecycle,
	}
	if dto.Course != nil {
		c := m.CourseFromDTO(*dto.Course)
		s.Course = &c
	}
	return s, nil
}

// StudentsFromDTOs converts a list, skipping nothing.
func (m *Mapper) StudentsFromDTOs(dtos []StudentDTO) []roster.Student {
	out := make([]roster.Student, 0, len(dtos))
	for i := range dtos {
		s, _ := m.StudentFromDTO(&dtos[i])
		out = append(out, s)
	}
	return out
}

// CourseFromDTO converts a course and keeps the subject order.
func (m *Mapper) CourseFromDTO(dto CourseDTO) roster.Course {
	c := roster.Course{
		ID:   roster.CourseID(dto.ID),
		Name: dto.Name,
	}
	if len(dto.Subjects) > 0 {
		c.Subjects = make([]roster.Subject, len(dto.Subjects))
		for i, sub := range dto.Subjects {
			c.Subjects[i] = roster.Subject{ID: roster.SubjectID(sub.ID), Name: sub.Name}
		}
	}
	return c
}

// CoursesFromDTOs converts a list of courses.
func (m *Mapper) CoursesFromDTOs(dtos []CourseDTO) []roster.Course {
	out := make([]roster.Course, len(dtos))
	for i, dto := range dtos {
		out[i] = m.CourseFromDTO(dto)
	}
	return out
}

// AttendanceFromDTO converts one record. A null student stays nil.
func (m *Mapper) AttendanceFromDTO(dto AttendanceDTO) roster.AttendanceRecord {
	r := roster.AttendanceRecord{
		ID:      roster.AttendanceID(dto.ID),
		Date:    dto.Date,
		Present: dto.Present,
	}
	if dto.Student != nil {
		s, _ := m.StudentFromDTO(dto.Student)
		r.Student = &s
	}
	return r
}

// AttendanceFromDTOs converts a list of records.
func (m *Mapper) AttendanceFromDTOs(dtos []AttendanceDTO) []roster.AttendanceRecord {
	out := make([]roster.AttendanceRecord, len(dtos))
	for i, dto := range dtos {
		out[i] = m.AttendanceFromDTO(dto)
	}
	return out
}

// MarksDetailFromDTO converts the details response. The student name is
// returned clean.
func (m *Mapper) MarksDetailFromDTO(dto *MarksDetailDTO) (roster.MarksDetail, error) {
	if dto == nil {
		return roster.MarksDetail{}, ErrNilDTO
	}
	name, _ := roster.ParseWireName(dto.StudentName)

	d := roster.MarksDetail{
		StudentID:   roster.StudentID(dto.StudentID),
		StudentName: name,
		CourseName:  dto.CourseName,
		Entries:     make([]roster.MarkEntry, len(dto.Marks)),
	}
	for i, row := range dto.Marks {
		e := roster.MarkEntry{
			SubjectID:   roster.SubjectID(row.SubjectID),
			SubjectName: row.SubjectName,
			Marks:       row.Marks.Ptr(),
		}
		if row.MarkID.Valid {
			id := roster.MarkID(row.MarkID.Int64)
			e.MarkID = &id
		}
		d.Entries[i] = e
	}
	return d, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN TO WIRE
// ══════════════════════════════════════════════════════════════════════════════

// StudentRequestFromDraft builds the create/update body. The name goes out in
// wire form so eviction survives the round trip.
func (m *Mapper) StudentRequestFromDraft(d roster.StudentDraft) StudentRequestDTO {
	req := StudentRequestDTO{
		Name:  d.WireName(),
		Email: strings.TrimSpace(d.Email),
	}
	if d.CourseID != nil {
		req.Course = &CourseRefDTO{ID: int64(*d.CourseID)}
	}
	return req
}

// MarkUpdatesToDTO builds the bulk marks payload.
func (m *Mapper) MarkUpdatesToDTO(updates []roster.MarkUpdate) []MarkUpdateDTO {
	out := make([]MarkUpdateDTO, len(updates))
	for i, u := range updates {
		dto := MarkUpdateDTO{
			StudentID: int64(u.StudentID),
			SubjectID: int64(u.SubjectID),
			Marks:     u.Marks,
		}
		if u.MarkID != nil {
			dto.MarkID = null.Int64From(int64(*u.MarkID))
		}
		out[i] = dto
	}
	return out
}
