// Package editsession implements the bulk mark editing workflow: a working copy
// of one student's mark entries with per-field validation, blur coercion and a
// guarded commit.
//
// A session moves Closed → Loaded → Dirty/Invalid → Committing → Closed.
// While Committing the working copy is frozen. A failed write returns the
// session to Dirty; there is no partially saved state.
package editsession

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sms-hub/sms-dashboard/internal/domain/roster"
	"github.com/sms-hub/sms-dashboard/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// ID identifies a session.
type ID string

// Mode separates editable sessions from read-only inspection.
type Mode string

const (
	ModeEdit Mode = "edit"
	ModeView Mode = "view"
)

func (m Mode) IsValid() bool { return m == ModeEdit || m == ModeView }

// State is the observable state of a session.
type State string

const (
	StateClosed  State = "closed"
	StateLoaded  State = "loaded"
	StateDirty   State = "dirty"
	StateInvalid State = "invalid"

	// StateCommitting is held between PrepareCommit and Close or AbortCommit.
	StateCommitting State = "committing"
)

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	ErrStudentEvicted  = shared.NewDomainError("editsession", "Open", shared.ErrInvalidState, "evicted students cannot be edited")
	ErrDetailMismatch  = shared.NewDomainError("editsession", "Open", shared.ErrInvalidInput, "marks detail belongs to another student")
	ErrReadOnly        = shared.NewDomainError("editsession", "Edit", shared.ErrInvalidState, "session is view-only")
	ErrClosed          = shared.NewDomainError("editsession", "Edit", shared.ErrStateTransition, "session is closed")
	ErrFieldOutOfRange = shared.NewDomainError("editsession", "Edit", shared.ErrValueOutOfRange, "no such field")
	ErrCommitBlocked   = shared.NewDomainError("editsession", "Commit", shared.ErrValidation, "fields are invalid or empty")
	ErrCommitting      = shared.NewDomainError("editsession", "Commit", shared.ErrConflict, "a commit of this session is in progress")
	ErrSessionConflict = shared.NewDomainError("editsession", "Open", shared.ErrConflict, "another edit session has unsaved changes")
	ErrSessionNotFound = shared.NewDomainError("editsession", "Find", shared.ErrNotFound, "session not found")
	ErrSessionExpired  = shared.NewDomainError("editsession", "Find", shared.ErrExpired, "session expired")
)

// ══════════════════════════════════════════════════════════════════════════════
// FIELD
// ══════════════════════════════════════════════════════════════════════════════

// Field is the working state of one mark entry.
type Field struct {
	Entry roster.MarkEntry `json:"-"`

	// Input is the last raw text received, kept so an invalid value can be shown back.
	Input   string `json:"input"`
	Invalid bool   `json:"invalid"`
	Empty   bool   `json:"empty"`
}

// Blocked reports whether this field prevents a commit.
func (f Field) Blocked() bool {
	return f.Invalid || f.Empty
}

// Change is the before/after value of one subject, recorded on commit.
type Change struct {
	SubjectID   roster.SubjectID `json:"subject_id"`
	SubjectName string           `json:"subject_name"`
	MarkID      *roster.MarkID   `json:"mark_id,omitempty"`
	Before      *int             `json:"before"`
	After       int              `json:"after"`
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION
// ══════════════════════════════════════════════════════════════════════════════

// Session is an exclusively owned working copy of one student's marks.
type Session struct {
	mu sync.Mutex

	id       ID
	mode     Mode
	student  roster.Student
	course   string
	fields   []Field
	original []roster.MarkEntry

	dirty      bool
	committing bool
	closed     bool
	openedAt  time.Time
	touchedAt time.Time
}

// Open starts an edit session seeded from detail. Evicted students are refused.
func Open(id ID, student roster.Student, detail roster.MarksDetail, now time.Time) (*Session, error) {
	if student.IsEvicted() {
		return nil, ErrStudentEvicted
	}
	return newSession(id, ModeEdit, student, detail, now)
}

// View starts a read-only session. Evicted students can still be inspected.
func View(id ID, student roster.Student, detail roster.MarksDetail, now time.Time) (*Session, error) {
	return newSession(id, ModeView, student, detail, now)
}

func newSession(id ID, mode Mode, student roster.Student, detail roster.MarksDetail, now time.Time) (*Session, error) {
	if detail.StudentID != 0 && detail.StudentID != student.ID {
		return nil, ErrDetailMismatch
	}

	working := detail.Clone()
	fields := make([]Field, len(working.Entries))
	for i, e := range working.Entries {
		fields[i] = Field{Entry: e, Empty: e.Marks == nil}
		if e.Marks != nil {
			fields[i].Input = strconv.Itoa(*e.Marks)
		}
	}

	return &Session{
		id:        id,
		mode:      mode,
		student:   student,
		course:    detail.CourseName,
		fields:    fields,
		original:  detail.Clone().Entries,
		openedAt:  now,
		touchedAt: now,
	}, nil
}

func (s *Session) ID() ID                  { return s.id }
func (s *Session) Mode() Mode              { return s.mode }
func (s *Session) Student() roster.Student { return s.student }
func (s *Session) CourseName() string      { return s.course }
func (s *Session) OpenedAt() time.Time     { return s.openedAt }

// TouchedAt is the time of the last operation on the session.
func (s *Session) TouchedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touchedAt
}

// State derives the current state from the fields.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	switch {
	case s.closed:
		return StateClosed
	case s.committing:
		return StateCommitting
	case s.anyLocked(func(f Field) bool { return f.Invalid }):
		return StateInvalid
	case s.dirty:
		return StateDirty
	default:
		return StateLoaded
	}
}

// IsDirty reports whether the working copy has unsaved operator input.
func (s *Session) IsDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty && !s.closed
}

// Fields returns a copy of the working fields.
func (s *Session) Fields() []Field {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Field, len(s.fields))
	for i, f := range s.fields {
		out[i] = f
		out[i].Entry = f.Entry.Clone()
	}
	return out
}

// Total is the working total with empty fields counted as 0.
func (s *Session) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, f := range s.fields {
		total += f.Entry.Value()
	}
	return total
}

// Edit applies raw operator input to field index.
//
// Empty input clears the value and flags the field empty. Input that is not an
// integer in [0,100] flags the field invalid and leaves the stored value as it
// was. Valid input stores the value and clears both flags.
func (s *Session) Edit(index int, input string, now time.Time) (Field, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.fieldLocked(index)
	if err != nil {
		return Field{}, err
	}
	s.touchedAt = now
	s.dirty = true

	f.Input = input
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		f.Entry.Marks = nil
		f.Empty = true
		f.Invalid = false
		return *f, nil
	}

	v, convErr := strconv.Atoi(trimmed)
	if convErr != nil || !roster.ValidMark(v) {
		f.Invalid = true
		return *f, nil
	}

	f.Entry.Marks = &v
	f.Empty = false
	f.Invalid = false
	return *f, nil
}

// Blur coerces a field left without a value to 0.
func (s *Session) Blur(index int, now time.Time) (Field, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.fieldLocked(index)
	if err != nil {
		return Field{}, err
	}
	s.touchedAt = now

	if f.Entry.Marks == nil {
		zero := 0
		f.Entry.Marks = &zero
		f.Input = "0"
		f.Empty = false
		f.Invalid = false
		s.dirty = true
	}
	return *f, nil
}

func (s *Session) fieldLocked(index int) (*Field, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if s.mode != ModeEdit {
		return nil, ErrReadOnly
	}
	if s.committing {
		return nil, ErrCommitting
	}
	if index < 0 || index >= len(s.fields) {
		return nil, shared.WrapError("editsession", "Edit", shared.ErrValueOutOfRange,
			fmt.Sprintf("index %d of %d", index, len(s.fields)), ErrFieldOutOfRange)
	}
	return &s.fields[index], nil
}

// BlockingFields returns the indexes that prevent a commit.
func (s *Session) BlockingFields() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int
	for i, f := range s.fields {
		if f.Blocked() {
			out = append(out, i)
		}
	}
	return out
}

// PrepareCommit returns the bulk update payload, or ErrCommitBlocked when any
// field is invalid or empty. On success the session is Committing: edits and
// further commits fail with ErrCommitting until Close or AbortCommit.
func (s *Session) PrepareCommit() ([]roster.MarkUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if s.mode != ModeEdit {
		return nil, shared.WrapError("editsession", "Commit", shared.ErrInvalidState, "view-only session", ErrReadOnly)
	}
	if s.committing {
		return nil, ErrCommitting
	}
	if s.anyLocked(Field.Blocked) {
		return nil, ErrCommitBlocked
	}

	updates := make([]roster.MarkUpdate, len(s.fields))
	for i, f := range s.fields {
		e := f.Entry.Clone()
		updates[i] = roster.MarkUpdate{
			MarkID:    e.MarkID,
			StudentID: s.student.ID,
			SubjectID: e.SubjectID,
			Marks:     e.Value(),
		}
	}
	s.committing = true
	return updates, nil
}

// AbortCommit reopens a Committing session after a failed write. The working
// copy is kept as it was.
func (s *Session) AbortCommit(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.committing {
		return
	}
	s.committing = false
	s.touchedAt = now
}

// Changes pairs every field with the value it was loaded with.
func (s *Session) Changes() []Change {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Change, len(s.fields))
	for i, f := range s.fields {
		c := Change{
			SubjectID:   f.Entry.SubjectID,
			SubjectName: f.Entry.SubjectName,
			After:       f.Entry.Value(),
		}
		if f.Entry.MarkID != nil {
			id := *f.Entry.MarkID
			c.MarkID = &id
		}
		if i < len(s.original) && s.original[i].Marks != nil {
			before := *s.original[i].Marks
			c.Before = &before
		}
		out[i] = c
	}
	return out
}

// Close ends the session after a successful commit or a cancel.
// The working copy is dropped.
func (s *Session) Close(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.dirty = false
	s.committing = false
	s.fields = nil
	s.touchedAt = now
}

func (s *Session) anyLocked(pred func(Field) bool) bool {
	for _, f := range s.fields {
		if pred(f) {
			return true
		}
	}
	return false
}
