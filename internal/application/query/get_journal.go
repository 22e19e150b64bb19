package query

import (
	"context"

	"github.com/sms-hub/sms-dashboard/internal/domain/editsession"
	"github.com/sms-hub/sms-dashboard/internal/domain/roster"
	"github.com/sms-hub/sms-dashboard/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET JOURNAL QUERY
// Committed edit history of one student.
// ══════════════════════════════════════════════════════════════════════════════

// GetJournalQuery selects a student's history.
type GetJournalQuery struct {
	StudentID roster.StudentID

	// Limit defaults to 20, maximum 100.
	Limit int
}

// Validate checks the id and clamps the limit.
func (q *GetJournalQuery) Validate() error {
	if !q.StudentID.IsValid() {
		return roster.ErrInvalidStudentID
	}
	if q.Limit <= 0 {
		q.Limit = 20
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	return nil
}

// GetJournalResult is the history, newest first.
type GetJournalResult struct {
	StudentID roster.StudentID           `json:"student_id"`
	Entries   []editsession.JournalEntry `json:"entries"`
	Enabled   bool                       `json:"enabled"`
}

// GetJournalHandler reads the edit journal.
type GetJournalHandler struct {
	journal editsession.Journal
}

// NewGetJournalHandler creates the handler. A nil journal reports the feature disabled.
func NewGetJournalHandler(journal editsession.Journal) *GetJournalHandler {
	return &GetJournalHandler{journal: journal}
}

// Handle lists journal entries.
func (h *GetJournalHandler) Handle(ctx context.Context, q GetJournalQuery) (*GetJournalResult, error) {
	if err := q.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetJournal", shared.ErrValidation, err.Error(), err)
	}

	result := &GetJournalResult{StudentID: q.StudentID, Entries: []editsession.JournalEntry{}}
	if h.journal == nil {
		return result, nil
	}
	result.Enabled = true

	entries, err := h.journal.ListByStudent(ctx, q.StudentID, q.Limit)
	if err != nil {
		return nil, shared.WrapError("query", "GetJournal", shared.ErrExternalService, "journal unavailable", err)
	}
	if entries != nil {
		result.Entries = entries
	}
	return result, nil
}
