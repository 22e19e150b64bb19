package editsession

import (
	"context"
	"time"

	"github.com/sms-hub/sms-dashboard/internal/domain/roster"
)

// JournalEntry records one committed edit session.
type JournalEntry struct {
	ID          string           `json:"id"`
	SessionID   ID               `json:"session_id"`
	StudentID   roster.StudentID `json:"student_id"`
	Changes     []Change         `json:"changes"`
	Total       int              `json:"total"`
	CommittedAt time.Time        `json:"committed_at"`
}

// Journal is the append-only history of committed sessions.
type Journal interface {
	Append(ctx context.Context, entry JournalEntry) error

	// ListByStudent returns the newest entries first. limit <= 0 means no limit.
	ListByStudent(ctx context.Context, id roster.StudentID, limit int) ([]JournalEntry, error)
}

// NewJournalEntry captures a session's changes at commit time. Call it before Close.
func NewJournalEntry(id string, s *Session, at time.Time) JournalEntry {
	return JournalEntry{
		ID:          id,
		SessionID:   s.ID(),
		StudentID:   s.Student().ID,
		Changes:     s.Changes(),
		Total:       s.Total(),
		CommittedAt: at,
	}
}
