package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sms-hub/sms-dashboard/internal/domain/editsession"
	"github.com/sms-hub/sms-dashboard/internal/domain/roster"
	"github.com/sms-hub/sms-dashboard/pkg/retry"
)

// JournalRepository implements editsession.Journal using PostgreSQL.
type JournalRepository struct {
	db      Querier
	retrier *retry.Retrier
}

// NewJournalRepository creates a new JournalRepository. Transient failures
// of Append are retried.
func NewJournalRepository(db Querier, opts ...retry.Option) *JournalRepository {
	return &JournalRepository{
		db:      db,
		retrier: retry.DatabaseRetrier(append([]retry.Option{retry.WithRetryIf(IsTransient)}, opts...)...),
	}
}

// Append stores entry. Appending the same session twice is a no-op, which
// also makes a retried insert that already landed harmless.
func (r *JournalRepository) Append(ctx context.Context, entry editsession.JournalEntry) error {
	changes, err := encodeChanges(entry.Changes)
	if err != nil {
		return err
	}

	err = r.retrier.Do(ctx, func(ctx context.Context) error {
		_, err := r.db.Exec(ctx, `
			INSERT INTO mark_edit_journal (id, session_id, student_id, changes, total, committed_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, entry.ID, string(entry.SessionID), int64(entry.StudentID), changes, entry.Total, entry.CommittedAt.UTC())
		if IsUniqueViolation(err) {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("append journal entry: %w", err)
	}
	return nil
}

// ListByStudent returns the student's entries, newest first.
func (r *JournalRepository) ListByStudent(ctx context.Context, id roster.StudentID, limit int) ([]editsession.JournalEntry, error) {
	var lim any
	if limit > 0 {
		lim = limit
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, session_id, student_id, changes, total, committed_at
		FROM mark_edit_journal
		WHERE student_id = $1
		ORDER BY committed_at DESC, id
		LIMIT $2
	`, int64(id), lim)
	if err != nil {
		return nil, fmt.Errorf("list journal entries: %w", err)
	}
	defer rows.Close()

	var entries []editsession.JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list journal entries: %w", err)
	}
	return entries, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (editsession.JournalEntry, error) {
	var (
		e         editsession.JournalEntry
		sessionID string
		studentID int64
		changes   []byte
	)
	if err := row.Scan(&e.ID, &sessionID, &studentID, &changes, &e.Total, &e.CommittedAt); err != nil {
		return e, fmt.Errorf("scan journal entry: %w", err)
	}
	e.SessionID = editsession.ID(sessionID)
	e.StudentID = roster.StudentID(studentID)
	if err := json.Unmarshal(changes, &e.Changes); err != nil {
		return e, fmt.Errorf("decode journal changes: %w", err)
	}
	return e, nil
}

func encodeChanges(changes []editsession.Change) ([]byte, error) {
	if changes == nil {
		changes = []editsession.Change{}
	}
	data, err := json.Marshal(changes)
	if err != nil {
		return nil, fmt.Errorf("encode journal changes: %w", err)
	}
	return data, nil
}
