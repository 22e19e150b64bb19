package ranking

import (
	"time"

	"github.com/sms-hub/sms-dashboard/internal/domain/roster"
)

// Leader list names, as used in logs and movement reports.
const (
	ListPerformers = "top_performers"
	ListAttenders  = "top_attenders"
	ListScorers    = "top_scorers"
)

// Board is the published result of one refresh generation.
type Board struct {
	Generation    uint64     `json:"generation"`
	GeneratedAt   time.Time  `json:"generated_at"`
	TopPerformers []Standing `json:"top_performers"`
	TopAttenders  []Standing `json:"top_attenders"`
	TopScorers    []Standing `json:"top_scorers"`
	StudentCount  int        `json:"student_count"`
	EvictedCount  int        `json:"evicted_count"`

	// Degraded lists the slices that failed to load for this generation.
	Degraded []string `json:"degraded,omitempty"`
}

// IsEmpty reports whether no leader list has entries.
func (b *Board) IsEmpty() bool {
	return b == nil || len(b.TopPerformers)+len(b.TopAttenders)+len(b.TopScorers) == 0
}

// ListChange describes how one leader list moved between two boards.
type ListChange struct {
	Entered []roster.StudentID
	Left    []roster.StudentID
}

// HasChanges reports whether anyone entered or left.
func (c ListChange) HasChanges() bool {
	return len(c.Entered) > 0 || len(c.Left) > 0
}

// CompareLists returns who entered and who left between prev and next.
func CompareLists(prev, next []Standing) ListChange {
	before := make(map[roster.StudentID]struct{}, len(prev))
	for _, s := range prev {
		before[s.StudentID] = struct{}{}
	}
	after := make(map[roster.StudentID]struct{}, len(next))
	for _, s := range next {
		after[s.StudentID] = struct{}{}
	}

	var c ListChange
	for _, s := range next {
		if _, ok := before[s.StudentID]; !ok {
			c.Entered = append(c.Entered, s.StudentID)
		}
	}
	for _, s := range prev {
		if _, ok := after[s.StudentID]; !ok {
			c.Left = append(c.Left, s.StudentID)
		}
	}
	return c
}

// Movement compares every leader list of b against prev and returns the
// lists that changed, keyed by list name. A nil prev counts as empty.
func (b *Board) Movement(prev *Board) map[string]ListChange {
	if prev == nil {
		prev = &Board{}
	}
	if b == nil {
		b = &Board{}
	}
	out := make(map[string]ListChange)
	for name, pair := range map[string][2][]Standing{
		ListPerformers: {prev.TopPerformers, b.TopPerformers},
		ListAttenders:  {prev.TopAttenders, b.TopAttenders},
		ListScorers:    {prev.TopScorers, b.TopScorers},
	} {
		if c := CompareLists(pair[0], pair[1]); c.HasChanges() {
			out[name] = c
		}
	}
	return out
}
