// Package ranking orders, filters and selects the leaders of roster collections.
// Functions never modify their input slices.
package ranking

import (
	"cmp"
	"slices"

	"github.com/sms-hub/sms-dashboard/internal/domain/roster"
)

// TopN is the size of every leader list on the dashboard.
const TopN = 3

// Rank returns the topN highest-scoring items in descending score order, after
// dropping the items for which exclude returns true. Equal scores keep their
// input order. topN <= 0 returns every eligible item. The result is never padded.
func Rank[T any](items []T, exclude func(T) bool, score func(T) float64, topN int) []T {
	type scored struct {
		item  T
		score float64
	}

	eligible := make([]scored, 0, len(items))
	for _, it := range items {
		if exclude != nil && exclude(it) {
			continue
		}
		eligible = append(eligible, scored{item: it, score: score(it)})
	}

	slices.SortStableFunc(eligible, func(a, b scored) int {
		return cmp.Compare(b.score, a.score)
	})

	if topN > 0 && len(eligible) > topN {
		eligible = eligible[:topN]
	}

	out := make([]T, len(eligible))
	for i, s := range eligible {
		out[i] = s.item
	}
	return out
}

// IsEvicted is the lifecycle exclusion rule for rankings.
func IsEvicted(s roster.Student) bool {
	return s.IsEvicted()
}

// Standing is one row of a leader list.
type Standing struct {
	Position   int              `json:"position"`
	StudentID  roster.StudentID `json:"student_id"`
	Name       string           `json:"name"`
	Department string           `json:"department,omitempty"`
	Score      float64          `json:"score"`
}

// Standings numbers ranked items from 1 in their given order.
func Standings[T any](ranked []T, describe func(T) Standing) []Standing {
	out := make([]Standing, len(ranked))
	for i, it := range ranked {
		s := describe(it)
		s.Position = i + 1
		out[i] = s
	}
	return out
}
