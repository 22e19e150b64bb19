// Package refresh owns the dashboard snapshot: it fetches roster slices from the
// records service, recomputes aggregates and leader lists from scratch, and
// publishes the result only when no newer result for the same view got there first.
package refresh

import "sync"

// View names an independently refreshed slice of the dashboard.
type View string

const (
	ViewBoard      View = "board"
	ViewStudents   View = "students"
	ViewAttendance View = "attendance"
	ViewMarks      View = "marks"
)

// DataViews are the views backed by a fetch. The board is derived from them.
var DataViews = []View{ViewStudents, ViewAttendance, ViewMarks}

// Ticket is issued when a fetch for a view starts.
type Ticket struct {
	View       View
	Generation uint64
}

// Generations hands out per-view tickets and rejects results that arrive after
// a newer result for the same view was published.
type Generations struct {
	mu        sync.Mutex
	issued    map[View]uint64
	published map[View]uint64
	stale     map[View]uint64
}

// NewGenerations creates an empty counter set.
func NewGenerations() *Generations {
	return &Generations{
		issued:    make(map[View]uint64),
		published: make(map[View]uint64),
		stale:     make(map[View]uint64),
	}
}

// Begin issues the next ticket for view.
func (g *Generations) Begin(view View) Ticket {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.issued[view]++
	return Ticket{View: view, Generation: g.issued[view]}
}

// Publish records t as the latest published result of its view. It returns
// false, and counts the ticket as stale, when a newer ticket was already published.
func (g *Generations) Publish(t Ticket) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if t.Generation <= g.published[t.View] {
		g.stale[t.View]++
		return false
	}
	g.published[t.View] = t.Generation
	return true
}

// Current returns the last published generation of view.
func (g *Generations) Current(view View) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.published[view]
}

// Stale returns how many results of view were discarded.
func (g *Generations) Stale(view View) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stale[view]
}
