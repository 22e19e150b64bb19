package editsession

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/sms-hub/sms-dashboard/internal/domain/roster"
)

// DefaultTTL is how long an untouched session stays usable.
const DefaultTTL = 30 * time.Minute

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// TTL after the last touch. Zero means DefaultTTL.
	TTL time.Duration

	// NewID generates session ids.
	NewID func() string

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// Manager holds at most one edit session and any number of view sessions.
// A second edit replaces the first unless the first has unsaved input.
type Manager struct {
	mu     sync.Mutex
	ttl    time.Duration
	newID  func() string
	now    func() time.Time
	active *Session
	views  map[ID]*Session
}

// NewManager creates a Manager.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		var seq uint64
		var seqMu sync.Mutex
		cfg.NewID = func() string {
			seqMu.Lock()
			defer seqMu.Unlock()
			seq++
			return "session-" + strconv.FormatUint(seq, 10)
		}
	}
	return &Manager{
		ttl:   cfg.TTL,
		newID: cfg.NewID,
		now:   cfg.Now,
		views: make(map[ID]*Session),
	}
}

// Now returns the manager's clock reading.
func (m *Manager) Now() time.Time { return m.now() }

// OpenEdit starts the edit session for student. When the current edit session
// holds unsaved input the call fails with ErrSessionConflict unless force is set.
// A session that is being committed is never replaced.
// The replaced session, if any, is returned so callers can release its lock.
func (m *Manager) OpenEdit(student roster.Student, detail roster.MarksDetail, force bool) (*Session, *Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	prev := m.active
	if prev != nil && prev.State() == StateClosed {
		prev = nil
	}
	if prev != nil && prev.State() == StateCommitting {
		return nil, nil, ErrCommitting
	}
	if prev != nil && prev.IsDirty() && !force && !m.expiredLocked(prev, now) {
		return nil, nil, ErrSessionConflict
	}

	s, err := Open(ID(m.newID()), student, detail, now)
	if err != nil {
		return nil, nil, err
	}

	if prev != nil {
		prev.Close(now)
	}
	m.active = s
	return s, prev, nil
}

// OpenView starts a read-only session.
func (m *Manager) OpenView(student roster.Student, detail roster.MarksDetail) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := View(ID(m.newID()), student, detail, m.now())
	if err != nil {
		return nil, err
	}
	m.views[s.ID()] = s
	return s, nil
}

// Get returns an open session by id.
func (m *Manager) Get(id ID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.lookupLocked(id)
	if s == nil {
		return nil, ErrSessionNotFound
	}
	now := m.now()
	if m.expiredLocked(s, now) {
		m.dropLocked(s, now)
		return nil, ErrSessionExpired
	}
	return s, nil
}

// Active returns the open edit session, or nil.
func (m *Manager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil || m.active.State() == StateClosed {
		return nil
	}
	return m.active
}

// Close ends and forgets a session. Closing an unknown id is not an error.
func (m *Manager) Close(id ID) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.lookupLocked(id)
	if s == nil {
		return nil
	}
	m.dropLocked(s, m.now())
	return s
}

// Sweep closes every session idle past the TTL and returns them.
func (m *Manager) Sweep() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var expired []*Session
	if m.active != nil && m.expiredLocked(m.active, now) {
		expired = append(expired, m.active)
		m.dropLocked(m.active, now)
	}
	for _, s := range m.views {
		if m.expiredLocked(s, now) {
			expired = append(expired, s)
			m.dropLocked(s, now)
		}
	}
	return expired
}

// Len returns the number of tracked sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.views)
	if m.active != nil {
		n++
	}
	return n
}

func (m *Manager) lookupLocked(id ID) *Session {
	if m.active != nil && m.active.ID() == id {
		return m.active
	}
	return m.views[id]
}

// expiredLocked never expires a session that is being committed.
func (m *Manager) expiredLocked(s *Session, now time.Time) bool {
	return s.State() != StateCommitting && now.Sub(s.TouchedAt()) > m.ttl
}

func (m *Manager) dropLocked(s *Session, now time.Time) {
	s.Close(now)
	if m.active == s {
		m.active = nil
		return
	}
	delete(m.views, s.ID())
}

// IsSessionError reports whether err came from session lookup.
func IsSessionError(err error) bool {
	return errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrSessionExpired)
}
