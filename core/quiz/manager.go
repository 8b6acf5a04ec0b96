package quiz

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultIdleTimeout is how long a session may go untouched before a Manager drops it.
const DefaultIdleTimeout = time.Hour

// Entry is a session registered in a Manager.
type Entry struct {
	ID          string
	Owner       string
	CourseID    string
	CourseTitle string
	Session     *Session
}

type trackedEntry struct {
	Entry
	lastUsed time.Time
}

// Manager keeps the live sessions of every user, keyed by a random ID.
// A user has at most one session per course, and idle sessions are dropped.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*trackedEntry
	opts     []Option
	idle     time.Duration
	now      func() time.Time
}

func NewManager(opts ...Option) *Manager {
	return &Manager{
		sessions: make(map[string]*trackedEntry),
		opts:     opts,
		idle:     DefaultIdleTimeout,
		now:      time.Now,
	}
}

// SetIdleTimeout changes how long sessions may stay untouched; d <= 0 keeps the default.
func (m *Manager) SetIdleTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultIdleTimeout
	}
	m.mu.Lock()
	m.idle = d
	m.mu.Unlock()
}

// Create registers a new session over questions for owner. It replaces the previous session
// of owner for the same course.
func (m *Manager) Create(owner, courseID, courseTitle string, questions []Question) Entry {
	entry := Entry{
		ID:          uuid.New().String(),
		Owner:       owner,
		CourseID:    courseID,
		CourseTitle: courseTitle,
		Session:     NewSession(questions, m.opts...),
	}

	m.mu.Lock()
	now := m.now()
	var dropped []*Session
	for id, te := range m.sessions {
		replaced := te.Owner == owner && te.CourseID == courseID
		if replaced || now.Sub(te.lastUsed) > m.idle {
			delete(m.sessions, id)
			dropped = append(dropped, te.Session)
		}
	}
	m.sessions[entry.ID] = &trackedEntry{Entry: entry, lastUsed: now}
	m.mu.Unlock()

	for _, s := range dropped {
		s.Close()
	}
	return entry
}

// Get returns the session id of owner. Sessions of other users are reported as missing.
func (m *Manager) Get(id, owner string) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	te, ok := m.sessions[id]
	if !ok || te.Owner != owner {
		return Entry{}, ErrSessionNotFound
	}
	te.lastUsed = m.now()
	return te.Entry, nil
}

// Remove closes and forgets the session id of owner.
func (m *Manager) Remove(id, owner string) error {
	m.mu.Lock()
	te, ok := m.sessions[id]
	if !ok || te.Owner != owner {
		m.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	m.mu.Unlock()

	te.Session.Close()
	return nil
}

// Close closes every session.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*trackedEntry)
	m.mu.Unlock()

	for _, te := range sessions {
		te.Session.Close()
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
