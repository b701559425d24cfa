package assistant

import (
	"context"
	"sync"

	"github.com/medinexus/hms/internal/domain/access"
)

// Manager holds at most one session per actor.
type Manager struct {
	deps Deps

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(deps Deps) *Manager {
	return &Manager{
		deps:     deps.withDefaults(),
		sessions: make(map[string]*Session),
	}
}

// Open opens the actor's session, creating it on first use. Opening an
// already open session starts a new lifetime. A nil actor gets the generic
// greeting and shares the session stored under the empty ID.
func (m *Manager) Open(ctx context.Context, actor *access.Actor) *Session {
	var id string
	if actor != nil {
		id = actor.ID
	}

	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		s = NewSession(m.deps)
		m.sessions[id] = s
	}
	m.mu.Unlock()

	s.Open(ctx, actor)
	return s
}

// Get returns the actor's session if one was opened.
func (m *Manager) Get(actorID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[actorID]
	return s, ok
}

// Close closes and forgets the actor's session. It reports whether one
// existed.
func (m *Manager) Close(actorID string) bool {
	m.mu.Lock()
	s, ok := m.sessions[actorID]
	delete(m.sessions, actorID)
	m.mu.Unlock()

	if ok {
		s.Close()
	}
	return ok
}

// CloseAll closes every session, used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
