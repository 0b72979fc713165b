package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Manager owns the live sessions of a process.
type Manager struct {
	gen      Generator
	defaults []Option

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates sessions that use gen and, unless overridden per call,
// the given default options.
func NewManager(gen Generator, defaults ...Option) *Manager {
	return &Manager{
		gen:      gen,
		defaults: defaults,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session against target.
func (m *Manager) Create(target Target, opts ...Option) *Session {
	all := append(append([]Option(nil), m.defaults...), opts...)
	s := New(target, m.gen, all...)

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	log.Info().Str("session_id", s.id).Str("graph_id", target.GraphID).Msg("Session created")
	return s
}

// Once runs a single turn on an unregistered session seeded with history.
// Nothing is recorded.
func (m *Manager) Once(ctx context.Context, target Target, history []Message, text string) (Message, error) {
	all := append(append([]Option(nil), m.defaults...), WithHistory(history))
	s := New(target, m.gen, all...)
	s.recorder = nil
	defer s.Close()
	return s.Submit(ctx, text)
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Close destroys a session.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	s.Close()
	log.Info().Str("session_id", id).Msg("Session closed")
	return nil
}

// CloseGraph destroys every session bound to graphID and reports how many
// were closed.
func (m *Manager) CloseGraph(graphID string) int {
	if graphID == "" {
		return 0
	}

	m.mu.Lock()
	var doomed []*Session
	for id, s := range m.sessions {
		if s.target.GraphID == graphID {
			doomed = append(doomed, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range doomed {
		s.Close()
	}
	if len(doomed) > 0 {
		log.Info().Str("graph_id", graphID).Int("count", len(doomed)).Msg("Closed sessions of deleted graph")
	}
	return len(doomed)
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
