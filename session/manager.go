package session

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rustyeddy/regimetrader/analytics"
)

// Manager is a registry of independent sessions keyed by symbol|timeframe.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Add registers s. Two sessions may not share a stream key.
func (m *Manager) Add(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := s.Key()
	if _, ok := m.sessions[key]; ok {
		return fmt.Errorf("session %s already registered", key)
	}
	m.sessions[key] = s
	return nil
}

// Get looks a session up by its stream key.
func (m *Manager) Get(key string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[key]
	return s, ok
}

// Remove stops and unregisters the session for key.
func (m *Manager) Remove(key string) (analytics.Summary, bool) {
	m.mu.Lock()
	s, ok := m.sessions[key]
	delete(m.sessions, key)
	m.mu.Unlock()

	if !ok {
		return analytics.Summary{}, false
	}
	return s.Close(), true
}

// Sessions returns the registered sessions ordered by key.
func (m *Manager) Sessions() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Keys lists registered stream keys in order.
func (m *Manager) Keys() []string {
	ss := m.Sessions()
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = s.Key()
	}
	return out
}

// CloseAll stops every session and returns their summaries by key.
func (m *Manager) CloseAll() map[string]analytics.Summary {
	out := make(map[string]analytics.Summary)
	for _, s := range m.Sessions() {
		out[s.Key()] = s.Close()
	}
	return out
}
