package state

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

var ErrStateNotFound = errors.New("session not found")

// Store is the session persistence contract used by the orchestrator.
type Store interface {
	Load(ctx context.Context, sessionID string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, sessionID string) error
}

// MemoryStore keeps sessions in process memory. Safe for concurrent use;
// sessions are stored by value reference, so the orchestrator remains the
// single writer for any one session.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (m *MemoryStore) Load(ctx context.Context, sessionID string) (*Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidSession
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrStateNotFound
	}
	return s, nil
}

func (m *MemoryStore) Save(ctx context.Context, s *Session) error {
	if s == nil {
		return errors.New("nil session")
	}
	if strings.TrimSpace(s.ID) == "" {
		return ErrInvalidSession
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrInvalidSession
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

// SweepIdle returns the ids of sessions whose last activity predates the
// cutoff. The caller closes them through the orchestrator so in-flight turns
// are cancelled properly.
func (m *MemoryStore) SweepIdle(cutoff time.Time) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var idle []string
	for id, s := range m.sessions {
		if !s.Closed && s.UpdatedAt.Before(cutoff) {
			idle = append(idle, id)
		}
	}
	sort.Strings(idle)
	return idle
}
