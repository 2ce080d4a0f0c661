package store

import (
	"context"
	"sort"
	"sync"

	"github.com/Tom-dlhy/local-llm-consensus-engine/domain"
)

// MemoryStore keeps sessions in memory for the process lifetime. The mutex
// serializes writes while allowing concurrent snapshot reads; sessions are
// independent, so no finer-grained locking is needed.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*domain.Session),
	}
}

// CreateSession stores a new session.
func (s *MemoryStore) CreateSession(_ context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.SessionID]; ok {
		return ErrAlreadyExists
	}
	s.sessions[session.SessionID] = session.Clone()
	return nil
}

// GetSession returns a deep snapshot of the session.
func (s *MemoryStore) GetSession(_ context.Context, sessionID string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return session.Clone(), nil
}

// ListSessions returns summaries of all sessions, newest first.
func (s *MemoryStore) ListSessions(_ context.Context) ([]domain.SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]domain.SessionSummary, 0, len(s.sessions))
	for _, session := range s.sessions {
		summaries = append(summaries, domain.SessionSummary{
			SessionID: session.SessionID,
			Query:     session.Query,
			Stage:     session.Stage,
			CreatedAt: session.CreatedAt,
			UpdatedAt: session.UpdatedAt,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries, nil
}

// CommitSession atomically replaces the stored session with the snapshot.
func (s *MemoryStore) CommitSession(_ context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.SessionID]; !ok {
		return ErrNotFound
	}
	s.sessions[session.SessionID] = session.Clone()
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
