package transcript

import (
	"context"
	"sync"
)

// MemoryStore keeps rows in process. It backs tests and TRANSCRIPT_STORE=memory.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[string][]Turn
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string][]Turn)}
}

func (s *MemoryStore) Append(_ context.Context, sessionID string, turn Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[sessionID] = append(s.rows[sessionID], turn)
	return nil
}

func (s *MemoryStore) Relabel(_ context.Context, sessionID, from, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rows[sessionID] {
		if s.rows[sessionID][i].Speaker == from {
			s.rows[sessionID][i].Speaker = to
		}
	}
	return nil
}

func (s *MemoryStore) Reset(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, sessionID)
	return nil
}

// Rows returns a copy of the persisted rows for a session.
func (s *MemoryStore) Rows(sessionID string) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Turn(nil), s.rows[sessionID]...)
}

func (s *MemoryStore) Close() error { return nil }
