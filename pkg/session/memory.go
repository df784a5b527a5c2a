package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/voyagent-dev/voyagent/internal/conversation"
)

// MemoryStore implements Store with an in-process map. States are stored in
// serialized form so callers never share mutable state with the store.
// Intended for tests and single-node development.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Save persists the state for a session.
func (s *MemoryStore) Save(ctx context.Context, sessionID string, state *conversation.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.data[sessionID] = data
	return nil
}

// Load retrieves the state for a session.
func (s *MemoryStore) Load(ctx context.Context, sessionID string) (*conversation.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	data, ok := s.data[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	var state conversation.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	return &state, nil
}

// Delete removes the state for a session.
func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	delete(s.data, sessionID)
	return nil
}

// Close marks the store as closed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
