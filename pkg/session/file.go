package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/voyagent-dev/voyagent/internal/conversation"
)

// ErrInvalidSessionID is returned when a session ID contains characters that
// are unsafe to use as a path component.
var ErrInvalidSessionID = errors.New("invalid session id: contains path separator or traversal sequence")

// validateSessionID checks that a session ID is safe to use as a file name.
func validateSessionID(sessionID string) error {
	if sessionID == "" {
		return errors.New("session id cannot be empty")
	}
	if strings.ContainsAny(sessionID, `/\`) || strings.Contains(sessionID, "..") {
		return ErrInvalidSessionID
	}
	return nil
}

// FileStore implements Store using one JSON file per session.
// Storage layout:
//
//	<baseDir>/
//	  └── <session-id>.json
//
// Writes go to a temp file in the same directory, are fsynced, and then
// renamed over the destination so a crash never leaves a partial file.
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
	closed  bool
}

// NewFileStore creates a file-based store rooted at baseDir.
// If baseDir is empty, uses ~/.voyagent/sessions.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".voyagent", "sessions")
	}

	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}

	return &FileStore{baseDir: baseDir}, nil
}

func (s *FileStore) path(sessionID string) string {
	return filepath.Join(s.baseDir, sessionID+".json")
}

// Save persists the state for a session atomically.
func (s *FileStore) Save(ctx context.Context, sessionID string, state *conversation.State) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp, err := os.CreateTemp(s.baseDir, "tmp-"+sessionID+"-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path(sessionID)); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Load retrieves the state for a session.
func (s *FileStore) Load(ctx context.Context, sessionID string) (*conversation.State, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	data, err := os.ReadFile(s.path(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("read session file: %w", err)
	}

	var state conversation.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	return &state, nil
}

// Delete removes the state for a session.
func (s *FileStore) Delete(ctx context.Context, sessionID string) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	if err := os.Remove(s.path(sessionID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// Close marks the store as closed.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
