// Package session provides durable, keyed-by-session persistence of
// conversation state, so the workflow engine can resume a conversation
// across turns and across process restarts.
package session

import (
	"context"
	"errors"

	"github.com/voyagent-dev/voyagent/internal/conversation"
)

// Common errors for storage operations.
var (
	// ErrSessionNotFound is returned when a session doesn't exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("session store is closed")
)

// Store abstracts conversation-state persistence.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save persists the state for a session, creating or overwriting it.
	Save(ctx context.Context, sessionID string, state *conversation.State) error

	// Load retrieves the state for a session.
	// Returns ErrSessionNotFound if the session doesn't exist.
	Load(ctx context.Context, sessionID string) (*conversation.State, error)

	// Delete removes the state for a session. Deleting a session that does
	// not exist is not an error.
	Delete(ctx context.Context, sessionID string) error

	// Close releases any resources held by the store.
	Close() error
}
