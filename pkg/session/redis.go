package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voyagent-dev/voyagent/internal/conversation"
)

// RedisStore implements Store using Redis. It is suitable for multi-node
// deployments where turns for the same session may land on different
// replicas.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	mu     sync.RWMutex
	closed bool
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	// Addr is the Redis server address (host:port).
	Addr string
	// Password is the Redis password (optional).
	Password string
	// DB is the Redis database number.
	DB int
	// Prefix is the key prefix for all session keys (default: "voyagent:session:").
	Prefix string
	// SessionTTL is the session expiry duration (0 = never expire).
	SessionTTL time.Duration
	// PoolSize bounds the connection pool (default: 10).
	PoolSize int
}

// NewRedisStore creates a Redis-backed store and verifies connectivity.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "voyagent:session:"
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: poolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    cfg.SessionTTL,
	}, nil
}

// NewRedisStoreFromClient creates a Redis store from an existing client.
// This is useful for testing with miniredis.
func NewRedisStoreFromClient(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "voyagent:session:"
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *RedisStore) stateKey(sessionID string) string {
	return s.prefix + "state:" + sessionID
}

func (s *RedisStore) indexKey() string {
	return s.prefix + "index"
}

// Save persists the state and records the session in the index set.
func (s *RedisStore) Save(ctx context.Context, sessionID string, state *conversation.State) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrStoreClosed
	}
	s.mu.RUnlock()

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.stateKey(sessionID), data, s.ttl)
	pipe.SAdd(ctx, s.indexKey(), sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Load retrieves the state for a session.
func (s *RedisStore) Load(ctx context.Context, sessionID string) (*conversation.State, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, ErrStoreClosed
	}
	s.mu.RUnlock()

	data, err := s.client.Get(ctx, s.stateKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	var state conversation.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	return &state, nil
}

// Delete removes a session from the store and the index.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrStoreClosed
	}
	s.mu.RUnlock()

	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.stateKey(sessionID))
	pipe.SRem(ctx, s.indexKey(), sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// List returns the IDs of all stored sessions.
func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, ErrStoreClosed
	}
	s.mu.RUnlock()

	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return ids, nil
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}
