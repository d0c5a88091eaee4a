package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists the throttle state.
type Store interface {
	// Load returns the stored state, or a zero state when none exists.
	Load(ctx context.Context) (*ThrottleState, error)

	// Save replaces the stored state.
	Save(ctx context.Context, state *ThrottleState) error
}

// RedisStore shares throttle state between processes.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a Redis backed store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{redis: client}
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context) (*ThrottleState, error) {
	blockedUntil, err := s.redis.Get(ctx, RedisKeyBlockedUntil).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get blocked until: %w", err)
	}

	consecutive, err := s.redis.Get(ctx, RedisKeyConsecutiveErrors).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get consecutive errors: %w", err)
	}

	lastUpdateStr, err := s.redis.Get(ctx, RedisKeyLastUpdate).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get last update: %w", err)
	}

	state := &ThrottleState{ConsecutiveErrors: consecutive}
	if blockedUntil > 0 {
		state.BlockedUntil = time.UnixMilli(blockedUntil)
	}
	if lastUpdateStr != "" {
		if err := json.Unmarshal([]byte(lastUpdateStr), &state.LastUpdate); err != nil {
			return nil, fmt.Errorf("parse last update: %w", err)
		}
	}

	return state, nil
}

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, state *ThrottleState) error {
	lastUpdateJSON, err := json.Marshal(state.LastUpdate)
	if err != nil {
		return fmt.Errorf("marshal last update: %w", err)
	}

	var blockedUntil int64
	if !state.BlockedUntil.IsZero() {
		blockedUntil = state.BlockedUntil.UnixMilli()
	}

	pipe := s.redis.Pipeline()
	pipe.Set(ctx, RedisKeyBlockedUntil, blockedUntil, 0)
	pipe.Set(ctx, RedisKeyConsecutiveErrors, state.ConsecutiveErrors, 0)
	pipe.Set(ctx, RedisKeyLastUpdate, lastUpdateJSON, 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store throttle state in redis: %w", err)
	}
	return nil
}

// MemoryStore keeps throttle state in process.
type MemoryStore struct {
	mu    sync.Mutex
	state ThrottleState
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context) (*ThrottleState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.state
	return &state, nil
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, state *ThrottleState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = *state
	return nil
}
