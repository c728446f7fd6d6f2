// Package cache is the browser-storage analog: a small key-value store used
// for the session token, the cached user, the per-user deal list and the
// in-progress deal draft. It is a read-side warm start, not a write queue.
package cache

import (
	"context"
	"errors"
	"sync"
)

// ErrMiss is returned when a key has no cached value.
var ErrMiss = errors.New("cache: miss")

// DealsKey is the per-user deal list cache key, "<userId>_deals".
func DealsKey(userID string) string {
	return userID + "_deals"
}

// Fixed keys carried over from the browser client.
const (
	KeyToken = "sol_escrow"
	KeyUser  = "escrow_user"
	KeyDraft = "dealFormData"
)

// Store persists serialized values under fixed keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Memory is an in-process Store used in tests and as a fallback when no
// redis is configured.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrMiss
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *Memory) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	m.data[key] = v
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
