package token

import (
	"context"
	"sync"
)

type entryKey struct {
	clientID string
	key      Key
}

// MemoryBackend keeps tokens in process memory. Tokens do not survive a restart.
type MemoryBackend struct {
	mu     sync.RWMutex
	tokens map[entryKey]string
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		tokens: make(map[entryKey]string),
	}
}

func (m *MemoryBackend) Name() string { return "memory" }

func (m *MemoryBackend) Get(_ context.Context, clientID string, key Key) (string, error) {
	m.mu.RLock()
	value, exists := m.tokens[entryKey{clientID, key}]
	m.mu.RUnlock()

	if !exists {
		return "", ErrNotFound
	}
	return value, nil
}

func (m *MemoryBackend) Set(_ context.Context, clientID string, key Key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tokens[entryKey{clientID, key}] = value
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, clientID string, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.tokens, entryKey{clientID, key})
	return nil
}

func (m *MemoryBackend) Ping(context.Context) error { return nil }

// Len reports how many entries are stored.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tokens)
}
