package authsdk

import (
	"context"
	"sync"
)

// Persisted session keys.
const (
	KeyAccessToken  = "access-token"
	KeyRefreshToken = "refresh-token"
	KeyUserProfile  = "user-profile"
)

// Persister is durable storage for the session keys. Only SessionStore calls
// it; every other component goes through the store.
type Persister interface {
	// Get returns the value for key, ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes the keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
}

// MemoryPersister keeps the session keys in process memory. Useful for tests
// and for one-shot CLI invocations that should not leave anything behind.
type MemoryPersister struct {
	mu     sync.RWMutex
	values map[string]string
}

// Ensure MemoryPersister implements Persister at compile time.
var _ Persister = (*MemoryPersister)(nil)

// NewMemoryPersister returns an empty in-memory persister.
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{values: make(map[string]string)}
}

func (m *MemoryPersister) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryPersister) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryPersister) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

// Len reports how many keys are stored.
func (m *MemoryPersister) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}
