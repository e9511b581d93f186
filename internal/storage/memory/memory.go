// Package memory provides an in-memory key/value medium used for development and tests.
// Nothing survives a restart.
package memory

import (
	"context"
	"sync"
)

// KV is an in-memory implementation of storage.KV.
// It is guarded by an RWMutex for concurrent reads/writes.
type KV struct {
	mu     sync.RWMutex
	values map[string]string
	// failErr, when set, is returned by every call. Used to simulate an unavailable medium.
	failErr error
}

// New constructs an empty in-memory KV.
func New() *KV {
	return &KV{values: make(map[string]string)}
}

// Get implements storage.KV.
func (m *KV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failErr != nil {
		return "", false, m.failErr
	}
	v, ok := m.values[key]
	return v, ok, nil
}

// Set implements storage.KV.
func (m *KV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.values[key] = value
	return nil
}

// Ready reports the injected failure, if any.
func (m *KV) Ready(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.failErr
}

// Seed stores raw values for local dev/tests, bypassing any injected failure.
func (m *KV) Seed(key, value string) {
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
}

// Fail makes every subsequent call return err. Pass nil to recover.
func (m *KV) Fail(err error) {
	m.mu.Lock()
	m.failErr = err
	m.mu.Unlock()
}

// Reset drops all stored values.
func (m *KV) Reset() {
	m.mu.Lock()
	m.values = make(map[string]string)
	m.failErr = nil
	m.mu.Unlock()
}
