// ABOUTME: Key-value storage ports shared by the gate and settings layers
// ABOUTME: Provides the Bucket interface and an in-memory ephemeral implementation

package bucket

import "sync"

// Bucket is a minimal string key-value store. Implementations may be backed
// by memory, files, or anything else; callers must treat every operation as
// fallible.
type Bucket interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool, error)
	// Set stores value under key, replacing any existing value.
	Set(key, value string) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(key string) error
}

// Memory is a process-wide in-memory Bucket. Its contents vanish when the
// process exits, making it the ephemeral (session-scoped) bucket.
type Memory struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewMemory creates an empty in-memory bucket.
func NewMemory() *Memory {
	return &Memory{m: make(map[string]string)}
}

// Get returns the value for key and whether it was present.
func (b *Memory) Get(key string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.m[key]
	return v, ok, nil
}

// Set stores value under key.
func (b *Memory) Set(key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.m[key] = value
	return nil
}

// Remove deletes key.
func (b *Memory) Remove(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.m, key)
	return nil
}
