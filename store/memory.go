package store

import (
	"context"
	"sync"
	"time"
)

// memSlot is one in-memory storage slot
type memSlot struct {
	value     []byte
	updatedAt time.Time
}

// memoryStore implements Store with a mutex-guarded map
type memoryStore struct {
	mu    sync.RWMutex
	slots map[string]memSlot
}

// NewMemory creates an in-memory store
func NewMemory() Store {
	return &memoryStore{
		slots: make(map[string]memSlot),
	}
}

// Get returns the slot's value and whether the slot exists
func (m *memoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	slot, ok := m.slots[key]
	if !ok {
		return nil, false, nil
	}
	value := make([]byte, len(slot.value))
	copy(value, slot.value)
	return value, true, nil
}

// Set overwrites the slot; a nil value clears it
func (m *memoryStore) Set(ctx context.Context, key string, value []byte) error {
	if value == nil {
		return m.Delete(ctx, key)
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[key] = memSlot{value: stored, updatedAt: time.Now()}
	return nil
}

// Delete clears the slot
func (m *memoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.slots, key)
	return nil
}

// Sweep removes slots not written for longer than olderThan
func (m *memoryStore) Sweep(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, slot := range m.slots {
		if slot.updatedAt.Before(cutoff) {
			delete(m.slots, key)
			removed++
		}
	}
	return removed, nil
}

// Close releases the store; the in-memory store holds nothing to release
func (m *memoryStore) Close() error {
	return nil
}
