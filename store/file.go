package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/plugbridge/go-kit/logger"
	"go.uber.org/zap"
)

// fileSlot is the on-disk representation of one storage slot
type fileSlot struct {
	Value     []byte    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// fileStore implements Store as a write-behind JSON file
// All slots live in one file; writes mutate the in-memory map and mark it
// dirty, and Flush rewrites the file atomically via a temp file rename
type fileStore struct {
	logger logger.Logger

	path         string
	flushOnWrite bool

	mu     sync.Mutex
	slots  map[string]fileSlot
	dirty  bool
	closed bool
}

// NewFile creates a file-backed store, loading existing slots from disk
func NewFile(log logger.Logger, cfg *FileConfig) (Store, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig("file config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	fs := &fileStore{
		logger:       log,
		path:         cfg.Path,
		flushOnWrite: cfg.FlushOnWrite,
		slots:        make(map[string]fileSlot),
	}

	if err := fs.load(); err != nil {
		return nil, err
	}
	return fs, nil
}

// load reads the slot file if it exists
func (f *fileStore) load() error {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return ErrConnection(err)
	}

	if err := json.Unmarshal(data, &f.slots); err != nil {
		// A corrupt slot file is equivalent to an empty one; the bridge
		// treats missing data as a cold start anyway
		f.logger.Warn("slot file is corrupt, starting empty",
			zap.String("path", f.path),
			zap.Error(err),
		)
		f.slots = make(map[string]fileSlot)
	}
	return nil
}

// Get returns the slot's value and whether the slot exists
func (f *fileStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, false, ErrStoreClosed
	}
	slot, ok := f.slots[key]
	if !ok {
		return nil, false, nil
	}
	value := make([]byte, len(slot.Value))
	copy(value, slot.Value)
	return value, true, nil
}

// Set overwrites the slot; a nil value clears it
func (f *fileStore) Set(ctx context.Context, key string, value []byte) error {
	if value == nil {
		return f.Delete(ctx, key)
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrStoreClosed
	}
	f.slots[key] = fileSlot{Value: stored, UpdatedAt: time.Now()}
	f.dirty = true
	f.mu.Unlock()

	if f.flushOnWrite {
		return f.Flush(ctx)
	}
	return nil
}

// Delete clears the slot
func (f *fileStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrStoreClosed
	}
	if _, ok := f.slots[key]; ok {
		delete(f.slots, key)
		f.dirty = true
	}
	f.mu.Unlock()

	if f.flushOnWrite {
		return f.Flush(ctx)
	}
	return nil
}

// Flush rewrites the slot file if anything changed since the last flush
func (f *fileStore) Flush(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flushLocked()
}

// flushLocked writes the slot file atomically; callers must hold f.mu
func (f *fileStore) flushLocked() error {
	if !f.dirty {
		return nil
	}

	data, err := json.Marshal(f.slots)
	if err != nil {
		return ErrFlush(err)
	}

	tmp := f.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return ErrFlush(err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return ErrFlush(err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return ErrFlush(err)
	}

	f.dirty = false
	return nil
}

// Sweep removes slots not written for longer than olderThan
func (f *fileStore) Sweep(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return 0, ErrStoreClosed
	}

	removed := 0
	for key, slot := range f.slots {
		if slot.UpdatedAt.Before(cutoff) {
			delete(f.slots, key)
			removed++
		}
	}
	if removed > 0 {
		f.dirty = true
	}
	return removed, nil
}

// Close flushes buffered writes and marks the store closed
func (f *fileStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	err := f.flushLocked()
	f.closed = true
	return err
}
