// Package querycache provides the in-memory query cache the bridge warms up
// and keeps persisted.
//
// The package follows the kit conventions:
// - Interface-driven design for testability
// - Uses logger.Logger interface for unified logging
// - Configuration with validation and defaults
// - Structured error handling
//
// A cache maps query keys (ordered key segments) to the last known data
// payload plus bookkeeping metadata. Its entire state can be captured as an
// immutable Snapshot, and mutation subscribers can be registered so a
// persistence layer is told whenever the cache changes.
package querycache

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/plugbridge/go-kit/logger"
	"go.uber.org/zap"
)

// Key is an ordered sequence of key segments uniquely naming one cached query
type Key []string

// canonical returns the stable map index for a key
// JSON encoding is used so segments may contain any characters
func (k Key) canonical() string {
	b, err := json.Marshal([]string(k))
	if err != nil {
		// []string cannot fail to marshal; keep the compiler honest
		return ""
	}
	return string(b)
}

// Clone returns an independent copy of the key
func (k Key) Clone() Key {
	if k == nil {
		return nil
	}
	out := make(Key, len(k))
	copy(out, k)
	return out
}

// Cache is a query cache with snapshot and change-subscription support
// All methods are safe for concurrent use
type Cache interface {
	// Get returns the cached data for the key, if present
	// The returned payload must be treated as read-only
	Get(key Key) (json.RawMessage, bool)

	// Set stores data under the key as freshly fetched
	// Subscribers are notified after the entry is stored
	Set(key Key, data json.RawMessage)

	// Invalidate removes the entry for the key, if present
	// Subscribers are notified only when an entry was actually removed
	Invalidate(key Key)

	// Stale reports whether the entry for the key is older than the
	// configured freshness window. Missing entries are always stale
	Stale(key Key) bool

	// Len returns the number of cached entries
	Len() int

	// Prune removes entries idle past the configured retention window and
	// returns how many were removed
	Prune() int

	// Snapshot captures the current entries as a new immutable value
	Snapshot() *Snapshot

	// Subscribe registers a change callback invoked after each mutation
	// The returned cancel function deregisters it and is idempotent
	Subscribe(fn func()) (cancel func())
}

// queryCache implements the Cache interface
type queryCache struct {
	logger logger.Logger

	name      string
	freshFor  time.Duration
	retainFor time.Duration

	mu      sync.RWMutex
	entries map[string]Entry

	subMu  sync.RWMutex
	subs   map[int]func()
	nextID int
}

// New creates a new query cache
// It returns an error if the configuration is invalid
func New(log logger.Logger, cfg *Config) (Cache, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		cfg = cfg.MergeDefaults()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &queryCache{
		logger:    log,
		name:      cfg.Name,
		freshFor:  cfg.FreshFor,
		retainFor: cfg.RetainFor,
		entries:   make(map[string]Entry),
		subs:      make(map[int]func()),
	}, nil
}

// Get returns the cached data for the key, if present
func (qc *queryCache) Get(key Key) (json.RawMessage, bool) {
	qc.mu.RLock()
	defer qc.mu.RUnlock()

	entry, ok := qc.entries[key.canonical()]
	if !ok {
		return nil, false
	}
	return entry.State.Data, true
}

// Set stores data under the key as freshly fetched
func (qc *queryCache) Set(key Key, data json.RawMessage) {
	if len(key) == 0 {
		qc.logger.Warn("ignoring set with empty query key", zap.String("cache", qc.name))
		return
	}

	stored := make(json.RawMessage, len(data))
	copy(stored, data)

	qc.mu.Lock()
	qc.entries[key.canonical()] = Entry{
		Key: key.Clone(),
		State: EntryState{
			Data:      stored,
			UpdatedAt: time.Now().UnixMilli(),
			Status:    StatusSuccess,
		},
	}
	qc.mu.Unlock()

	qc.notify()
}

// Invalidate removes the entry for the key, if present
func (qc *queryCache) Invalidate(key Key) {
	canonical := key.canonical()

	qc.mu.Lock()
	_, existed := qc.entries[canonical]
	delete(qc.entries, canonical)
	qc.mu.Unlock()

	if existed {
		qc.notify()
	}
}

// Stale reports whether the entry for the key is older than the freshness window
func (qc *queryCache) Stale(key Key) bool {
	qc.mu.RLock()
	defer qc.mu.RUnlock()

	entry, ok := qc.entries[key.canonical()]
	if !ok {
		return true
	}
	age := time.Since(time.UnixMilli(entry.State.UpdatedAt))
	return age >= qc.freshFor
}

// Len returns the number of cached entries
func (qc *queryCache) Len() int {
	qc.mu.RLock()
	defer qc.mu.RUnlock()
	return len(qc.entries)
}

// Prune removes entries idle past the retention window
func (qc *queryCache) Prune() int {
	cutoff := time.Now().Add(-qc.retainFor).UnixMilli()

	qc.mu.Lock()
	removed := 0
	for canonical, entry := range qc.entries {
		if entry.State.UpdatedAt < cutoff {
			delete(qc.entries, canonical)
			removed++
		}
	}
	qc.mu.Unlock()

	if removed > 0 {
		qc.logger.Debug("pruned idle cache entries",
			zap.String("cache", qc.name),
			zap.Int("removed", removed),
		)
		qc.notify()
	}
	return removed
}

// Snapshot captures the current entries as a new immutable value
// Each call produces a fresh Snapshot; previous snapshots are never mutated
func (qc *queryCache) Snapshot() *Snapshot {
	qc.mu.RLock()
	entries := make([]Entry, 0, len(qc.entries))
	for _, entry := range qc.entries {
		entries = append(entries, entry)
	}
	qc.mu.RUnlock()

	return &Snapshot{Entries: entries}
}

// Subscribe registers a change callback invoked after each mutation
func (qc *queryCache) Subscribe(fn func()) (cancel func()) {
	qc.subMu.Lock()
	id := qc.nextID
	qc.nextID++
	qc.subs[id] = fn
	qc.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			qc.subMu.Lock()
			delete(qc.subs, id)
			qc.subMu.Unlock()
		})
	}
}

// notify invokes all subscribers outside the entry lock
func (qc *queryCache) notify() {
	qc.subMu.RLock()
	subs := make([]func(), 0, len(qc.subs))
	for _, fn := range qc.subs {
		subs = append(subs, fn)
	}
	qc.subMu.RUnlock()

	for _, fn := range subs {
		fn()
	}
}
