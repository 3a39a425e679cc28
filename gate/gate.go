// Package gate sequences cache warm-up before first render.
//
// A Gate restores the persisted snapshot through the persistor, re-seeds the
// live query cache with the snapshot's data payloads, wires the cache's
// change notifications back to the persistor, and only then reports itself
// ready. The application subtree behind the gate must not mount until
// Ready() is true; that single ordering rule is what removes the loading
// flash on reopen.
//
// No bridge failure ever stops the gate from reaching the live state. The
// bridge is an optimization: under any fault it degrades to a cold start,
// never to a blocked application.
package gate

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/plugbridge/go-kit/logger"
	"github.com/plugbridge/go-kit/persist"
	"github.com/plugbridge/go-kit/querycache"
	"go.uber.org/zap"
)

// Gate runs the restore-before-render startup sequence
type Gate interface {
	// Start runs restore, hydration and persistence wiring, then invokes the
	// onReady callback. It blocks until the gate is live and is a no-op on
	// every call after the first
	Start(ctx context.Context)

	// State returns the current startup state
	State() State

	// Ready reports whether the gate has reached the live state
	// The wrapped application must not mount before this returns true
	Ready() bool

	// Stop cancels the cache-to-persistor subscription
	// It can be called multiple times safely
	Stop()
}

// cacheGate implements the Gate interface
type cacheGate struct {
	logger    logger.Logger
	cache     querycache.Cache
	persistor persist.Persistor
	onReady   func()

	state atomic.Int32

	startOnce sync.Once
	stopOnce  sync.Once

	mu          sync.Mutex
	unsubscribe func()
}

// New creates a gate wiring the cache to the persistor
// onReady may be nil; when set it is invoked exactly once, after hydration
// completes and the gate is live
func New(log logger.Logger, cache querycache.Cache, persistor persist.Persistor, onReady func()) (Gate, error) {
	if cache == nil {
		return nil, ErrNilCache
	}
	if persistor == nil {
		return nil, ErrNilPersistor
	}
	return &cacheGate{
		logger:    log,
		cache:     cache,
		persistor: persistor,
		onReady:   onReady,
	}, nil
}

// Start runs the startup sequence exactly once
func (g *cacheGate) Start(ctx context.Context) {
	g.startOnce.Do(func() {
		g.run(ctx)
	})
}

// run executes Cold -> Restoring -> Hydrating -> Live
func (g *cacheGate) run(ctx context.Context) {
	g.state.Store(int32(StateRestoring))
	snapshot := g.persistor.Restore(ctx)

	g.state.Store(int32(StateHydrating))
	hydrated := g.hydrate(snapshot)

	// Subscribe after hydration so re-seeding does not trigger persist
	// cycles; every mutation from here on pushes a fresh snapshot out
	unsubscribe := g.cache.Subscribe(func() {
		g.persistor.Persist(g.cache.Snapshot())
	})
	g.mu.Lock()
	g.unsubscribe = unsubscribe
	g.mu.Unlock()

	g.state.Store(int32(StateLive))
	g.logger.Info("cache gate live",
		zap.Int("hydrated_entries", hydrated),
		zap.Bool("cold_start", snapshot.Empty()),
	)

	if g.onReady != nil {
		g.onReady()
	}
}

// hydrate re-seeds the live cache from the snapshot's data payloads
// Each entry is injected as if freshly fetched; stored bookkeeping metadata
// is not reapplied. Malformed entries are skipped individually and never
// block the transition to live
func (g *cacheGate) hydrate(snapshot *querycache.Snapshot) int {
	if snapshot.Empty() {
		return 0
	}

	hydrated := 0
	for _, entry := range snapshot.Entries {
		if len(entry.Key) == 0 || len(entry.State.Data) == 0 {
			g.logger.Warn("skipping malformed snapshot entry",
				zap.Strings("key", entry.Key),
				zap.Int("data_bytes", len(entry.State.Data)),
			)
			continue
		}
		g.cache.Set(entry.Key, entry.State.Data)
		hydrated++
	}
	return hydrated
}

// State returns the current startup state
func (g *cacheGate) State() State {
	return State(g.state.Load())
}

// Ready reports whether the gate has reached the live state
func (g *cacheGate) Ready() bool {
	return g.State() == StateLive
}

// Stop cancels the cache-to-persistor subscription
func (g *cacheGate) Stop() {
	g.stopOnce.Do(func() {
		g.mu.Lock()
		unsubscribe := g.unsubscribe
		g.mu.Unlock()
		if unsubscribe != nil {
			unsubscribe()
		}
	})
}
