package persist

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/plugbridge/go-kit/channel"
	"github.com/plugbridge/go-kit/logger"
	"github.com/plugbridge/go-kit/querycache"
	"github.com/plugbridge/go-kit/responder"
	"github.com/plugbridge/go-kit/store"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func testLogger(t *testing.T) logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "debug", Encoding: "console"})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	return log
}

// observedLogger returns a logger whose entries can be inspected
func observedLogger() (logger.Logger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return zap.New(core), recorded
}

// testBridge wires a persistor to a live responder over an in-process pair
func testBridge(t *testing.T) (Persistor, store.Store) {
	t.Helper()
	log := testLogger(t)

	ui, host := channel.Pair(log)
	st := store.NewMemory()

	resp, err := responder.New(log, host, st, nil)
	if err != nil {
		t.Fatalf("failed to create responder: %v", err)
	}
	if err := resp.Start(); err != nil {
		t.Fatalf("failed to start responder: %v", err)
	}
	t.Cleanup(func() {
		_ = resp.Close()
		_ = ui.Close()
		_ = host.Close()
	})

	p, err := New(log, ui)
	if err != nil {
		t.Fatalf("failed to create persistor: %v", err)
	}
	return p, st
}

func todoSnapshot() *querycache.Snapshot {
	return &querycache.Snapshot{
		Entries: []querycache.Entry{
			{
				Key: querycache.Key{"todos"},
				State: querycache.EntryState{
					Data:      json.RawMessage(`[{"id":1,"text":"buy milk","completed":false}]`),
					UpdatedAt: time.Now().UnixMilli(),
					Status:    querycache.StatusSuccess,
				},
			},
		},
	}
}

// waitForSlot polls until the store's cache slot matches the predicate
func waitForSlot(t *testing.T, st store.Store, pred func(value []byte, ok bool) bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		value, ok, err := st.Get(context.Background(), CacheKey)
		if err != nil {
			t.Fatalf("store get failed: %v", err)
		}
		if pred(value, ok) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("store slot never reached the expected state")
}

func TestNew_NilChannel(t *testing.T) {
	if _, err := New(testLogger(t), nil); !errors.Is(err, ErrNilChannel) {
		t.Errorf("expected ErrNilChannel, got %v", err)
	}
}

func TestPersistRestore_RoundTrip(t *testing.T) {
	p, st := testBridge(t)

	snapshot := todoSnapshot()
	p.Persist(snapshot)
	waitForSlot(t, st, func(_ []byte, ok bool) bool { return ok })

	restored := p.Restore(context.Background())
	if restored == nil {
		t.Fatal("expected a snapshot, got nil")
	}
	if len(restored.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(restored.Entries))
	}
	entry := restored.Entries[0]
	if len(entry.Key) != 1 || entry.Key[0] != "todos" {
		t.Errorf("unexpected key: %v", entry.Key)
	}
	if string(entry.State.Data) != string(snapshot.Entries[0].State.Data) {
		t.Errorf("data mismatch: got %s, want %s", entry.State.Data, snapshot.Entries[0].State.Data)
	}
}

func TestRestore_ColdStart(t *testing.T) {
	p, _ := testBridge(t)

	start := time.Now()
	restored := p.Restore(context.Background())
	elapsed := time.Since(start)

	if restored != nil {
		t.Errorf("expected nil snapshot on cold start, got %+v", restored)
	}
	if elapsed >= RestoreTimeout {
		t.Errorf("cold-start restore took %v, should resolve well before the %v timeout", elapsed, RestoreTimeout)
	}
}

func TestRestore_TimeoutWithoutResponder(t *testing.T) {
	log := testLogger(t)
	ui, host := channel.Pair(log)
	defer ui.Close()
	defer host.Close()

	// No responder subscribed: the get-storage request is never answered
	p, err := New(log, ui)
	if err != nil {
		t.Fatalf("failed to create persistor: %v", err)
	}

	start := time.Now()
	restored := p.Restore(context.Background())
	elapsed := time.Since(start)

	if restored != nil {
		t.Errorf("expected nil snapshot, got %+v", restored)
	}
	if elapsed < RestoreTimeout-50*time.Millisecond {
		t.Errorf("restore resolved after %v, before the %v timeout", elapsed, RestoreTimeout)
	}
	if elapsed > RestoreTimeout+2*time.Second {
		t.Errorf("restore took %v, far beyond the %v timeout", elapsed, RestoreTimeout)
	}
}

func TestRestore_ContextCanceled(t *testing.T) {
	log := testLogger(t)
	ui, host := channel.Pair(log)
	defer ui.Close()
	defer host.Close()

	p, err := New(log, ui)
	if err != nil {
		t.Fatalf("failed to create persistor: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if restored := p.Restore(ctx); restored != nil {
		t.Errorf("expected nil snapshot, got %+v", restored)
	}
	if elapsed := time.Since(start); elapsed >= RestoreTimeout {
		t.Errorf("canceled restore took %v, should resolve immediately", elapsed)
	}
}

func TestRemove_ThenRestoreIsEmpty(t *testing.T) {
	p, st := testBridge(t)

	p.Persist(todoSnapshot())
	waitForSlot(t, st, func(_ []byte, ok bool) bool { return ok })

	p.Remove()
	waitForSlot(t, st, func(_ []byte, ok bool) bool { return !ok })

	if restored := p.Restore(context.Background()); restored != nil {
		t.Errorf("expected nil snapshot after remove, got %+v", restored)
	}
}

// ============ Fake channel tests ============

// fakeChannel records sends and lets tests inject inbound messages
type fakeChannel struct {
	mu       sync.Mutex
	handlers map[int]channel.Handler
	nextID   int
	sendErr  error
	sent     []channel.Message
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{handlers: make(map[int]channel.Handler)}
}

func (f *fakeChannel) Send(msg channel.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeChannel) Subscribe(fn channel.Handler) func() {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.handlers[id] = fn
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.handlers, id)
			f.mu.Unlock()
		})
	}
}

func (f *fakeChannel) Close() error { return nil }

func (f *fakeChannel) deliver(msg channel.Message) {
	f.mu.Lock()
	handlers := make([]channel.Handler, 0, len(f.handlers))
	for _, h := range f.handlers {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()
	for _, h := range handlers {
		h(msg)
	}
}

func (f *fakeChannel) subscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

func (f *fakeChannel) sentMessages() []channel.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]channel.Message, len(f.sent))
	copy(out, f.sent)
	return out
}

// shortTimeoutPersistor builds a persistor with a reduced restore timeout so
// timeout-path tests stay fast
func shortTimeoutPersistor(log logger.Logger, ch channel.Channel) *channelPersistor {
	return &channelPersistor{
		logger:  log,
		ch:      ch,
		key:     CacheKey,
		timeout: 30 * time.Millisecond,
	}
}

func TestRestore_ListenerRemovedAfterTimeout(t *testing.T) {
	fc := newFakeChannel()
	p := shortTimeoutPersistor(testLogger(t), fc)

	if restored := p.Restore(context.Background()); restored != nil {
		t.Fatalf("expected nil snapshot, got %+v", restored)
	}

	if n := fc.subscriberCount(); n != 0 {
		t.Errorf("expected 0 subscribers after restore settled, got %d", n)
	}

	// A late reply must be a harmless no-op
	raw, _ := json.Marshal(todoSnapshot())
	fc.deliver(channel.Message{Type: channel.TypeStorageData, Key: CacheKey, Value: raw})
}

func TestRestore_ListenerRemovedAfterReply(t *testing.T) {
	fc := newFakeChannel()
	p := shortTimeoutPersistor(testLogger(t), fc)

	raw, _ := json.Marshal(todoSnapshot())
	done := make(chan struct{})
	go func() {
		defer close(done)
		// Wait for the request to be sent, then reply
		for {
			if len(fc.sentMessages()) > 0 {
				break
			}
			time.Sleep(time.Millisecond)
		}
		fc.deliver(channel.Message{Type: channel.TypeStorageData, Key: CacheKey, Value: raw})
	}()

	restored := p.Restore(context.Background())
	<-done

	if restored == nil {
		t.Fatal("expected snapshot from reply")
	}
	if n := fc.subscriberCount(); n != 0 {
		t.Errorf("expected 0 subscribers after restore settled, got %d", n)
	}
}

func TestRestore_IgnoresMismatchedReplies(t *testing.T) {
	fc := newFakeChannel()
	p := shortTimeoutPersistor(testLogger(t), fc)

	raw, _ := json.Marshal(todoSnapshot())
	go func() {
		for {
			if len(fc.sentMessages()) > 0 {
				break
			}
			time.Sleep(time.Millisecond)
		}
		// Wrong key and wrong type: neither may satisfy the restore
		fc.deliver(channel.Message{Type: channel.TypeStorageData, Key: "other_slot", Value: raw})
		fc.deliver(channel.Message{Type: channel.TypeSetStorage, Key: CacheKey, Value: raw})
	}()

	if restored := p.Restore(context.Background()); restored != nil {
		t.Errorf("expected nil snapshot, got %+v", restored)
	}
}

func TestRestore_NullValueMeansEmpty(t *testing.T) {
	fc := newFakeChannel()
	p := shortTimeoutPersistor(testLogger(t), fc)

	go func() {
		for {
			if len(fc.sentMessages()) > 0 {
				break
			}
			time.Sleep(time.Millisecond)
		}
		fc.deliver(channel.Message{Type: channel.TypeStorageData, Key: CacheKey, Value: json.RawMessage(`null`)})
	}()

	if restored := p.Restore(context.Background()); restored != nil {
		t.Errorf("expected nil snapshot for null value, got %+v", restored)
	}
}

func TestRestore_MalformedPayloadMeansEmpty(t *testing.T) {
	fc := newFakeChannel()
	p := shortTimeoutPersistor(testLogger(t), fc)

	go func() {
		for {
			if len(fc.sentMessages()) > 0 {
				break
			}
			time.Sleep(time.Millisecond)
		}
		fc.deliver(channel.Message{Type: channel.TypeStorageData, Key: CacheKey, Value: json.RawMessage(`{not json`)})
	}()

	if restored := p.Restore(context.Background()); restored != nil {
		t.Errorf("expected nil snapshot for malformed payload, got %+v", restored)
	}
}

func TestPersist_SendFailureIsLoggedNotRaised(t *testing.T) {
	log, recorded := observedLogger()
	fc := newFakeChannel()
	fc.sendErr = errors.New("host unreachable")

	p, err := New(log, fc)
	if err != nil {
		t.Fatalf("failed to create persistor: %v", err)
	}

	// Must not panic and must not surface the error
	p.Persist(todoSnapshot())
	p.Remove()

	errorLogs := recorded.FilterLevelExact(zapcore.ErrorLevel).Len()
	if errorLogs != 2 {
		t.Errorf("expected 2 logged errors, got %d", errorLogs)
	}
}

func TestRestore_SendFailureMeansEmpty(t *testing.T) {
	fc := newFakeChannel()
	fc.sendErr = errors.New("host unreachable")
	p := shortTimeoutPersistor(testLogger(t), fc)

	start := time.Now()
	if restored := p.Restore(context.Background()); restored != nil {
		t.Errorf("expected nil snapshot, got %+v", restored)
	}
	if elapsed := time.Since(start); elapsed >= 30*time.Millisecond {
		t.Errorf("failed send should resolve immediately, took %v", elapsed)
	}
	if n := fc.subscriberCount(); n != 0 {
		t.Errorf("expected 0 subscribers, got %d", n)
	}
}

func TestPersist_SendsExactlyOneMessage(t *testing.T) {
	fc := newFakeChannel()
	p, err := New(testLogger(t), fc)
	if err != nil {
		t.Fatalf("failed to create persistor: %v", err)
	}

	p.Persist(todoSnapshot())

	sent := fc.sentMessages()
	if len(sent) != 1 {
		t.Fatalf("expected exactly 1 outbound message, got %d", len(sent))
	}
	if sent[0].Type != channel.TypeSetStorage || sent[0].Key != CacheKey {
		t.Errorf("unexpected message: %+v", sent[0])
	}
	if len(sent[0].Value) == 0 {
		t.Error("expected serialized snapshot payload")
	}
}

func TestRemove_SendsNullValue(t *testing.T) {
	fc := newFakeChannel()
	p, err := New(testLogger(t), fc)
	if err != nil {
		t.Fatalf("failed to create persistor: %v", err)
	}

	p.Remove()

	sent := fc.sentMessages()
	if len(sent) != 1 {
		t.Fatalf("expected exactly 1 outbound message, got %d", len(sent))
	}
	if sent[0].Type != channel.TypeSetStorage || sent[0].Key != CacheKey {
		t.Errorf("unexpected message: %+v", sent[0])
	}
	if sent[0].Value != nil {
		t.Errorf("expected null value, got %s", sent[0].Value)
	}
}
