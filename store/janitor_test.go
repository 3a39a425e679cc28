package store

import (
	"context"
	"testing"
	"time"
)

func TestNewJanitor_Validation(t *testing.T) {
	log := testLogger(t)

	if _, err := NewJanitor(log, nil, nil); err == nil {
		t.Error("expected error for nil store")
	}
	if _, err := NewJanitor(log, NewMemory(), &JanitorConfig{Spec: "not a cron spec"}); err == nil {
		t.Error("expected error for invalid cron spec")
	}
}

func TestJanitor_MaintainFlushes(t *testing.T) {
	path := t.TempDir() + "/slots.json"
	st := testFileStore(t, path)
	defer st.Close()

	if err := st.Set(context.Background(), "slot", []byte(`1`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	j, err := NewJanitor(testLogger(t), st, nil)
	if err != nil {
		t.Fatalf("failed to create janitor: %v", err)
	}
	defer j.Close()

	j.(*storeJanitor).maintain()

	reopened := testFileStore(t, path)
	defer reopened.Close()
	if _, ok, _ := reopened.Get(context.Background(), "slot"); !ok {
		t.Error("maintenance pass should flush buffered writes to disk")
	}
}

func TestJanitor_MaintainSweeps(t *testing.T) {
	st := NewMemory()
	defer st.Close()
	ctx := context.Background()

	_ = st.Set(ctx, "idle", []byte(`1`))
	time.Sleep(25 * time.Millisecond)

	j, err := NewJanitor(testLogger(t), st, &JanitorConfig{Retention: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("failed to create janitor: %v", err)
	}
	defer j.Close()

	j.(*storeJanitor).maintain()

	if _, ok, _ := st.Get(ctx, "idle"); ok {
		t.Error("maintenance pass should sweep slots idle past retention")
	}
}

func TestJanitor_ZeroRetentionSkipsSweep(t *testing.T) {
	st := NewMemory()
	defer st.Close()
	ctx := context.Background()

	_ = st.Set(ctx, "idle", []byte(`1`))
	time.Sleep(25 * time.Millisecond)

	j, err := NewJanitor(testLogger(t), st, nil)
	if err != nil {
		t.Fatalf("failed to create janitor: %v", err)
	}
	defer j.Close()

	j.(*storeJanitor).maintain()

	if _, ok, _ := st.Get(ctx, "idle"); !ok {
		t.Error("sweep must be disabled when retention is zero")
	}
}

func TestJanitor_StartClose(t *testing.T) {
	j, err := NewJanitor(testLogger(t), NewMemory(), &JanitorConfig{Spec: "@every 10ms"})
	if err != nil {
		t.Fatalf("failed to create janitor: %v", err)
	}
	j.Start()
	time.Sleep(30 * time.Millisecond)
	j.Close()
}
