// Package responder implements the host-side storage responder.
//
// It serves the channel protocol against a store backend: every get-storage
// request is answered with exactly one storage-data reply carrying the same
// key, and every set-storage request is applied silently (a null value
// clears the slot). Write failures are logged only; the UI side is
// fire-and-forget by contract and never learns about them.
package responder

import (
	"context"
	"time"

	"github.com/plugbridge/go-kit/audit"
	"github.com/plugbridge/go-kit/channel"
	"github.com/plugbridge/go-kit/logger"
	"github.com/plugbridge/go-kit/routine"
	"github.com/plugbridge/go-kit/store"
	"go.uber.org/zap"
)

// requestTimeout bounds each store operation
const requestTimeout = 5 * time.Second

// Responder serves storage requests arriving on the host channel endpoint
type Responder interface {
	// Start subscribes to the channel and begins serving requests
	Start() error
	// Close stops serving and waits for in-flight requests to finish
	// It can be called multiple times safely
	Close() error
}

// storageResponder implements the Responder interface
type storageResponder struct {
	logger logger.Logger
	ch     channel.Channel
	store  store.Store
	sink   audit.Sink
	runner routine.Runner

	cancel func()
}

// New creates a responder serving the given store over the channel
// sink may be nil; operations are then not recorded
func New(log logger.Logger, ch channel.Channel, st store.Store, sink audit.Sink) (Responder, error) {
	if ch == nil {
		return nil, ErrNilChannel
	}
	if st == nil {
		return nil, ErrNilStore
	}
	if sink == nil {
		sink = audit.Nop()
	}
	return &storageResponder{
		logger: log,
		ch:     ch,
		store:  st,
		sink:   sink,
		runner: routine.New(log),
	}, nil
}

// Start subscribes to the channel and begins serving requests
func (r *storageResponder) Start() error {
	if r.cancel != nil {
		return ErrAlreadyStarted
	}
	r.cancel = r.ch.Subscribe(r.handle)
	r.logger.Info("storage responder started")
	return nil
}

// Close stops serving and waits for in-flight requests to finish
func (r *storageResponder) Close() error {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.runner.Wait()
	return nil
}

// handle dispatches one inbound message
// Replies and unknown message types are ignored; each request is served on
// its own goroutine so a slow store never blocks channel dispatch
func (r *storageResponder) handle(msg channel.Message) {
	switch msg.Type {
	case channel.TypeGetStorage:
		r.runner.GoNamed("responder-get", func() {
			r.handleGet(msg)
		})
	case channel.TypeSetStorage:
		r.runner.GoNamed("responder-set", func() {
			r.handleSet(msg)
		})
	default:
	}
}

// handleGet reads the slot and sends exactly one reply tagged with the
// request's key. A read failure is reported as an absent value; the UI
// treats both identically
func (r *storageResponder) handleGet(msg channel.Message) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	value, ok, err := r.store.Get(ctx, msg.Key)
	if err != nil {
		r.logger.Error("failed to read storage slot",
			zap.String("key", msg.Key),
			zap.Error(err),
		)
		value, ok = nil, false
	}

	reply := channel.Message{
		Type: channel.TypeStorageData,
		Key:  msg.Key,
	}
	if ok {
		reply.Value = value
	}

	if err := r.ch.Send(reply); err != nil {
		r.logger.Error("failed to send storage reply",
			zap.String("key", msg.Key),
			zap.Error(err),
		)
		return
	}

	r.sink.Record(audit.Event{
		Op:       audit.OpGet,
		Key:      msg.Key,
		Bytes:    len(value),
		At:       start,
		Duration: time.Since(start),
	})
}

// handleSet writes or clears the slot; no reply is sent either way
func (r *storageResponder) handleSet(msg channel.Message) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	op := audit.OpSet
	var err error
	if msg.Value == nil {
		op = audit.OpDelete
		err = r.store.Delete(ctx, msg.Key)
	} else {
		err = r.store.Set(ctx, msg.Key, msg.Value)
	}
	if err != nil {
		// Fire-and-forget: the write simply did not persist this cycle
		r.logger.Error("failed to write storage slot",
			zap.String("key", msg.Key),
			zap.Error(err),
		)
		return
	}

	r.sink.Record(audit.Event{
		Op:       op,
		Key:      msg.Key,
		Bytes:    len(msg.Value),
		At:       start,
		Duration: time.Since(start),
	})
}
