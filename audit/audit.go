// Package audit records storage operation events served by the responder.
//
// The default sink discards everything; the ClickHouse sink batches events
// into an analytics table so cache hit/write behaviour can be inspected
// after the fact. Recording is always fire-and-forget: a sink must never
// slow down or fail a storage operation.
package audit

import "time"

// Op identifies the storage operation an event describes
type Op string

const (
	// OpGet is a slot read served with a reply
	OpGet Op = "get"
	// OpSet is a slot write
	OpSet Op = "set"
	// OpDelete is a slot clear
	OpDelete Op = "delete"
)

// Event is one served storage operation
type Event struct {
	Op       Op
	Key      string
	Bytes    int
	At       time.Time
	Duration time.Duration
}

// Sink receives operation events
type Sink interface {
	// Record submits an event without blocking the caller
	Record(e Event)
	// Close flushes buffered events and releases resources
	Close() error
}

// nopSink discards all events
type nopSink struct{}

// Nop returns a sink that discards all events
func Nop() Sink {
	return nopSink{}
}

// Record discards the event
func (nopSink) Record(Event) {}

// Close does nothing
func (nopSink) Close() error { return nil }
