// Package store provides the host-side storage slot backends the responder
// serves requests from.
//
// A Store is a small asynchronous key/value surface: slots are created on
// first write, overwritten on each subsequent write, cleared by writing a
// nil value, and read any number of times. Backends:
// - NewMemory: mutex-guarded map, for tests and single-process hosts
// - NewFile: write-behind JSON file with atomic flushes
// - NewMySQL: a storage_slots table via gorm
//
// Stores that buffer writes implement Flusher; stores that can drop idle
// slots implement Sweeper. The Janitor runs both on a cron schedule.
package store

import (
	"context"
	"time"
)

// Store is a named-slot key/value store
// Setting a nil value clears the slot, same as Delete
type Store interface {
	// Get returns the slot's value and whether the slot exists
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set overwrites the slot; a nil value clears it
	Set(ctx context.Context, key string, value []byte) error

	// Delete clears the slot; deleting an absent slot is not an error
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the store
	Close() error
}

// Flusher is implemented by stores that buffer writes
type Flusher interface {
	// Flush makes buffered writes durable
	Flush(ctx context.Context) error
}

// Sweeper is implemented by stores that can drop idle slots
type Sweeper interface {
	// Sweep removes slots not written for longer than olderThan and
	// returns how many were removed
	Sweep(ctx context.Context, olderThan time.Duration) (int, error)
}
