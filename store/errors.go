package store

import "fmt"

// ErrStoreClosed is returned when operations are attempted on a closed store
var ErrStoreClosed = fmt.Errorf("store: store is closed")

// ErrInvalidConfig returns an error for an invalid store configuration
func ErrInvalidConfig(msg string) error {
	return fmt.Errorf("store: invalid config: %s", msg)
}

// ErrConnection wraps a backend connection failure
func ErrConnection(err error) error {
	return fmt.Errorf("store: connection failed: %w", err)
}

// ErrRead wraps a slot read failure
func ErrRead(key string, err error) error {
	return fmt.Errorf("store: failed to read slot %q: %w", key, err)
}

// ErrWrite wraps a slot write failure
func ErrWrite(key string, err error) error {
	return fmt.Errorf("store: failed to write slot %q: %w", key, err)
}

// ErrFlush wraps a flush failure
func ErrFlush(err error) error {
	return fmt.Errorf("store: flush failed: %w", err)
}
