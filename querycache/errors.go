package querycache

import (
	"fmt"
	"time"
)

// ErrInvalidConfig is returned when the configuration is invalid
var ErrInvalidConfig = fmt.Errorf("querycache: invalid config")

// ErrInvalidName returns an error for an invalid cache name
func ErrInvalidName(name string) error {
	return fmt.Errorf("querycache: invalid name: %q (must be non-empty)", name)
}

// ErrInvalidFreshFor returns an error for an invalid freshness window
func ErrInvalidFreshFor(d time.Duration) error {
	return fmt.Errorf("querycache: invalid fresh_for: %v (must be > 0)", d)
}

// ErrInvalidRetainFor returns an error for an invalid retention window
func ErrInvalidRetainFor(d time.Duration) error {
	return fmt.Errorf("querycache: invalid retain_for: %v (must be > 0)", d)
}
