package audit

import "fmt"

// ErrSinkClosed is returned when recording on a closed sink
var ErrSinkClosed = fmt.Errorf("audit: sink is closed")

// ErrInvalidConfig returns an error for an invalid sink configuration
func ErrInvalidConfig(msg string) error {
	return fmt.Errorf("audit: invalid config: %s", msg)
}

// ErrConnection wraps a ClickHouse connection failure
func ErrConnection(err error) error {
	return fmt.Errorf("audit: connection failed: %w", err)
}
