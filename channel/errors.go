package channel

import "fmt"

// ErrChannelClosed is returned when sending on a closed channel endpoint
var ErrChannelClosed = fmt.Errorf("channel: endpoint is closed")

// ErrInvalidConfig returns an error for an invalid channel configuration
func ErrInvalidConfig(msg string) error {
	return fmt.Errorf("channel: invalid config: %s", msg)
}

// ErrTransport wraps an underlying transport failure
func ErrTransport(err error) error {
	return fmt.Errorf("channel: transport failure: %w", err)
}
