package responder

import "fmt"

// Predefined errors
var (
	// ErrNilChannel is returned when constructing a responder without a channel
	ErrNilChannel = fmt.Errorf("responder: channel is required")
	// ErrNilStore is returned when constructing a responder without a store
	ErrNilStore = fmt.Errorf("responder: store is required")
	// ErrAlreadyStarted is returned when Start is called twice
	ErrAlreadyStarted = fmt.Errorf("responder: already started")
)
