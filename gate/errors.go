package gate

import "fmt"

// Predefined errors
var (
	// ErrNilCache is returned when constructing a gate without a cache
	ErrNilCache = fmt.Errorf("gate: cache is required")
	// ErrNilPersistor is returned when constructing a gate without a persistor
	ErrNilPersistor = fmt.Errorf("gate: persistor is required")
)
