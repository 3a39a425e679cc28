package persist

import "fmt"

// ErrNilChannel is returned when constructing a persistor without a channel
var ErrNilChannel = fmt.Errorf("persist: channel is required")
