package gate

// State is one step of the gate's startup state machine
// The sequence Cold -> Restoring -> Hydrating -> Live executes exactly once
// per gate and never reverses
type State int32

const (
	// StateCold is the initial state: nothing restored, application not mounted
	StateCold State = iota
	// StateRestoring means the restore round trip is in flight
	StateRestoring
	// StateHydrating means a restore result is being applied to the cache
	StateHydrating
	// StateLive is terminal: the cache is warm (or empty) and the
	// application may mount
	StateLive
)

// String returns the state's name
func (s State) String() string {
	switch s {
	case StateCold:
		return "cold"
	case StateRestoring:
		return "restoring"
	case StateHydrating:
		return "hydrating"
	case StateLive:
		return "live"
	default:
		return "unknown"
	}
}
