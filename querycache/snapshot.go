package querycache

import "encoding/json"

// StatusSuccess marks an entry holding successfully fetched data
const StatusSuccess = "success"

// Snapshot is an immutable capture of a cache's entries at one instant
// Entry order carries no meaning; each entry stands alone under its key
type Snapshot struct {
	Entries []Entry `json:"entries"`
}

// Entry is one cached query inside a snapshot
type Entry struct {
	Key   Key        `json:"key"`
	State EntryState `json:"state"`
}

// EntryState holds the last known data payload and bookkeeping metadata
// Only Data is reapplied on hydration; the rest is informational
type EntryState struct {
	Data      json.RawMessage `json:"data,omitempty"`
	UpdatedAt int64           `json:"updated_at"`
	Status    string          `json:"status"`
}

// Empty reports whether the snapshot holds no entries
func (s *Snapshot) Empty() bool {
	return s == nil || len(s.Entries) == 0
}
