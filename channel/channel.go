// Package channel implements the asynchronous message channel between a
// sandboxed plugin UI and its privileged host.
//
// The channel carries untyped JSON payloads and gives no delivery guarantee
// and no built-in request/response correlation; callers that need a reply
// correlate by key (see the persist package). Sends are fire-and-forget and
// never block.
//
// Two transports are provided:
//   - Pair: a linked in-process endpoint pair backed by unbounded queues
//   - NewKafka: the same contract across a Kafka broker, for hosts that run
//     out of process
package channel

import "encoding/json"

// MessageType identifies the protocol operation a message carries
type MessageType string

const (
	// TypeGetStorage requests the current value of a storage slot (UI -> host)
	TypeGetStorage MessageType = "get-storage"
	// TypeSetStorage overwrites a storage slot; a null value clears it (UI -> host)
	TypeSetStorage MessageType = "set-storage"
	// TypeStorageData is the reply to a get-storage request (host -> UI)
	TypeStorageData MessageType = "storage-data"
)

// Message is the wire format exchanged over a channel
// Value is nil to represent a null/absent payload
type Message struct {
	Type  MessageType     `json:"type"`
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value,omitempty"`
}

// Handler receives inbound messages delivered to a channel endpoint
type Handler func(msg Message)

// Channel is one endpoint of a bidirectional message channel
type Channel interface {
	// Send enqueues an outbound message without waiting for delivery
	// It returns ErrChannelClosed after Close
	Send(msg Message) error

	// Subscribe registers a handler for inbound messages and returns a
	// cancel function that deregisters it. Cancel is idempotent; after it
	// returns the handler will not be invoked again
	Subscribe(fn Handler) (cancel func())

	// Close stops the endpoint's outbound direction
	// Messages already enqueued are still delivered to the peer
	Close() error
}
