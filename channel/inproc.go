package channel

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/plugbridge/go-kit/logger"
	"github.com/plugbridge/go-kit/routine"
	"github.com/smallnest/chanx"
)

// initialQueueCapacity is the initial buffer size of each direction's queue
// The queue grows without bound so Send never blocks
const initialQueueCapacity = 16

// inprocEndpoint is one side of an in-process channel pair
// Messages it sends are delivered, in order, to handlers subscribed on the
// peer endpoint by a dedicated pump goroutine per direction
type inprocEndpoint struct {
	logger logger.Logger
	name   string
	out    *chanx.UnboundedChan[Message]

	mu       sync.RWMutex
	handlers map[int]Handler
	nextID   int

	sendMu sync.Mutex
	closed atomic.Bool
}

// Pair creates two linked in-process channel endpoints
// Messages sent on ui are delivered to subscribers of host and vice versa
// Delivery order is preserved per direction; Send never blocks
func Pair(log logger.Logger) (ui Channel, host Channel) {
	uiEnd := newInprocEndpoint(log, "ui")
	hostEnd := newInprocEndpoint(log, "host")

	routine.GoNamed(log, "channel-ui-to-host", func() {
		for msg := range uiEnd.out.Out {
			hostEnd.dispatch(msg)
		}
	})
	routine.GoNamed(log, "channel-host-to-ui", func() {
		for msg := range hostEnd.out.Out {
			uiEnd.dispatch(msg)
		}
	})

	return uiEnd, hostEnd
}

func newInprocEndpoint(log logger.Logger, name string) *inprocEndpoint {
	return &inprocEndpoint{
		logger:   log,
		name:     name,
		out:      chanx.NewUnboundedChan[Message](context.Background(), initialQueueCapacity),
		handlers: make(map[int]Handler),
	}
}

// Send enqueues a message for delivery to the peer endpoint
func (e *inprocEndpoint) Send(msg Message) error {
	e.sendMu.Lock()
	defer e.sendMu.Unlock()

	if e.closed.Load() {
		return ErrChannelClosed
	}
	e.out.In <- msg
	return nil
}

// Subscribe registers a handler for messages inbound to this endpoint
func (e *inprocEndpoint) Subscribe(fn Handler) (cancel func()) {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.handlers[id] = fn
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.handlers, id)
			e.mu.Unlock()
		})
	}
}

// Close stops this endpoint's outbound direction
// Already-enqueued messages are still drained to the peer
func (e *inprocEndpoint) Close() error {
	e.sendMu.Lock()
	defer e.sendMu.Unlock()

	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(e.out.In)
	return nil
}

// dispatch invokes every currently registered handler with the message
// Handlers are snapshotted under the read lock so a handler may cancel its
// own subscription without deadlocking
func (e *inprocEndpoint) dispatch(msg Message) {
	e.mu.RLock()
	handlers := make([]Handler, 0, len(e.handlers))
	for _, h := range e.handlers {
		handlers = append(handlers, h)
	}
	e.mu.RUnlock()

	for _, h := range handlers {
		h(msg)
	}
}
