// Package persist implements the cache persistence bridge between a query
// cache and host-provided storage, over an asynchronous message channel.
//
// The channel has no built-in request/response correlation and no delivery
// guarantee, so the persistor correlates the one restore reply it cares about
// by storage key, tears the listener down as soon as either the reply or a
// fixed timeout fires, and treats every failure as "no cached data". A cold
// start is always a valid state; nothing in this package ever returns an
// error to its caller.
package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/plugbridge/go-kit/channel"
	"github.com/plugbridge/go-kit/logger"
	"github.com/plugbridge/go-kit/querycache"
	"go.uber.org/zap"
)

// CacheKey is the fixed storage slot key shared by all instances of the
// bridge within one plugin
const CacheKey = "tanstack_query_cache"

// RestoreTimeout bounds how long Restore waits for the host's reply before
// falling back to an empty result. It is deliberately not a config knob
const RestoreTimeout = 500 * time.Millisecond

// Persistor saves, restores and removes a serialized cache snapshot through
// the message channel. No method ever returns an error: restoration failure
// must degrade to "no cached data", never to a fault the caller has to handle
type Persistor interface {
	// Persist sends the snapshot to host storage, fire-and-forget
	// Exactly one outbound message is sent per call
	Persist(snapshot *querycache.Snapshot)

	// Restore requests the stored snapshot and waits for the host's reply,
	// the restore timeout, or ctx cancellation, whichever fires first
	// It returns nil when nothing usable was stored
	Restore(ctx context.Context) *querycache.Snapshot

	// Remove clears the storage slot, fire-and-forget
	Remove()
}

// channelPersistor implements Persistor over a channel.Channel
type channelPersistor struct {
	logger  logger.Logger
	ch      channel.Channel
	key     string
	timeout time.Duration

	// Serializes Restore calls. The reply is correlated by key alone, so two
	// concurrent restores could both match one reply; one at a time keeps the
	// correlation unambiguous
	restoreMu sync.Mutex
}

// New creates a persistor bound to the fixed cache key
func New(log logger.Logger, ch channel.Channel) (Persistor, error) {
	if ch == nil {
		return nil, ErrNilChannel
	}
	return &channelPersistor{
		logger:  log,
		ch:      ch,
		key:     CacheKey,
		timeout: RestoreTimeout,
	}, nil
}

// Persist sends the snapshot to host storage
// Serialization or transport failures are logged and swallowed; the host
// write itself is invisible to this layer either way
func (p *channelPersistor) Persist(snapshot *querycache.Snapshot) {
	value, err := json.Marshal(snapshot)
	if err != nil {
		p.logger.Error("failed to serialize cache snapshot",
			zap.String("key", p.key),
			zap.Error(err),
		)
		return
	}

	if err := p.ch.Send(channel.Message{
		Type:  channel.TypeSetStorage,
		Key:   p.key,
		Value: value,
	}); err != nil {
		p.logger.Error("failed to send cache snapshot",
			zap.String("key", p.key),
			zap.Error(err),
		)
	}
}

// Restore requests the stored snapshot and races the host's reply against
// the restore timeout. The reply listener is deregistered as soon as either
// branch fires, so a late reply is a harmless no-op
func (p *channelPersistor) Restore(ctx context.Context) *querycache.Snapshot {
	p.restoreMu.Lock()
	defer p.restoreMu.Unlock()

	// Buffered so the handler never blocks the channel's dispatch, and a
	// reply racing the timeout is simply dropped
	reply := make(chan channel.Message, 1)
	cancel := p.ch.Subscribe(func(msg channel.Message) {
		if msg.Type != channel.TypeStorageData || msg.Key != p.key {
			return
		}
		select {
		case reply <- msg:
		default:
		}
	})
	defer cancel()

	if err := p.ch.Send(channel.Message{
		Type: channel.TypeGetStorage,
		Key:  p.key,
	}); err != nil {
		p.logger.Error("failed to request cached snapshot",
			zap.String("key", p.key),
			zap.Error(err),
		)
		return nil
	}

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case msg := <-reply:
		return p.decode(msg.Value)
	case <-timer.C:
		p.logger.Debug("restore timed out, starting cold",
			zap.String("key", p.key),
			zap.Duration("timeout", p.timeout),
		)
		return nil
	case <-ctx.Done():
		p.logger.Debug("restore canceled, starting cold", zap.String("key", p.key))
		return nil
	}
}

// Remove clears the storage slot by writing a null value
func (p *channelPersistor) Remove() {
	if err := p.ch.Send(channel.Message{
		Type:  channel.TypeSetStorage,
		Key:   p.key,
		Value: nil,
	}); err != nil {
		p.logger.Error("failed to clear cached snapshot",
			zap.String("key", p.key),
			zap.Error(err),
		)
	}
}

var jsonNull = []byte("null")

// decode turns a reply payload into a snapshot
// Null, absent, malformed and entry-less payloads all mean "nothing cached"
func (p *channelPersistor) decode(value json.RawMessage) *querycache.Snapshot {
	if len(value) == 0 || bytes.Equal(bytes.TrimSpace(value), jsonNull) {
		return nil
	}

	var snapshot querycache.Snapshot
	if err := json.Unmarshal(value, &snapshot); err != nil {
		p.logger.Warn("discarding malformed cached snapshot",
			zap.String("key", p.key),
			zap.Int("bytes", len(value)),
			zap.Error(err),
		)
		return nil
	}
	if snapshot.Empty() {
		return nil
	}
	return &snapshot
}
