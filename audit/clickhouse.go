package audit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/plugbridge/go-kit/logger"
	"github.com/smallnest/chanx"
	"go.uber.org/zap"
)

// clickhouseSink batches events into a ClickHouse table
// Events flow through an unbounded queue so Record never blocks; a
// background loop flushes on size or interval, whichever comes first
type clickhouseSink struct {
	logger logger.Logger
	config *ClickHouseConfig

	conn   driver.Conn
	events *chanx.UnboundedChan[Event]

	wg     sync.WaitGroup
	closed atomic.Bool
}

// NewClickHouse creates a ClickHouse-backed sink and ensures the event table
// exists
func NewClickHouse(log logger.Logger, cfg *ClickHouseConfig) (Sink, error) {
	if cfg == nil {
		cfg = DefaultClickHouseConfig()
	} else {
		cfg = cfg.MergeDefaults()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: cfg.Addrs,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, ErrConnection(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, ErrConnection(err)
	}

	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			op          LowCardinality(String),
			slot_key    String,
			bytes       UInt32,
			at          DateTime64(3),
			duration_ms Float64
		) ENGINE = MergeTree ORDER BY at`, cfg.Table)
	if err := conn.Exec(ctx, ddl); err != nil {
		_ = conn.Close()
		return nil, ErrConnection(err)
	}

	s := &clickhouseSink{
		logger: log,
		config: cfg,
		conn:   conn,
		events: chanx.NewUnboundedChan[Event](context.Background(), cfg.FlushSize),
	}

	s.wg.Add(1)
	go s.flushLoop()

	log.Info("clickhouse audit sink initialized",
		zap.Strings("addrs", cfg.Addrs),
		zap.String("table", cfg.Table),
		zap.Int("flush_size", cfg.FlushSize),
		zap.Duration("flush_interval", cfg.FlushInterval),
	)
	return s, nil
}

// Record submits an event without blocking
// Events recorded after Close are dropped
func (s *clickhouseSink) Record(e Event) {
	if s.closed.Load() {
		return
	}
	s.events.In <- e
}

// Close flushes buffered events and releases the connection
func (s *clickhouseSink) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	close(s.events.In)
	s.wg.Wait()

	return s.conn.Close()
}

// flushLoop accumulates events and flushes on size or interval
func (s *clickhouseSink) flushLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.FlushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, s.config.FlushSize)
	for {
		select {
		case e, ok := <-s.events.Out:
			if !ok {
				s.flush(batch)
				return
			}
			batch = append(batch, e)
			if len(batch) >= s.config.FlushSize {
				s.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

// flush writes one batch; failures are logged and the batch is dropped
func (s *clickhouseSink) flush(batch []Event) {
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.config.FlushInterval)
	defer cancel()

	insert, err := s.conn.PrepareBatch(ctx, "INSERT INTO "+s.config.Table)
	if err != nil {
		s.logger.Error("failed to prepare audit batch", zap.Error(err))
		return
	}

	for _, e := range batch {
		if err := insert.Append(
			string(e.Op),
			e.Key,
			uint32(e.Bytes),
			e.At,
			float64(e.Duration.Microseconds())/1000.0,
		); err != nil {
			s.logger.Error("failed to append audit event", zap.Error(err))
			return
		}
	}

	if err := insert.Send(); err != nil {
		s.logger.Error("failed to send audit batch",
			zap.Int("events", len(batch)),
			zap.Error(err),
		)
		return
	}

	s.logger.Debug("flushed audit events", zap.Int("events", len(batch)))
}
