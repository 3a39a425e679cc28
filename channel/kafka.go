package channel

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/plugbridge/go-kit/logger"
	"go.uber.org/zap"
)

// kafkaChannel is a channel endpoint bridged over a Kafka broker
// Outbound messages are produced to one topic, inbound messages consumed
// from another; messages are keyed by the storage key so per-key ordering
// is preserved across partitions
type kafkaChannel struct {
	logger logger.Logger
	config *KafkaConfig

	producer *kafka.Producer
	consumer *kafka.Consumer

	mu       sync.RWMutex
	handlers map[int]Handler
	nextID   int

	done   chan struct{}
	wg     sync.WaitGroup
	closed atomic.Bool
}

// NewKafka creates a channel endpoint backed by a Kafka broker
// The endpoint produces to cfg.OutboundTopic and dispatches cfg.InboundTopic
// to subscribers
func NewKafka(log logger.Logger, cfg *KafkaConfig) (Channel, error) {
	if cfg == nil {
		cfg = DefaultKafkaConfig()
	} else {
		cfg = cfg.MergeDefaults()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	producer, err := kafka.NewProducer(cfg.buildProducerConfigMap())
	if err != nil {
		return nil, ErrTransport(err)
	}

	consumer, err := kafka.NewConsumer(cfg.buildConsumerConfigMap())
	if err != nil {
		producer.Close()
		return nil, ErrTransport(err)
	}

	if err := consumer.Subscribe(cfg.InboundTopic, nil); err != nil {
		producer.Close()
		_ = consumer.Close()
		return nil, ErrTransport(err)
	}

	kc := &kafkaChannel{
		logger:   log,
		config:   cfg,
		producer: producer,
		consumer: consumer,
		handlers: make(map[int]Handler),
		done:     make(chan struct{}),
	}

	kc.wg.Add(2)
	go kc.consumeLoop()
	go kc.deliveryLoop()

	log.Info("kafka channel endpoint initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("outbound_topic", cfg.OutboundTopic),
		zap.String("inbound_topic", cfg.InboundTopic),
	)
	return kc, nil
}

// Send produces the message to the outbound topic
func (kc *kafkaChannel) Send(msg Message) error {
	if kc.closed.Load() {
		return ErrChannelClosed
	}

	value, err := json.Marshal(msg)
	if err != nil {
		return ErrTransport(err)
	}

	topic := kc.config.OutboundTopic
	err = kc.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(msg.Key),
		Value: value,
	}, nil)
	if err != nil {
		return ErrTransport(err)
	}
	return nil
}

// Subscribe registers a handler for messages from the inbound topic
func (kc *kafkaChannel) Subscribe(fn Handler) (cancel func()) {
	kc.mu.Lock()
	id := kc.nextID
	kc.nextID++
	kc.handlers[id] = fn
	kc.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			kc.mu.Lock()
			delete(kc.handlers, id)
			kc.mu.Unlock()
		})
	}
}

// Close stops the consumer loop, flushes pending produces and releases the
// underlying clients. It can be called multiple times safely
func (kc *kafkaChannel) Close() error {
	if !kc.closed.CompareAndSwap(false, true) {
		return nil
	}

	close(kc.done)
	kc.wg.Wait()

	remaining := kc.producer.Flush(5000)
	if remaining > 0 {
		kc.logger.Warn("kafka channel closed with undelivered messages", zap.Int("remaining", remaining))
	}
	kc.producer.Close()

	if err := kc.consumer.Close(); err != nil {
		return ErrTransport(err)
	}
	return nil
}

// consumeLoop polls the inbound topic and dispatches decoded messages
func (kc *kafkaChannel) consumeLoop() {
	defer kc.wg.Done()

	pollMs := int(kc.config.PollInterval.Milliseconds())
	for {
		select {
		case <-kc.done:
			return
		default:
		}

		ev := kc.consumer.Poll(pollMs)
		if ev == nil {
			continue
		}

		switch e := ev.(type) {
		case *kafka.Message:
			var msg Message
			if err := json.Unmarshal(e.Value, &msg); err != nil {
				kc.logger.Warn("dropping malformed channel message",
					zap.Error(err),
					zap.Int("bytes", len(e.Value)),
				)
				continue
			}
			kc.dispatch(msg)
		case kafka.Error:
			kc.logger.Error("kafka channel error",
				zap.Int("code", int(e.Code())),
				zap.String("error", e.String()),
			)
		}
	}
}

// deliveryLoop drains producer delivery reports and logs failures
// Sends are fire-and-forget so failures are logged, never surfaced
func (kc *kafkaChannel) deliveryLoop() {
	defer kc.wg.Done()

	for {
		select {
		case <-kc.done:
			return
		case e := <-kc.producer.Events():
			if m, ok := e.(*kafka.Message); ok && m.TopicPartition.Error != nil {
				kc.logger.Error("failed to deliver channel message",
					zap.Error(m.TopicPartition.Error),
					zap.String("key", string(m.Key)),
				)
			}
		}
	}
}

// dispatch invokes every currently registered handler with the message
func (kc *kafkaChannel) dispatch(msg Message) {
	kc.mu.RLock()
	handlers := make([]Handler, 0, len(kc.handlers))
	for _, h := range kc.handlers {
		handlers = append(handlers, h)
	}
	kc.mu.RUnlock()

	for _, h := range handlers {
		h(msg)
	}
}
