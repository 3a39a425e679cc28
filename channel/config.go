package channel

import (
	"strings"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// KafkaConfig is the configuration for a Kafka-backed channel endpoint
type KafkaConfig struct {
	// kafka connection config
	Brokers []string `mapstructure:"brokers"`

	// OutboundTopic receives messages sent on this endpoint
	OutboundTopic string `mapstructure:"outbound_topic"`
	// InboundTopic is consumed and dispatched to subscribers
	InboundTopic string `mapstructure:"inbound_topic"`
	// GroupID is the consumer group for the inbound topic
	GroupID string `mapstructure:"group_id"`

	// Auto offset reset policy: "earliest" or "latest"
	// default: "latest"
	AutoOffsetReset string `mapstructure:"auto_offset_reset"`

	// Session timeout
	// default: 30s
	SessionTimeout time.Duration `mapstructure:"session_timeout"`

	// Poll interval for the inbound consumer loop
	// default: 100ms
	PollInterval time.Duration `mapstructure:"poll_interval"`

	// Security protocol, only PLAINTEXT is supported for now
	// default: "PLAINTEXT"
	SecurityProtocol string `mapstructure:"security_protocol"`
}

// DefaultKafkaConfig returns the default configuration for a Kafka channel
func DefaultKafkaConfig() *KafkaConfig {
	return &KafkaConfig{
		AutoOffsetReset:  "latest",
		SessionTimeout:   30 * time.Second,
		PollInterval:     100 * time.Millisecond,
		SecurityProtocol: "PLAINTEXT",
	}
}

// MergeDefaults fills zero-value fields with defaults and returns the config
func (c *KafkaConfig) MergeDefaults() *KafkaConfig {
	defaults := DefaultKafkaConfig()
	if c.AutoOffsetReset == "" {
		c.AutoOffsetReset = defaults.AutoOffsetReset
	}
	if c.SessionTimeout == 0 {
		c.SessionTimeout = defaults.SessionTimeout
	}
	if c.PollInterval == 0 {
		c.PollInterval = defaults.PollInterval
	}
	if c.SecurityProtocol == "" {
		c.SecurityProtocol = defaults.SecurityProtocol
	}
	return c
}

// Validate validates the configuration
func (c *KafkaConfig) Validate() error {
	if len(c.Brokers) == 0 {
		return ErrInvalidConfig("brokers are required")
	}
	if c.OutboundTopic == "" {
		return ErrInvalidConfig("outbound_topic is required")
	}
	if c.InboundTopic == "" {
		return ErrInvalidConfig("inbound_topic is required")
	}
	if c.OutboundTopic == c.InboundTopic {
		return ErrInvalidConfig("outbound_topic and inbound_topic must differ")
	}
	if c.GroupID == "" {
		return ErrInvalidConfig("group_id is required")
	}
	if c.AutoOffsetReset != "earliest" && c.AutoOffsetReset != "latest" {
		return ErrInvalidConfig("auto_offset_reset must be either 'earliest' or 'latest'")
	}
	if c.SessionTimeout <= 0 {
		return ErrInvalidConfig("session_timeout must be greater than 0")
	}
	if c.PollInterval <= 0 {
		return ErrInvalidConfig("poll_interval must be greater than 0")
	}
	return nil
}

// buildProducerConfigMap builds the confluent producer configuration
func (c *KafkaConfig) buildProducerConfigMap() *kafka.ConfigMap {
	return &kafka.ConfigMap{
		"bootstrap.servers": strings.Join(c.Brokers, ","),
		"security.protocol": c.SecurityProtocol,
	}
}

// buildConsumerConfigMap builds the confluent consumer configuration
func (c *KafkaConfig) buildConsumerConfigMap() *kafka.ConfigMap {
	return &kafka.ConfigMap{
		"bootstrap.servers":  strings.Join(c.Brokers, ","),
		"group.id":           c.GroupID,
		"auto.offset.reset":  c.AutoOffsetReset,
		"enable.auto.commit": true,
		"session.timeout.ms": int(c.SessionTimeout.Milliseconds()),
		"security.protocol":  c.SecurityProtocol,
	}
}
