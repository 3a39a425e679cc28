package audit

import "time"

// ClickHouseConfig is the configuration for the ClickHouse sink
type ClickHouseConfig struct {
	// Addrs are the ClickHouse endpoints
	Addrs []string `mapstructure:"addrs"`
	// Database is the target database
	Database string `mapstructure:"database"`
	// Username for authentication
	Username string `mapstructure:"username"`
	// Password for authentication
	Password string `mapstructure:"password"`
	// Table the events are written to
	// default: "bridge_storage_events"
	Table string `mapstructure:"table"`
	// FlushSize triggers a flush when this many events are buffered
	// default: 64
	FlushSize int `mapstructure:"flush_size"`
	// FlushInterval triggers a flush after this much time regardless of size
	// default: 5 * time.Second
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	// DialTimeout for connecting
	// default: 5 * time.Second
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// DefaultClickHouseConfig returns the default configuration for the sink
func DefaultClickHouseConfig() *ClickHouseConfig {
	return &ClickHouseConfig{
		Table:         "bridge_storage_events",
		FlushSize:     64,
		FlushInterval: 5 * time.Second,
		DialTimeout:   5 * time.Second,
	}
}

// MergeDefaults fills zero-value fields with defaults and returns the config
func (c *ClickHouseConfig) MergeDefaults() *ClickHouseConfig {
	defaults := DefaultClickHouseConfig()
	if c.Table == "" {
		c.Table = defaults.Table
	}
	if c.FlushSize == 0 {
		c.FlushSize = defaults.FlushSize
	}
	if c.FlushInterval == 0 {
		c.FlushInterval = defaults.FlushInterval
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = defaults.DialTimeout
	}
	return c
}

// Validate validates the configuration
func (c *ClickHouseConfig) Validate() error {
	if len(c.Addrs) == 0 {
		return ErrInvalidConfig("addrs are required")
	}
	if c.Database == "" {
		return ErrInvalidConfig("database is required")
	}
	if c.Table == "" {
		return ErrInvalidConfig("table is required")
	}
	if c.FlushSize <= 0 {
		return ErrInvalidConfig("flush_size must be greater than 0")
	}
	if c.FlushInterval <= 0 {
		return ErrInvalidConfig("flush_interval must be greater than 0")
	}
	return nil
}
