package store

import (
	"fmt"
	"time"
)

// FileConfig is the configuration for the file-backed store
type FileConfig struct {
	// Path is the slot file location (required)
	Path string `mapstructure:"path"`
	// FlushOnWrite makes every Set/Delete flush immediately instead of
	// waiting for the janitor or Close
	// default: false
	FlushOnWrite bool `mapstructure:"flush_on_write"`
}

// Validate validates the configuration
func (c *FileConfig) Validate() error {
	if c.Path == "" {
		return ErrInvalidConfig("path is required")
	}
	return nil
}

// MySQLConfig is the configuration for the MySQL-backed store
type MySQLConfig struct {
	// Host is the host of the database
	Host string `mapstructure:"host"`
	// Port is the port of the database
	// default: 3306
	Port int `mapstructure:"port"`
	// User is the user of the database
	User string `mapstructure:"user"`
	// Password is the password of the database
	Password string `mapstructure:"password"`
	// Database is the name of the database
	Database string `mapstructure:"database"`
	// MaxOpenConns is the maximum number of open connections
	// default: 10
	MaxOpenConns int `mapstructure:"max_open_conns"`
	// MaxIdleConns is the maximum number of idle connections
	// default: 5
	MaxIdleConns int `mapstructure:"max_idle_conns"`
	// ConnMaxLifetime is the maximum lifetime of a connection
	// default: 1800 * time.Second
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	// LogLevel is the gorm log level: silent, error, warn, info
	// default: "warn"
	LogLevel string `mapstructure:"log_level"`
	// SlowThreshold is the threshold for slow query logging
	// default: 1 * time.Second
	SlowThreshold time.Duration `mapstructure:"slow_threshold"`
	// Charset is the connection charset
	// default: "utf8mb4"
	Charset string `mapstructure:"charset"`
}

// DefaultMySQLConfig returns the default configuration for the MySQL store
func DefaultMySQLConfig() *MySQLConfig {
	return &MySQLConfig{
		Port:            3306,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 1800 * time.Second,
		LogLevel:        "warn",
		SlowThreshold:   1 * time.Second,
		Charset:         "utf8mb4",
	}
}

// MergeDefaults fills zero-value fields with defaults and returns the config
func (c *MySQLConfig) MergeDefaults() *MySQLConfig {
	defaults := DefaultMySQLConfig()
	if c.Port == 0 {
		c.Port = defaults.Port
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = defaults.MaxOpenConns
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = defaults.MaxIdleConns
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = defaults.ConnMaxLifetime
	}
	if c.LogLevel == "" {
		c.LogLevel = defaults.LogLevel
	}
	if c.SlowThreshold == 0 {
		c.SlowThreshold = defaults.SlowThreshold
	}
	if c.Charset == "" {
		c.Charset = defaults.Charset
	}
	return c
}

// Validate validates the configuration
func (c *MySQLConfig) Validate() error {
	if c.Host == "" {
		return ErrInvalidConfig("host is required")
	}
	if c.Port <= 0 {
		return ErrInvalidConfig("port must be greater than 0")
	}
	if c.User == "" {
		return ErrInvalidConfig("user is required")
	}
	if c.Database == "" {
		return ErrInvalidConfig("database is required")
	}
	if c.MaxOpenConns <= 0 {
		return ErrInvalidConfig("max_open_conns must be greater than 0")
	}
	if c.MaxIdleConns < 0 {
		return ErrInvalidConfig("max_idle_conns must not be negative")
	}
	return nil
}

// DSN builds the MySQL connection string
func (c *MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Database, c.Charset,
	)
}

// JanitorConfig is the configuration for scheduled store maintenance
type JanitorConfig struct {
	// Spec is the cron schedule for maintenance runs
	// default: "@every 30s"
	Spec string `mapstructure:"spec"`
	// Retention drops slots not written for this long; 0 disables sweeping
	// default: 0
	Retention time.Duration `mapstructure:"retention"`
	// Timeout bounds each maintenance run
	// default: 10 * time.Second
	Timeout time.Duration `mapstructure:"timeout"`
}

// DefaultJanitorConfig returns the default configuration for the janitor
func DefaultJanitorConfig() *JanitorConfig {
	return &JanitorConfig{
		Spec:    "@every 30s",
		Timeout: 10 * time.Second,
	}
}

// MergeDefaults fills zero-value fields with defaults and returns the config
func (c *JanitorConfig) MergeDefaults() *JanitorConfig {
	defaults := DefaultJanitorConfig()
	if c.Spec == "" {
		c.Spec = defaults.Spec
	}
	if c.Timeout == 0 {
		c.Timeout = defaults.Timeout
	}
	return c
}

// Validate validates the configuration
func (c *JanitorConfig) Validate() error {
	if c.Spec == "" {
		return ErrInvalidConfig("spec is required")
	}
	if c.Retention < 0 {
		return ErrInvalidConfig("retention must not be negative")
	}
	if c.Timeout <= 0 {
		return ErrInvalidConfig("timeout must be greater than 0")
	}
	return nil
}
