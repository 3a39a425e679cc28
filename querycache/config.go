package querycache

import "time"

// Config holds configuration for a query cache
type Config struct {
	// Name is used for logging purposes to identify the cache (required)
	Name string `mapstructure:"name"`
	// FreshFor is how long an entry counts as fresh after being set
	// default: 30 * time.Second
	FreshFor time.Duration `mapstructure:"fresh_for"`
	// RetainFor is how long an idle entry is kept before Prune removes it
	// default: 5 * time.Minute
	RetainFor time.Duration `mapstructure:"retain_for"`
}

// DefaultConfig returns the default configuration for a query cache
// Note: Name has no default value and must be explicitly set by the user
func DefaultConfig() *Config {
	return &Config{
		FreshFor:  30 * time.Second,
		RetainFor: 5 * time.Minute,
	}
}

// MergeDefaults fills zero-value fields with defaults and returns the config
func (c *Config) MergeDefaults() *Config {
	defaults := DefaultConfig()
	if c.FreshFor == 0 {
		c.FreshFor = defaults.FreshFor
	}
	if c.RetainFor == 0 {
		c.RetainFor = defaults.RetainFor
	}
	return c
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Name == "" {
		return ErrInvalidName(c.Name)
	}
	if c.FreshFor <= 0 {
		return ErrInvalidFreshFor(c.FreshFor)
	}
	if c.RetainFor <= 0 {
		return ErrInvalidRetainFor(c.RetainFor)
	}
	return nil
}
