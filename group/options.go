package group

import "time"

// ErrorMode defines how the Group handles errors from its tasks
type ErrorMode int

const (
	// FailFast cancels the group on first error and returns it
	FailFast ErrorMode = iota
	// CollectAll collects all errors and returns them as an aggregate
	CollectAll
	// IgnoreErrors ignores all errors from tasks
	IgnoreErrors
)

func (m ErrorMode) String() string {
	switch m {
	case FailFast:
		return "fail-fast"
	case CollectAll:
		return "collect-all"
	case IgnoreErrors:
		return "ignore"
	default:
		return "unknown"
	}
}

// Config holds configuration for a Group
type Config struct {
	errorMode ErrorMode
	timeout   time.Duration
}

// Option configures a Group
type Option func(*Config)

// BuildConfig creates a config from options, starting with defaults
func BuildConfig(opts []Option) Config {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return config
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		errorMode: CollectAll,
	}
}

// WithErrorMode sets how errors are handled
func WithErrorMode(mode ErrorMode) Option {
	return func(c *Config) {
		c.errorMode = mode
	}
}

// WithTimeout bounds the group context. Zero or negative means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.timeout = d
	}
}
