package stealpool

import (
	"runtime"
	"time"

	"github.com/rs/zerolog"
)

// Backoff describes how an idle worker escalates from yielding to sleeping.
//
// With k consecutive empty polls the worker:
//   - yields the processor while k < YieldPolls
//   - sleeps ShortSleep while k < ShortPolls
//   - sleeps MediumSleep while k < MediumPolls
//   - otherwise marks itself sleeping and sleeps LongSleep
//
// A sleeping worker is not interrupted by new work; the wake hint only
// resets its counter so it returns to the fast tier after the current sleep.
type Backoff struct {
	YieldPolls  uint64        `yaml:"yield_polls" json:"yield_polls"`
	ShortPolls  uint64        `yaml:"short_polls" json:"short_polls"`
	MediumPolls uint64        `yaml:"medium_polls" json:"medium_polls"`
	ShortSleep  time.Duration `yaml:"short_sleep" json:"short_sleep"`
	MediumSleep time.Duration `yaml:"medium_sleep" json:"medium_sleep"`
	LongSleep   time.Duration `yaml:"long_sleep" json:"long_sleep"`
}

// DefaultBackoff returns the 10/20/100 poll tiers with 10µs, 100µs and 1ms sleeps.
func DefaultBackoff() Backoff {
	return Backoff{
		YieldPolls:  10,
		ShortPolls:  20,
		MediumPolls: 100,
		ShortSleep:  10 * time.Microsecond,
		MediumSleep: 100 * time.Microsecond,
		LongSleep:   time.Millisecond,
	}
}

// Config contains all configuration options for the pool
type Config struct {
	// NumWorkers is the number of worker goroutines
	// If 0, defaults to runtime.GOMAXPROCS(0)
	NumWorkers int

	// QueueSize is the slot count of each worker's ring (usable capacity is
	// QueueSize-1). Must be a power of 2. If 0, defaults to DefaultQueueSize
	QueueSize int

	// Backoff controls the idle strategy of workers
	Backoff Backoff

	// Logger receives lifecycle and panic events. Defaults to zerolog.Nop()
	Logger zerolog.Logger

	// Metrics, if set, is notified of task execution events
	Metrics Metrics

	// PanicHandler is called with every recovered task panic, after the
	// panic has been stored in the task's Future
	PanicHandler func(*PanicError)

	// OnWorkerStart is called on the worker goroutine before its loop starts
	OnWorkerStart func(workerID int)

	// OnWorkerStop is called on the worker goroutine after its loop exits
	OnWorkerStop func(workerID int)

	// PinWorkerThreads locks each worker goroutine to its OS thread
	PinWorkerThreads bool
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		NumWorkers: 0, // resolved to runtime.GOMAXPROCS(0) by New
		QueueSize:  DefaultQueueSize,
		Backoff:    DefaultBackoff(),
		Logger:     zerolog.Nop(),
	}
}

// Validate checks the configuration and returns an error if invalid
func (c *Config) Validate() error {
	if c.NumWorkers < 0 {
		return ErrInvalidConfig("NumWorkers must be >= 0")
	}

	if c.QueueSize < 0 {
		return ErrInvalidConfig("QueueSize must be >= 0")
	}

	if c.QueueSize > 0 && (!isPowerOfTwo(c.QueueSize) || c.QueueSize < 2) {
		return ErrInvalidConfig("QueueSize must be a power of 2 and >= 2")
	}

	b := c.Backoff
	if b.YieldPolls > b.ShortPolls || b.ShortPolls > b.MediumPolls {
		return ErrInvalidConfig("Backoff poll tiers must be non-decreasing")
	}

	if b.ShortSleep < 0 || b.MediumSleep < 0 || b.LongSleep < 0 {
		return ErrInvalidConfig("Backoff sleeps must be >= 0")
	}

	return nil
}

// normalize fills zero values with defaults.
func (c *Config) normalize() {
	if c.NumWorkers == 0 {
		c.NumWorkers = runtime.GOMAXPROCS(0)
	}
	if c.QueueSize == 0 {
		c.QueueSize = DefaultQueueSize
	}
}

// Option configures a Pool.
type Option func(*Config)

// WithNumWorkers sets the number of workers.
func WithNumWorkers(n int) Option {
	return func(c *Config) { c.NumWorkers = n }
}

// WithQueueSize sets the slot count of each worker's ring.
func WithQueueSize(size int) Option {
	return func(c *Config) { c.QueueSize = size }
}

// WithBackoff replaces the idle backoff tiers.
func WithBackoff(b Backoff) Option {
	return func(c *Config) { c.Backoff = b }
}

// WithLogger sets the logger used for pool events.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithMetrics installs a metrics sink.
func WithMetrics(m Metrics) Option {
	return func(c *Config) { c.Metrics = m }
}

// WithPanicHandler installs a callback for recovered task panics.
func WithPanicHandler(h func(*PanicError)) Option {
	return func(c *Config) { c.PanicHandler = h }
}

// WithOnWorkerStart sets a hook run when each worker starts.
func WithOnWorkerStart(fn func(workerID int)) Option {
	return func(c *Config) { c.OnWorkerStart = fn }
}

// WithOnWorkerStop sets a hook run when each worker stops.
func WithOnWorkerStop(fn func(workerID int)) Option {
	return func(c *Config) { c.OnWorkerStop = fn }
}

// WithPinWorkerThreads locks worker goroutines to OS threads.
func WithPinWorkerThreads(pin bool) Option {
	return func(c *Config) { c.PinWorkerThreads = pin }
}

func isPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}
