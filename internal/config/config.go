// Package config loads stealpool settings from YAML or JSON files.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/tahsin716/stealpool"
)

// FileConfig is the layout of a configuration file.
type FileConfig struct {
	Pool    PoolConfig    `yaml:"pool" json:"pool"`
	Log     LogConfig     `yaml:"log" json:"log"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// PoolConfig mirrors stealpool.Config. Zero values keep the pool defaults.
type PoolConfig struct {
	Workers    int           `yaml:"workers" json:"workers"`
	QueueSize  int           `yaml:"queue_size" json:"queue_size"`
	PinThreads bool          `yaml:"pin_threads" json:"pin_threads"`
	Backoff    BackoffConfig `yaml:"backoff" json:"backoff"`
}

// BackoffConfig overrides individual backoff tiers. Sleeps are duration
// strings such as "10us" or "1ms".
type BackoffConfig struct {
	YieldPolls  uint64 `yaml:"yield_polls" json:"yield_polls"`
	ShortPolls  uint64 `yaml:"short_polls" json:"short_polls"`
	MediumPolls uint64 `yaml:"medium_polls" json:"medium_polls"`
	ShortSleep  string `yaml:"short_sleep" json:"short_sleep"`
	MediumSleep string `yaml:"medium_sleep" json:"medium_sleep"`
	LongSleep   string `yaml:"long_sleep" json:"long_sleep"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"` // console or json
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Addr      string `yaml:"addr" json:"addr"`
	Namespace string `yaml:"namespace" json:"namespace"`
}

// Default returns the configuration used when no file is given.
func Default() *FileConfig {
	return &FileConfig{
		Log: LogConfig{Level: "info", Format: "console"},
	}
}

// LoadFile reads path as YAML or JSON, chosen by extension.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks values that can be judged without building a pool.
// Queue size and tier ordering are left to stealpool.Config.Validate.
func (f *FileConfig) Validate() error {
	if f.Pool.Workers < 0 {
		return fmt.Errorf("pool.workers must be non-negative")
	}
	if f.Pool.QueueSize < 0 {
		return fmt.Errorf("pool.queue_size must be non-negative")
	}
	if _, err := parseLevel(f.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(f.Log.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("unknown log format: %s", f.Log.Format)
	}
	if _, err := f.Pool.Backoff.toBackoff(); err != nil {
		return err
	}
	return nil
}

// PoolOptions converts the pool section into stealpool options.
func (f *FileConfig) PoolOptions() ([]stealpool.Option, error) {
	backoff, err := f.Pool.Backoff.toBackoff()
	if err != nil {
		return nil, err
	}

	opts := []stealpool.Option{stealpool.WithBackoff(backoff)}
	if f.Pool.Workers > 0 {
		opts = append(opts, stealpool.WithNumWorkers(f.Pool.Workers))
	}
	if f.Pool.QueueSize > 0 {
		opts = append(opts, stealpool.WithQueueSize(f.Pool.QueueSize))
	}
	if f.Pool.PinThreads {
		opts = append(opts, stealpool.WithPinWorkerThreads(true))
	}
	return opts, nil
}

// Logger builds a zerolog logger writing to w in the configured format.
func (f *FileConfig) Logger(w io.Writer) (zerolog.Logger, error) {
	level, err := parseLevel(f.Log.Level)
	if err != nil {
		return zerolog.Nop(), err
	}

	if strings.EqualFold(f.Log.Format, "json") {
		return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
	}
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

func (b BackoffConfig) toBackoff() (stealpool.Backoff, error) {
	backoff := stealpool.DefaultBackoff()

	if b.YieldPolls > 0 {
		backoff.YieldPolls = b.YieldPolls
	}
	if b.ShortPolls > 0 {
		backoff.ShortPolls = b.ShortPolls
	}
	if b.MediumPolls > 0 {
		backoff.MediumPolls = b.MediumPolls
	}

	for _, s := range []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"short_sleep", b.ShortSleep, &backoff.ShortSleep},
		{"medium_sleep", b.MediumSleep, &backoff.MediumSleep},
		{"long_sleep", b.LongSleep, &backoff.LongSleep},
	} {
		if s.raw == "" {
			continue
		}
		d, err := time.ParseDuration(s.raw)
		if err != nil {
			return backoff, fmt.Errorf("invalid backoff.%s: %w", s.name, err)
		}
		*s.dst = d
	}

	return backoff, nil
}

func parseLevel(s string) (zerolog.Level, error) {
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}
