// Package cli implements the stealpool command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/tahsin716/stealpool"
	"github.com/tahsin716/stealpool/internal/config"
	obs "github.com/tahsin716/stealpool/observability/prometheus"
)

// Version is set at build time with -ldflags "-X ...cli.Version=v1.2.3".
var Version = "dev"

type app struct {
	configPath  string
	logLevel    string
	logFormat   string
	workers     int
	metricsAddr string

	cfg    *config.FileConfig
	logger zerolog.Logger
}

// NewRootCommand builds the stealpool command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "stealpool",
		Short:         "Work-stealing task pool demos and benchmarks",
		Long:          "stealpool runs demonstration workloads and benchmarks on a lock-free work-stealing pool.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Config file (.yaml, .yml or .json)")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug|info|warn|error (overrides config)")
	flags.StringVar(&a.logFormat, "log-format", "", "Log format: console|json (overrides config)")
	flags.IntVar(&a.workers, "workers", 0, "Number of workers (default: config, then GOMAXPROCS)")
	flags.StringVar(&a.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :2112")

	root.AddCommand(newDemoCommand(a))
	root.AddCommand(newBenchCommand(a))
	root.AddCommand(newVersionCommand())
	return root
}

// init loads the config file, applies flag overrides and builds the logger.
func (a *app) init(cmd *cobra.Command) error {
	cfg := config.Default()
	if a.configPath != "" {
		loaded, err := config.LoadFile(a.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	if a.workers != 0 {
		cfg.Pool.Workers = a.workers
	}
	if a.metricsAddr != "" {
		cfg.Metrics.Addr = a.metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	logger, err := cfg.Logger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger

	// Match GOMAXPROCS to the container CPU quota before sizing the pool.
	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		logger.Debug().Msgf(format, args...)
	})); err != nil {
		logger.Warn().Err(err).Msg("failed to set GOMAXPROCS")
	}
	return nil
}

// newPool builds a pool from the loaded config. When a metrics address is
// configured the pool reports to Prometheus and the endpoint is served until
// the returned stop function is called; stop also shuts the pool down.
func (a *app) newPool(ctx context.Context) (*stealpool.Pool, func(), error) {
	opts, track, stopMetrics, err := a.instrument(ctx)
	if err != nil {
		return nil, nil, err
	}
	pool, err := stealpool.New(opts...)
	if err != nil {
		stopMetrics()
		return nil, nil, err
	}
	track(pool)
	return pool, func() {
		pool.Shutdown()
		stopMetrics()
	}, nil
}

// instrument returns the pool options for the loaded config with the logger
// attached. With a metrics address it also installs an exporter, serves the
// registry, and hands back track: the stats collector reports whichever pool
// was passed to track last. stop ends the endpoint.
func (a *app) instrument(ctx context.Context) (opts []stealpool.Option, track func(*stealpool.Pool), stop func(), err error) {
	opts, err = a.cfg.PoolOptions()
	if err != nil {
		return nil, nil, nil, err
	}
	opts = append(opts, stealpool.WithLogger(a.logger))

	if a.cfg.Metrics.Addr == "" {
		return opts, func(*stealpool.Pool) {}, func() {}, nil
	}

	reg := prom.NewRegistry()
	exporter, err := obs.NewMetricsExporter(a.cfg.Metrics.Namespace, reg, obs.ExporterOptions{})
	if err != nil {
		return nil, nil, nil, err
	}
	current := &currentPool{}
	if err := reg.Register(obs.NewStatsCollector(a.cfg.Metrics.Namespace, "cli", current)); err != nil {
		return nil, nil, nil, err
	}

	stop, err = a.serveMetrics(ctx, reg)
	if err != nil {
		return nil, nil, nil, err
	}
	return append(opts, stealpool.WithMetrics(exporter)), current.set, stop, nil
}

// currentPool lets one collector follow the pools a command creates in turn.
type currentPool struct {
	p atomic.Pointer[stealpool.Pool]
}

func (c *currentPool) set(p *stealpool.Pool) { c.p.Store(p) }

func (c *currentPool) Stats() stealpool.Stats {
	if p := c.p.Load(); p != nil {
		return p.Stats()
	}
	return stealpool.Stats{}
}

func (a *app) serveMetrics(ctx context.Context, reg *prom.Registry) (func(), error) {
	ln, err := net.Listen("tcp", a.cfg.Metrics.Addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error().Err(err).Msg("metrics server failed")
		}
	}()
	a.logger.Info().Str("addr", ln.Addr().String()).Msg("serving metrics")

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}, nil
}
