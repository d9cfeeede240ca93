// Package bench times repeated runs of a workload and summarizes them.
package bench

import (
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"time"

	"github.com/rs/zerolog"
)

// Case is one benchmark: Setup and Teardown run around every timed Body.
type Case struct {
	Name       string
	Iterations int
	Ops        int // operations performed by one Body call

	Setup    func() error
	Body     func() error
	Teardown func()
}

// Result summarizes the timed iterations of a Case.
type Result struct {
	Name       string
	Iterations int
	Ops        int

	Mean   time.Duration
	Median time.Duration
	StdDev time.Duration
	Min    time.Duration
	Max    time.Duration

	// Throughput is Ops per second at the mean iteration time.
	Throughput float64
}

// Run executes c.Iterations timed iterations and summarizes them. It stops
// at the first Setup or Body error.
func Run(c Case, logger zerolog.Logger) (Result, error) {
	if c.Iterations <= 0 {
		return Result{}, fmt.Errorf("%s: iterations must be positive", c.Name)
	}
	if c.Body == nil {
		return Result{}, errors.New(c.Name + ": no body")
	}

	samples := make([]time.Duration, 0, c.Iterations)
	for i := 0; i < c.Iterations; i++ {
		if c.Setup != nil {
			if err := c.Setup(); err != nil {
				return Result{}, fmt.Errorf("%s: setup: %w", c.Name, err)
			}
		}

		start := time.Now()
		err := c.Body()
		elapsed := time.Since(start)

		if c.Teardown != nil {
			c.Teardown()
		}
		if err != nil {
			return Result{}, fmt.Errorf("%s: iteration %d: %w", c.Name, i+1, err)
		}

		samples = append(samples, elapsed)
		logger.Debug().
			Str("case", c.Name).
			Int("iteration", i+1).
			Dur("elapsed", elapsed).
			Msg("iteration done")
	}

	r := Summarize(c.Name, c.Ops, samples)
	logger.Info().
		Str("case", r.Name).
		Dur("mean", r.Mean).
		Dur("median", r.Median).
		Dur("stddev", r.StdDev).
		Float64("ops_per_sec", r.Throughput).
		Msg("benchmark done")
	return r, nil
}

// Summarize computes the statistics of samples. The standard deviation is
// the population one.
func Summarize(name string, ops int, samples []time.Duration) Result {
	r := Result{Name: name, Iterations: len(samples), Ops: ops}
	if len(samples) == 0 {
		return r
	}

	sorted := slices.Clone(samples)
	slices.Sort(sorted)
	n := len(sorted)

	var sum float64
	for _, s := range sorted {
		sum += float64(s)
	}
	mean := sum / float64(n)

	var sq float64
	for _, s := range sorted {
		d := float64(s) - mean
		sq += d * d
	}

	r.Mean = time.Duration(mean)
	r.StdDev = time.Duration(math.Sqrt(sq / float64(n)))
	r.Min = sorted[0]
	r.Max = sorted[n-1]
	if n%2 == 0 {
		r.Median = (sorted[n/2-1] + sorted[n/2]) / 2
	} else {
		r.Median = sorted[n/2]
	}
	if mean > 0 {
		r.Throughput = float64(ops) / (mean / float64(time.Second))
	}
	return r
}

// Fprint writes a human-readable report of r.
func (r Result) Fprint(w io.Writer) error {
	ms := func(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }
	_, err := fmt.Fprintf(w,
		"=== %s ===\n  Mean:       %.2f ms\n  Median:     %.2f ms\n  Std Dev:    %.2f ms\n  Min:        %.2f ms\n  Max:        %.2f ms\n  Throughput: %.0f ops/sec\n",
		r.Name, ms(r.Mean), ms(r.Median), ms(r.StdDev), ms(r.Min), ms(r.Max), r.Throughput)
	return err
}
