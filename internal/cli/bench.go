package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/tahsin716/stealpool"
	"github.com/tahsin716/stealpool/internal/bench"
)

func newBenchCommand(a *app) *cobra.Command {
	var (
		scale       float64
		iterations  int
		only        []string
		scalability []int
	)
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run the benchmark scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, track, stopMetrics, err := a.instrument(cmd.Context())
			if err != nil {
				return err
			}
			defer stopMetrics()

			newPool := func(workers int) (*stealpool.Pool, error) {
				pool, err := bench.NewPoolFactory(opts...)(workers)
				if err == nil {
					track(pool)
				}
				return pool, err
			}
			out := cmd.OutOrStdout()

			ran := 0
			for _, s := range bench.Scenarios(scale) {
				if len(only) > 0 && !slices.Contains(only, s.Name) {
					continue
				}
				if iterations > 0 {
					s.Iterations = iterations
				}
				r, err := bench.RunScenario(cmd.Context(), s, a.cfg.Pool.Workers, a.logger, newPool)
				if err != nil {
					return err
				}
				if err := r.Fprint(out); err != nil {
					return err
				}
				ran++
			}
			if len(only) > 0 && ran == 0 {
				return fmt.Errorf("no scenario matches %v", only)
			}

			if len(scalability) == 0 {
				return nil
			}
			points, err := bench.Scalability(cmd.Context(), scalability, max(1, int(100_000*scale)), newPool)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "=== Scalability ===")
			for _, p := range points {
				fmt.Fprintf(out, "Workers: %3d | Time: %8.2f ms | Throughput: %10.0f ops/sec | Speedup: %.2fx\n",
					p.Workers, float64(p.Elapsed.Microseconds())/1000, p.Throughput, p.Speedup)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&scale, "scale", 1, "Multiplier applied to every scenario's task count")
	cmd.Flags().IntVar(&iterations, "iterations", 0, "Override the iteration count of every scenario")
	cmd.Flags().StringSliceVar(&only, "scenario", nil, "Run only these scenarios (simple, computational, io-simulation, mixed, multi-producer, heavy-cpu, heavy-mixed, heavy-recursive)")
	cmd.Flags().IntSliceVar(&scalability, "scalability", nil, "Worker counts for the scalability run, e.g. 1,2,4,8")
	return cmd
}
