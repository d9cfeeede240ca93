package cli

import (
	"bytes"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tahsin716/stealpool/internal/workload"
)

func newDemoCommand(a *app) *cobra.Command {
	demo := &cobra.Command{
		Use:   "demo",
		Short: "Run a demonstration workload",
	}
	demo.AddCommand(
		newRaytraceCommand(a),
		newFractalCommand(a),
		newSortCommand(a),
		newPiCommand(a),
		newGrepCommand(a),
		newRecursiveCommand(a),
	)
	return demo
}

// saveImage writes img as PNG or PPM depending on the extension of path.
func saveImage(path string, img *workload.Image) error {
	var encode func(io.Writer) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		encode = img.WritePNG
	case ".ppm":
		encode = img.WritePPM
	default:
		return fmt.Errorf("unsupported image format: %s", path)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func newRaytraceCommand(a *app) *cobra.Command {
	var (
		width, height int
		out           string
	)
	cmd := &cobra.Command{
		Use:   "raytrace",
		Short: "Render a sphere scene, one task per row",
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, stop, err := a.newPool(cmd.Context())
			if err != nil {
				return err
			}
			defer stop()

			start := time.Now()
			img, err := workload.RenderSpheres(cmd.Context(), pool, workload.DefaultScene(), width, height)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rendered %dx%d in %v\n", width, height, time.Since(start))

			if out == "" {
				return nil
			}
			if err := saveImage(out, img); err != nil {
				return fmt.Errorf("save image: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Image saved to %s\n", out)
			return nil
		},
	}
	cmd.Flags().IntVar(&width, "width", 1280, "Image width")
	cmd.Flags().IntVar(&height, "height", 720, "Image height")
	cmd.Flags().StringVar(&out, "out", "", "Output file (.ppm or .png); empty skips saving")
	return cmd
}

func newFractalCommand(a *app) *cobra.Command {
	var (
		width, height, maxIter int
		out                    string
	)
	cmd := &cobra.Command{
		Use:   "fractal",
		Short: "Render the Mandelbrot set, one task per row",
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, stop, err := a.newPool(cmd.Context())
			if err != nil {
				return err
			}
			defer stop()

			start := time.Now()
			img, err := workload.Mandelbrot(cmd.Context(), pool, width, height, maxIter)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rendered %dx%d (max %d iterations) in %v\n", width, height, maxIter, time.Since(start))
			stats := pool.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "Stolen tasks: %d of %d\n", stats.Stolen, stats.Completed)

			if out == "" {
				return nil
			}
			if err := saveImage(out, img); err != nil {
				return fmt.Errorf("save image: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Image saved to %s\n", out)
			return nil
		},
	}
	cmd.Flags().IntVar(&width, "width", 1200, "Image width")
	cmd.Flags().IntVar(&height, "height", 800, "Image height")
	cmd.Flags().IntVar(&maxIter, "max-iter", 500, "Iteration limit per pixel")
	cmd.Flags().StringVar(&out, "out", "", "Output file (.ppm or .png); empty skips saving")
	return cmd
}

func newSortCommand(a *app) *cobra.Command {
	var (
		size, chunk int
		seed        uint64
	)
	cmd := &cobra.Command{
		Use:   "sort",
		Short: "Sort random integers in parallel chunks, then merge",
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, stop, err := a.newPool(cmd.Context())
			if err != nil {
				return err
			}
			defer stop()

			rng := rand.New(rand.NewPCG(seed, 0))
			data := make([]int, size)
			for i := range data {
				data[i] = rng.IntN(10001)
			}

			start := time.Now()
			if err := workload.ParallelSort(cmd.Context(), pool, data, chunk); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sorted %d integers in %v\n", size, time.Since(start))

			if !slices.IsSorted(data) {
				return fmt.Errorf("result is not sorted")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "The array is correctly sorted.")
			return nil
		},
	}
	cmd.Flags().IntVar(&size, "size", 10_000_000, "Number of integers")
	cmd.Flags().IntVar(&chunk, "chunk", 1_000_000, "Integers per sort task")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "Random seed")
	return cmd
}

func newPiCommand(a *app) *cobra.Command {
	var (
		points int64
		tasks  int
		seed   uint64
	)
	cmd := &cobra.Command{
		Use:   "pi",
		Short: "Estimate pi by Monte Carlo sampling",
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, stop, err := a.newPool(cmd.Context())
			if err != nil {
				return err
			}
			defer stop()

			start := time.Now()
			pi, err := workload.EstimatePi(cmd.Context(), pool, points, tasks, seed)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pi estimate: %.6f (%d points in %v)\n", pi, points, time.Since(start))
			return nil
		},
	}
	cmd.Flags().Int64Var(&points, "points", 100_000_000, "Total number of samples")
	cmd.Flags().IntVar(&tasks, "tasks", 100, "Number of tasks")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "Random seed")
	return cmd
}

func newGrepCommand(a *app) *cobra.Command {
	var (
		file, pattern string
		lines, chunk  int
	)
	cmd := &cobra.Command{
		Use:   "grep",
		Short: "Count lines matching a pattern, in chunks",
		RunE: func(cmd *cobra.Command, args []string) error {
			var corpus []string
			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				corpus, err = workload.ReadLines(f)
				f.Close()
				if err != nil {
					return fmt.Errorf("read %s: %w", file, err)
				}
			} else {
				var buf bytes.Buffer
				if _, err := workload.GenerateCorpus(&buf, lines); err != nil {
					return err
				}
				var err error
				if corpus, err = workload.ReadLines(&buf); err != nil {
					return err
				}
			}

			pool, stop, err := a.newPool(cmd.Context())
			if err != nil {
				return err
			}
			defer stop()

			start := time.Now()
			n, err := workload.Grep(cmd.Context(), pool, corpus, pattern, chunk)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Matches: %d of %d lines in %v\n", n, len(corpus), time.Since(start))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "File to search; empty searches a generated corpus")
	cmd.Flags().StringVar(&pattern, "pattern", workload.Keyword, "Regular expression")
	cmd.Flags().IntVar(&lines, "lines", 5_000_000, "Lines in the generated corpus")
	cmd.Flags().IntVar(&chunk, "chunk", 100_000, "Lines per task")
	return cmd
}

func newRecursiveCommand(a *app) *cobra.Command {
	var n, cutoff int64
	cmd := &cobra.Command{
		Use:   "recursive",
		Short: "Sum 0..n-1 by recursive splitting inside tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, stop, err := a.newPool(cmd.Context())
			if err != nil {
				return err
			}
			defer stop()

			start := time.Now()
			sum, err := workload.RecursiveSum(cmd.Context(), pool, 0, n, cutoff)
			if err != nil {
				return err
			}
			stats := pool.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "Sum: %d in %v (local submits %d, stolen %d)\n",
				sum, time.Since(start), stats.LocalSubmits, stats.Stolen)
			return nil
		},
	}
	cmd.Flags().Int64Var(&n, "n", 100_000_000, "Upper bound (exclusive)")
	cmd.Flags().Int64Var(&cutoff, "cutoff", 1000, "Largest range summed without splitting")
	return cmd
}
