// Package workload holds demonstration workloads for the pool: CPU-bound
// rendering, chunked sorting, Monte Carlo sampling, line grepping and
// recursive fan-out. Each one spreads its work over a stealpool.Pool and is
// used by the CLI demos and the benchmark harness.
package workload
