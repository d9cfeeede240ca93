package prometheus

import (
	"strconv"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/tahsin716/stealpool"
)

// StatsProvider provides current pool stats snapshots.
type StatsProvider interface {
	Stats() stealpool.Stats
}

// StatsCollector exports a pool's Stats snapshot at scrape time.
type StatsCollector struct {
	provider StatsProvider

	submitted     *prom.Desc
	completed     *prom.Desc
	panicked      *prom.Desc
	rejected      *prom.Desc
	swept         *prom.Desc
	executing     *prom.Desc
	overflowDepth *prom.Desc
	workers       *prom.Desc

	workerExecuted   *prom.Desc
	workerStolen     *prom.Desc
	workerQueueDepth *prom.Desc
	workerSleeping   *prom.Desc
}

var _ prom.Collector = (*StatsCollector)(nil)

// NewStatsCollector creates a collector reading provider on every scrape.
// poolName becomes a constant "pool" label so several pools can share a
// registry.
func NewStatsCollector(namespace, poolName string, provider StatsProvider) *StatsCollector {
	if namespace == "" {
		namespace = "stealpool"
	}
	constLabels := prom.Labels{"pool": normalizeLabel(poolName, "default")}
	desc := func(name, help string, labels ...string) *prom.Desc {
		return prom.NewDesc(prom.BuildFQName(namespace, "", name), help, labels, constLabels)
	}

	return &StatsCollector{
		provider:         provider,
		submitted:        desc("tasks_submitted_total", "Tasks accepted since creation."),
		completed:        desc("tasks_completed_total", "Tasks that ran, including panicked ones."),
		panicked:         desc("tasks_panicked_total", "Tasks whose closure panicked."),
		rejected:         desc("tasks_rejected_total", "Submissions refused after the pool stopped."),
		swept:            desc("tasks_swept_total", "Tasks dropped by shutdown without running."),
		executing:        desc("tasks_executing", "Tasks currently inside their closure."),
		overflowDepth:    desc("overflow_depth", "Advisory size of the overflow stack."),
		workers:          desc("workers", "Number of workers."),
		workerExecuted:   desc("worker_executed_total", "Tasks run per worker.", "worker"),
		workerStolen:     desc("worker_stolen_total", "Tasks stolen per worker.", "worker"),
		workerQueueDepth: desc("worker_queue_depth", "Tasks in each worker's ring.", "worker"),
		workerSleeping:   desc("worker_sleeping", "Worker in its long backoff sleep (1) or not (0).", "worker"),
	}
}

// Describe implements prom.Collector.
func (c *StatsCollector) Describe(ch chan<- *prom.Desc) {
	for _, d := range []*prom.Desc{
		c.submitted, c.completed, c.panicked, c.rejected, c.swept,
		c.executing, c.overflowDepth, c.workers,
		c.workerExecuted, c.workerStolen, c.workerQueueDepth, c.workerSleeping,
	} {
		ch <- d
	}
}

// Collect implements prom.Collector.
func (c *StatsCollector) Collect(ch chan<- prom.Metric) {
	s := c.provider.Stats()

	ch <- prom.MustNewConstMetric(c.submitted, prom.CounterValue, float64(s.Submitted))
	ch <- prom.MustNewConstMetric(c.completed, prom.CounterValue, float64(s.Completed))
	ch <- prom.MustNewConstMetric(c.panicked, prom.CounterValue, float64(s.Panicked))
	ch <- prom.MustNewConstMetric(c.rejected, prom.CounterValue, float64(s.Rejected))
	ch <- prom.MustNewConstMetric(c.swept, prom.CounterValue, float64(s.Swept))
	ch <- prom.MustNewConstMetric(c.executing, prom.GaugeValue, float64(s.Executing))
	ch <- prom.MustNewConstMetric(c.overflowDepth, prom.GaugeValue, float64(s.OverflowDepth))
	ch <- prom.MustNewConstMetric(c.workers, prom.GaugeValue, float64(s.NumWorkers))

	for _, w := range s.Workers {
		id := strconv.Itoa(w.WorkerID)
		sleeping := 0.0
		if w.Sleeping {
			sleeping = 1
		}
		ch <- prom.MustNewConstMetric(c.workerExecuted, prom.CounterValue, float64(w.Executed), id)
		ch <- prom.MustNewConstMetric(c.workerStolen, prom.CounterValue, float64(w.Stolen), id)
		ch <- prom.MustNewConstMetric(c.workerQueueDepth, prom.GaugeValue, float64(w.QueueDepth), id)
		ch <- prom.MustNewConstMetric(c.workerSleeping, prom.GaugeValue, sleeping, id)
	}
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
