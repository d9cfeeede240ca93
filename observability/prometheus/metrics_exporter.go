package prometheus

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/tahsin716/stealpool"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
}

// MetricsExporter adapts stealpool.Metrics to Prometheus collectors.
type MetricsExporter struct {
	submitTotal         *prom.CounterVec
	taskDurationSeconds *prom.HistogramVec
	taskPanicTotal      *prom.CounterVec
	stealTotal          *prom.CounterVec
}

var _ stealpool.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for stealpool.Metrics.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "stealpool"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.ExponentialBuckets(1e-6, 4, 12)
	}

	submitVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "submit_total",
		Help:      "Total number of accepted submissions by route.",
	}, []string{"route"})
	durationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "task_duration_seconds",
		Help:      "Task execution duration in seconds.",
		Buckets:   buckets,
	}, []string{"worker"})
	panicVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_panic_total",
		Help:      "Total number of task panics.",
	}, []string{"worker"})
	stealVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "steal_total",
		Help:      "Total number of tasks taken from a peer's ring.",
	}, []string{"thief", "victim"})

	var err error
	if submitVec, err = registerCollector(reg, submitVec); err != nil {
		return nil, err
	}
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}
	if panicVec, err = registerCollector(reg, panicVec); err != nil {
		return nil, err
	}
	if stealVec, err = registerCollector(reg, stealVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		submitTotal:         submitVec,
		taskDurationSeconds: durationVec,
		taskPanicTotal:      panicVec,
		stealTotal:          stealVec,
	}, nil
}

// RecordSubmit records an accepted submission.
func (m *MetricsExporter) RecordSubmit(route stealpool.SubmitRoute) {
	if m == nil {
		return
	}
	m.submitTotal.WithLabelValues(route.String()).Inc()
}

// RecordTaskDuration records task execution duration.
func (m *MetricsExporter) RecordTaskDuration(workerID int, d time.Duration) {
	if m == nil {
		return
	}
	m.taskDurationSeconds.WithLabelValues(workerLabel(workerID)).Observe(d.Seconds())
}

// RecordTaskPanic records task panic events.
func (m *MetricsExporter) RecordTaskPanic(workerID int) {
	if m == nil {
		return
	}
	m.taskPanicTotal.WithLabelValues(workerLabel(workerID)).Inc()
}

// RecordSteal records a successful steal.
func (m *MetricsExporter) RecordSteal(thiefID, victimID int) {
	if m == nil {
		return
	}
	m.stealTotal.WithLabelValues(workerLabel(thiefID), workerLabel(victimID)).Inc()
}

func workerLabel(id int) string {
	if id < 0 {
		return "unknown"
	}
	return strconv.Itoa(id)
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
