package prometheus

import (
	"context"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tahsin716/stealpool"
)

func TestMetricsExporter_RecordMethods(t *testing.T) {
	reg := prom.NewRegistry()
	exporter, err := NewMetricsExporter("stealpool", reg, ExporterOptions{})
	require.NoError(t, err)

	exporter.RecordSubmit(stealpool.RouteLocal)
	exporter.RecordSubmit(stealpool.RouteOverflow)
	exporter.RecordSubmit(stealpool.RouteOverflow)
	exporter.RecordTaskDuration(3, 250*time.Millisecond)
	exporter.RecordTaskPanic(3)
	exporter.RecordTaskPanic(-1)
	exporter.RecordSteal(1, 2)

	assert.Equal(t, 1.0, testutil.ToFloat64(exporter.submitTotal.WithLabelValues("local")))
	assert.Equal(t, 2.0, testutil.ToFloat64(exporter.submitTotal.WithLabelValues("overflow")))
	assert.Equal(t, 1.0, testutil.ToFloat64(exporter.taskPanicTotal.WithLabelValues("3")))
	assert.Equal(t, 1.0, testutil.ToFloat64(exporter.taskPanicTotal.WithLabelValues("unknown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(exporter.stealTotal.WithLabelValues("1", "2")))

	histCount, err := histogramSampleCount(exporter.taskDurationSeconds.WithLabelValues("3"))
	require.NoError(t, err)
	assert.EqualValues(t, 1, histCount)
}

func TestMetricsExporter_NilSafe(t *testing.T) {
	var exporter *MetricsExporter
	assert.NotPanics(t, func() {
		exporter.RecordSubmit(stealpool.RouteLocal)
		exporter.RecordTaskDuration(0, time.Millisecond)
		exporter.RecordTaskPanic(0)
		exporter.RecordSteal(0, 1)
	})
}

func TestMetricsExporter_AlreadyRegisteredReuse(t *testing.T) {
	reg := prom.NewRegistry()
	first, err := NewMetricsExporter("stealpool", reg, ExporterOptions{})
	require.NoError(t, err)
	second, err := NewMetricsExporter("stealpool", reg, ExporterOptions{})
	require.NoError(t, err)

	first.RecordTaskPanic(0)
	second.RecordTaskPanic(0)

	assert.Equal(t, 2.0, testutil.ToFloat64(first.taskPanicTotal.WithLabelValues("0")))
}

func TestMetricsExporter_WiredIntoPool(t *testing.T) {
	reg := prom.NewRegistry()
	exporter, err := NewMetricsExporter("", reg, ExporterOptions{})
	require.NoError(t, err)

	pool, err := stealpool.New(stealpool.WithNumWorkers(2), stealpool.WithMetrics(exporter))
	require.NoError(t, err)
	defer pool.Shutdown()

	_, err = stealpool.Go(context.Background(), pool, func(ctx context.Context) error {
		for i := 0; i < 10; i++ {
			stealpool.Run(ctx, pool, func() {})
		}
		return nil
	}).Get()
	require.NoError(t, err)
	pool.Drain()

	assert.Equal(t, 10.0, testutil.ToFloat64(exporter.submitTotal.WithLabelValues("local")))
	assert.Equal(t, 1.0, testutil.ToFloat64(exporter.submitTotal.WithLabelValues("overflow")))
	assert.Equal(t, 2, testutil.CollectAndCount(exporter.submitTotal))
}

func histogramSampleCount(observer prom.Observer) (uint64, error) {
	collector, ok := observer.(prom.Collector)
	if !ok {
		return 0, nil
	}

	metricCh := make(chan prom.Metric, 1)
	collector.Collect(metricCh)
	close(metricCh)
	for metric := range metricCh {
		msg := &dto.Metric{}
		if err := metric.Write(msg); err != nil {
			return 0, err
		}
		if msg.Histogram != nil {
			return msg.Histogram.GetSampleCount(), nil
		}
	}
	return 0, nil
}
