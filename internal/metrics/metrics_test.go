package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/ubc-cic/expertise-dashboard/pkg/types"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumOf(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestInstruments_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	in, err := New(mp)
	require.NoError(t, err)

	ctx := context.Background()
	in.RecordAuth(ctx, types.AuthAllowed)
	in.RecordAuth(ctx, types.AuthDenied)
	in.RecordRedeploy(ctx, "200")
	in.RecordTask(ctx, "graph-publish", "layout", types.TaskSucceeded, 2*time.Second)
	in.RecordRun(ctx, "graph-publish", types.RunCompleted)

	got := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, got["edgeauth.decisions"]))
	assert.Equal(t, int64(1), sumOf(t, got["redeploy.requests"]))
	assert.Equal(t, int64(1), sumOf(t, got["pipeline.task.runs"]))
	assert.Equal(t, int64(1), sumOf(t, got["pipeline.runs"]))
	assert.Contains(t, got, "pipeline.task.duration")
}

func TestInstruments_NilIsNoop(t *testing.T) {
	var in *Instruments
	assert.NotPanics(t, func() {
		in.RecordAuth(context.Background(), types.AuthAllowed)
		in.RecordRedeploy(context.Background(), "error")
		in.RecordTask(context.Background(), "p", "t", types.TaskFailed, time.Second)
		in.RecordRun(context.Background(), "p", types.RunFailed)
	})
}

func TestSetup_NoEndpointIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), TelemetryConfig{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
