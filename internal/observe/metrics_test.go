package observe

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestDecodeDurationHistogram(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.DecodeDuration.Record(ctx, 0.042)
	m.DecodeDuration.Record(ctx, 0.108)

	rm := collect(t, reader)
	met := findMetric(rm, "mimik.decode.duration")
	if met == nil {
		t.Fatal("metric mimik.decode.duration not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("mimik.decode.duration is not a histogram")
	}
	if len(hist.DataPoints) == 0 {
		t.Fatal("mimik.decode.duration has no data points")
	}
	if got := hist.DataPoints[0].Count; got != 2 {
		t.Errorf("sample count = %d, want 2", got)
	}
}

func TestDispatchCounterAttributes(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordDispatch(ctx, "keyword")
	m.RecordDispatch(ctx, "keyword")
	m.RecordDispatch(ctx, "emotion")

	rm := collect(t, reader)
	met := findMetric(rm, "mimik.dispatches")
	if met == nil {
		t.Fatal("metric mimik.dispatches not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("mimik.dispatches is not a sum")
	}
	// One data point per distinct attribute set.
	if got := len(sum.DataPoints); got != 2 {
		t.Fatalf("data points = %d, want 2", got)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	if total != 3 {
		t.Errorf("total dispatches = %d, want 3", total)
	}
}

func TestCooldownDropCounter(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.CooldownDrops.Add(ctx, 1)
	m.CooldownDrops.Add(ctx, 1)

	rm := collect(t, reader)
	met := findMetric(rm, "mimik.cooldown.drops")
	if met == nil {
		t.Fatal("metric mimik.cooldown.drops not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) == 0 {
		t.Fatal("mimik.cooldown.drops has no data")
	}
	if got := sum.DataPoints[0].Value; got != 2 {
		t.Errorf("cooldown drops = %d, want 2", got)
	}
}
