package otel

import (
	"context"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrEthical07/walletflow"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot walletflow.MetricsSnapshot
	dropped  uint64
	live     map[walletflow.FlowKind]int
}

func (f *fakeSource) MetricsSnapshot() walletflow.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := walletflow.MetricsSnapshot{
		Counters:   make(map[walletflow.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[walletflow.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		next := make([]uint64, len(buckets))
		copy(next, buckets)
		out.Histograms[k] = next
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func (f *fakeSource) LiveFlowsByKind() map[walletflow.FlowKind]int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[walletflow.FlowKind]int, len(f.live))
	for k, v := range f.live {
		out[k] = v
	}
	return out
}

func newReader() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

// findPoint returns the value of the named metric's data point whose
// attribute key equals value. An empty key matches the first point.
func findPoint(rm metricdata.ResourceMetrics, name, key, value string) (int64, bool) {
	match := func(set attribute.Set) bool {
		if key == "" {
			return true
		}
		v, ok := set.Value(attribute.Key(key))
		return ok && v.AsString() == value
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			var points []metricdata.DataPoint[int64]
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				points = data.DataPoints
			case metricdata.Gauge[int64]:
				points = data.DataPoints
			}
			for _, dp := range points {
				if match(dp.Attributes) {
					return dp.Value, true
				}
			}
		}
	}
	return 0, false
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader, provider := newReader()
	meter := provider.Meter("walletflow-test")

	src := &fakeSource{
		snapshot: walletflow.MetricsSnapshot{
			Counters: map[walletflow.MetricID]uint64{
				walletflow.MetricFlowStarted: 3,
			},
			Histograms: map[walletflow.MetricID][]uint64{
				walletflow.MetricTransitionLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
		live:    map[walletflow.FlowKind]int{walletflow.KindRestoreWallet: 4},
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	checks := []struct {
		name, key, value string
		want             int64
	}{
		{name: "walletflow_flow_started_total", want: 3},
		{name: "walletflow_transition_latency_seconds_count", want: 8},
		{name: "walletflow_transition_latency_seconds_bucket", key: "le", value: "0.05", want: 2},
		{name: "walletflow_transition_latency_seconds_bucket", key: "le", value: "+Inf", want: 8},
		{name: "walletflow_audit_dropped_total", want: 1},
		{name: "walletflow_live_flows", key: "kind", value: "restore_wallet", want: 4},
		{name: "walletflow_live_flows", key: "kind", value: "create_wallet", want: 0},
	}
	for _, c := range checks {
		got, ok := findPoint(rm, c.name, c.key, c.value)
		if !ok {
			t.Fatalf("metric %s{%s=%q} not collected", c.name, c.key, c.value)
		}
		if got != c.want {
			t.Fatalf("%s{%s=%q}: expected %d, got %d", c.name, c.key, c.value, c.want, got)
		}
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	_, provider := newReader()
	meter := provider.Meter("walletflow-test")

	if _, err := NewOTelExporterFromSource(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewOTelExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
	if _, err := NewOTelExporter(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource for nil engine, got %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newReader()
	meter := provider.Meter("walletflow-test")

	src := &fakeSource{
		snapshot: walletflow.MetricsSnapshot{
			Counters: map[walletflow.MetricID]uint64{
				walletflow.MetricTransitionAccepted: 1,
			},
			Histograms: map[walletflow.MetricID][]uint64{},
		},
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[walletflow.MetricTransitionAccepted] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
