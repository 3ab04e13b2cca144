package prometheus

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrEthical07/walletflow"
)

type fakeSource struct {
	snapshot walletflow.MetricsSnapshot
	dropped  uint64
	live     map[walletflow.FlowKind]int
}

func (f fakeSource) MetricsSnapshot() walletflow.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                        { return f.dropped }
func (f fakeSource) LiveFlowsByKind() map[walletflow.FlowKind]int {
	return f.live
}

func emptySnapshot() walletflow.MetricsSnapshot {
	return walletflow.MetricsSnapshot{
		Counters:   map[walletflow.MetricID]uint64{},
		Histograms: map[walletflow.MetricID][]uint64{},
	}
}

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{snapshot: emptySnapshot()})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderIncludesCounterHistogramAndGauge(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: walletflow.MetricsSnapshot{
			Counters: map[walletflow.MetricID]uint64{
				walletflow.MetricTransitionAccepted: 7,
			},
			Histograms: map[walletflow.MetricID][]uint64{
				walletflow.MetricTransitionLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
		live:    map[walletflow.FlowKind]int{walletflow.KindCreateWallet: 3},
	})

	out := exp.Render()
	for _, want := range []string{
		"walletflow_transition_accepted_total 7",
		"walletflow_flow_started_total 0",
		"walletflow_transition_latency_seconds_bucket{le=\"0.01\"} 1",
		"walletflow_transition_latency_seconds_bucket{le=\"+Inf\"} 36",
		"walletflow_transition_latency_seconds_count 36",
		"walletflow_audit_dropped_total 2",
		"# TYPE walletflow_live_flows gauge",
		"walletflow_live_flows{kind=\"create_wallet\"} 3",
		"walletflow_live_flows{kind=\"restore_wallet\"} 0",
		"walletflow_transition_latency_seconds_sum 0",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestRenderLiveFlowsAloneIsReported(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: emptySnapshot(),
		live:     map[walletflow.FlowKind]int{walletflow.KindRestoreWallet: 1},
	})
	if out := exp.Render(); !strings.Contains(out, `walletflow_live_flows{kind="restore_wallet"} 1`) {
		t.Fatalf("expected live gauge, got:\n%s", out)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: walletflow.MetricsSnapshot{
			Counters:   map[walletflow.MetricID]uint64{walletflow.MetricFlowStarted: 1},
			Histograms: map[walletflow.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestEscapeHelp(t *testing.T) {
	if got := escapeHelp("a\\b\nc"); got != "a\\\\b\\nc" {
		t.Fatalf("unexpected escape: %q", got)
	}
}

type failingWriter struct{ writes int }

func (f *failingWriter) Write(p []byte) (int, error) {
	f.writes++
	return 0, errors.New("closed")
}

func TestWriteToStopsAtFirstError(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: walletflow.MetricsSnapshot{
			Counters:   map[walletflow.MetricID]uint64{walletflow.MetricFlowStarted: 1},
			Histograms: map[walletflow.MetricID][]uint64{},
		},
	})

	w := &failingWriter{}
	if _, err := exp.WriteTo(w); err == nil {
		t.Fatal("expected write error")
	}
	if w.writes != 1 {
		t.Fatalf("expected a single write attempt, got %d", w.writes)
	}
}
