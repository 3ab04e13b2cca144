package prometheus

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/MrEthical07/walletflow"
	"github.com/MrEthical07/walletflow/metrics/export/internaldefs"
)

const contentType = "text/plain; version=0.0.4; charset=utf-8"

type metricsSource interface {
	MetricsSnapshot() walletflow.MetricsSnapshot
	AuditDropped() uint64
	LiveFlowsByKind() map[walletflow.FlowKind]int
}

// PrometheusExporter renders engine metrics in Prometheus text exposition
// format. Live flows are a gauge labelled by flow kind.
type PrometheusExporter struct {
	source metricsSource
}

// NewPrometheusExporter creates an exporter reading from engine.
func NewPrometheusExporter(engine *walletflow.Engine) *PrometheusExporter {
	return &PrometheusExporter{source: engine}
}

func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler serves the exposition over HTTP.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = p.WriteTo(w)
	})
}

// Render returns the exposition as a string, or "" when there is nothing to
// report.
func (p *PrometheusExporter) Render() string {
	var buf bytes.Buffer
	_, _ = p.WriteTo(&buf)
	return buf.String()
}

// WriteTo writes the exposition to w. Nothing is written when metrics are
// disabled, no audit event was dropped and no flow is live.
func (p *PrometheusExporter) WriteTo(w io.Writer) (int64, error) {
	if p == nil || p.source == nil {
		return 0, nil
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	live := p.source.LiveFlowsByKind()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 && total(live) == 0 {
		return 0, nil
	}

	ew := &errWriter{w: w}
	for _, def := range internaldefs.CounterDefs {
		ew.family(def.Name, def.Help, "counter")
		ew.printf("%s %d\n", def.Name, snapshot.Counters[def.ID])
	}
	for _, def := range internaldefs.HistogramDefs {
		ew.histogram(def.Name, def.Help, snapshot.Histograms[def.ID])
	}

	ew.family("walletflow_audit_dropped_total", "Audit events lost to dispatcher backpressure.", "counter")
	ew.printf("walletflow_audit_dropped_total %d\n", dropped)

	ew.family("walletflow_live_flows", "Flow machines held in the live cache.", "gauge")
	for _, kind := range walletflow.FlowKinds() {
		ew.printf("walletflow_live_flows{kind=%q} %d\n", string(kind), live[kind])
	}
	return ew.n, ew.err
}

func total(live map[walletflow.FlowKind]int) int {
	n := 0
	for _, v := range live {
		n += v
	}
	return n
}

// errWriter keeps the first write error and ignores later writes.
type errWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	n, err := fmt.Fprintf(e.w, format, args...)
	e.n += int64(n)
	e.err = err
}

func (e *errWriter) family(name, help, kind string) {
	e.printf("# HELP %s %s\n# TYPE %s %s\n", name, escapeHelp(help), name, kind)
}

// histogram writes cumulative buckets. Snapshots keep bucket counts only, so
// _sum is always 0.
func (e *errWriter) histogram(name, help string, raw []uint64) {
	e.family(name, help, "histogram")
	cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
	for i, le := range internaldefs.HistogramBounds {
		e.printf("%s_bucket{le=%q} %d\n", name, le, cumulative[i])
	}
	e.printf("%s_count %d\n%s_sum 0\n", name, cumulative[len(cumulative)-1], name)
}

var helpEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`)

func escapeHelp(help string) string {
	return helpEscaper.Replace(help)
}
