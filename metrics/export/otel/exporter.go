package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrEthical07/walletflow"
	"github.com/MrEthical07/walletflow/metrics/export/internaldefs"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() walletflow.MetricsSnapshot
	AuditDropped() uint64
	LiveFlowsByKind() map[walletflow.FlowKind]int
}

type counterInstrument struct {
	id  walletflow.MetricID
	ins metric.Int64ObservableCounter
}

// histogramInstrument reports cumulative bucket counts on one gauge, one
// data point per upper bound carried in the "le" attribute.
type histogramInstrument struct {
	id      walletflow.MetricID
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

// OTelExporter publishes engine metrics as observable instruments read in a
// single callback per collection cycle.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration

	counters     []counterInstrument
	histograms   []histogramInstrument
	auditDropped metric.Int64ObservableCounter
	liveFlows    metric.Int64ObservableGauge

	leAttrs   []metric.ObserveOption
	kindAttrs map[walletflow.FlowKind]metric.ObserveOption
}

func NewOTelExporter(meter metric.Meter, engine *walletflow.Engine) (*OTelExporter, error) {
	if engine == nil {
		return nil, ErrNilSource
	}
	return NewOTelExporterFromSource(meter, engine)
}

func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{
		source:    source,
		leAttrs:   make([]metric.ObserveOption, len(internaldefs.HistogramBounds)),
		kindAttrs: make(map[walletflow.FlowKind]metric.ObserveOption),
	}
	for i, le := range internaldefs.HistogramBounds {
		e.leAttrs[i] = metric.WithAttributes(attribute.String("le", le))
	}
	for _, kind := range walletflow.FlowKinds() {
		e.kindAttrs[kind] = metric.WithAttributes(attribute.String("kind", string(kind)))
	}

	var observables []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, counterInstrument{id: def.ID, ins: ins})
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		buckets, err := meter.Int64ObservableGauge(def.Name+"_bucket",
			metric.WithDescription(def.Help+" Cumulative count per upper bound."))
		if err != nil {
			return nil, fmt.Errorf("create histogram buckets %s: %w", def.Name, err)
		}
		count, err := meter.Int64ObservableGauge(def.Name+"_count",
			metric.WithDescription(def.Help+" Total samples."))
		if err != nil {
			return nil, fmt.Errorf("create histogram count %s: %w", def.Name, err)
		}
		e.histograms = append(e.histograms, histogramInstrument{id: def.ID, buckets: buckets, count: count})
		observables = append(observables, buckets, count)
	}

	var err error
	e.auditDropped, err = meter.Int64ObservableCounter("walletflow_audit_dropped_total",
		metric.WithDescription("Audit events lost to dispatcher backpressure."))
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	e.liveFlows, err = meter.Int64ObservableGauge("walletflow_live_flows",
		metric.WithDescription("Flow machines held in the live cache, by kind."))
	if err != nil {
		return nil, fmt.Errorf("create live flows gauge: %w", err)
	}
	observables = append(observables, e.auditDropped, e.liveFlows)

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, c := range e.counters {
		o.ObserveInt64(c.ins, int64(snapshot.Counters[c.id]))
	}
	for _, h := range e.histograms {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[h.id]))
		for i, opt := range e.leAttrs {
			o.ObserveInt64(h.buckets, int64(cumulative[i]), opt)
		}
		o.ObserveInt64(h.count, int64(cumulative[len(cumulative)-1]))
	}

	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	live := e.source.LiveFlowsByKind()
	for kind, opt := range e.kindAttrs {
		o.ObserveInt64(e.liveFlows, int64(live[kind]), opt)
	}
	return nil
}

func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
