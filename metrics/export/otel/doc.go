// Package otel binds walletflow engine metrics to an OpenTelemetry Meter.
//
// [NewOTelExporter] registers an Int64ObservableCounter per engine counter.
// The latency histogram becomes a bucket gauge with an "le" attribute plus a
// count gauge, and live flows a gauge with a "kind" attribute. One callback
// reads [walletflow.Engine.MetricsSnapshot] per collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider; callers supply the Meter.
//   - Mutate engine state.
package otel
