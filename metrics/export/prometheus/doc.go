// Package prometheus renders walletflow engine metrics in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] accepts a [walletflow.Engine] and exposes an
// [http.Handler]. Counter names are prefixed walletflow_*_total; the single
// histogram is walletflow_transition_latency_seconds and the live-cache size
// is the walletflow_live_flows gauge labelled by flow kind.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry; callers mount the Handler.
//   - Mutate engine state.
package prometheus
