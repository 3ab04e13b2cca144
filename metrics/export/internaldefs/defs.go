package internaldefs

import (
	"github.com/MrEthical07/walletflow"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   walletflow.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   walletflow.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: walletflow.MetricFlowStarted, Name: "walletflow_flow_started_total", Help: "Flows started."},
	{ID: walletflow.MetricFlowResumed, Name: "walletflow_flow_resumed_total", Help: "Flows resumed from a persisted snapshot."},
	{ID: walletflow.MetricTransitionAccepted, Name: "walletflow_transition_accepted_total", Help: "Events that produced a new state."},
	{ID: walletflow.MetricTransitionRejected, Name: "walletflow_transition_rejected_total", Help: "Events invalid for the current state."},
	{ID: walletflow.MetricTransitionFailed, Name: "walletflow_transition_failed_total", Help: "Transitions failed by a collaborator error."},
	{ID: walletflow.MetricTransitionBusy, Name: "walletflow_transition_busy_total", Help: "Events refused while another event was in flight."},
	{ID: walletflow.MetricFlowFinished, Name: "walletflow_flow_finished_total", Help: "Flows that reached a terminal state."},
	{ID: walletflow.MetricFlowDiscarded, Name: "walletflow_flow_discarded_total", Help: "Flows discarded by the host."},
	{ID: walletflow.MetricSnapshotSaved, Name: "walletflow_snapshot_saved_total", Help: "Persisted flow snapshots."},
	{ID: walletflow.MetricSnapshotFailed, Name: "walletflow_snapshot_failed_total", Help: "Failed snapshot writes."},
	{ID: walletflow.MetricSnapshotConflict, Name: "walletflow_snapshot_conflict_total", Help: "Snapshot writes rejected by the revision check."},
	{ID: walletflow.MetricCacheHit, Name: "walletflow_cache_hit_total", Help: "Flow lookups served from the live-machine cache."},
	{ID: walletflow.MetricCacheMiss, Name: "walletflow_cache_miss_total", Help: "Flow lookups that loaded a snapshot."},
}

var HistogramDefs = []HistogramDef{
	{ID: walletflow.MetricTransitionLatency, Name: "walletflow_transition_latency_seconds", Help: "Transition latency histogram."},
}

// HistogramBounds are the upper bounds of the engine's latency buckets.
var HistogramBounds = []string{
	"0.01",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"2.5",
	"+Inf",
}

// NormalizeBuckets copies raw into a fixed-size bucket array, zero-filling.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
