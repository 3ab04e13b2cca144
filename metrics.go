package walletflow

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter or histogram.
type MetricID uint16

const (
	// MetricFlowStarted counts flows created by Start*.
	MetricFlowStarted MetricID = iota
	// MetricFlowResumed counts flows rebuilt from a persisted snapshot.
	MetricFlowResumed
	// MetricTransitionAccepted counts events that produced a new state.
	MetricTransitionAccepted
	// MetricTransitionRejected counts events that did not apply to the current state.
	MetricTransitionRejected
	// MetricTransitionFailed counts transitions that returned a collaborator error.
	MetricTransitionFailed
	// MetricTransitionBusy counts events refused because another event was in flight.
	MetricTransitionBusy
	// MetricFlowFinished counts flows that reached a terminal state.
	MetricFlowFinished
	// MetricFlowDiscarded counts flows removed through Discard.
	MetricFlowDiscarded
	// MetricSnapshotSaved counts persisted snapshots.
	MetricSnapshotSaved
	// MetricSnapshotFailed counts snapshot writes that failed.
	MetricSnapshotFailed
	// MetricSnapshotConflict counts snapshot writes rejected by the revision check.
	MetricSnapshotConflict
	// MetricCacheHit counts lookups served by the live-machine cache.
	MetricCacheHit
	// MetricCacheMiss counts lookups that had to load a snapshot.
	MetricCacheMiss
	// MetricTransitionLatency is the transition duration histogram.
	MetricTransitionLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free engine counters. A nil or disabled Metrics ignores
// every update.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters and histograms.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram for id. Only MetricTransitionLatency
// has a histogram; other ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricTransitionLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricTransitionLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricTransitionLatency].buckets[i])
		}
		s.Histograms[MetricTransitionLatency] = buckets
	}

	return s
}

// Transitions mostly wait on remote collaborators, so buckets are coarser
// than a pure in-process path would need.
func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 10:
		return 0
	case ms <= 50:
		return 1
	case ms <= 100:
		return 2
	case ms <= 250:
		return 3
	case ms <= 500:
		return 4
	case ms <= 1000:
		return 5
	case ms <= 2500:
		return 6
	default:
		return 7
	}
}
