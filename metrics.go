package authflow

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one counter (or the latency histogram) in Metrics.
type MetricID uint16

const (
	// MetricSignInSuccess counts sign-ins that reached SignedIn.
	MetricSignInSuccess MetricID = iota
	// MetricSignInFailure counts sign-ins the provider refused or could not serve.
	MetricSignInFailure
	// MetricSignInRejected counts sign-in submissions rejected before reaching the provider.
	MetricSignInRejected
	// MetricRegistrationCreated counts registrations that reached PendingVerification.
	MetricRegistrationCreated
	// MetricRegistrationFailure counts failed registration creations.
	MetricRegistrationFailure
	// MetricSignUpRejected counts Create or Verify calls rejected before reaching the provider.
	MetricSignUpRejected
	// MetricVerificationSuccess counts verified registrations.
	MetricVerificationSuccess
	// MetricVerificationFailure counts wrong codes and incomplete verifications.
	MetricVerificationFailure
	// MetricRehydrateHit counts boots that resumed a cached session.
	MetricRehydrateHit
	// MetricRehydrateMiss counts boots without a cached token.
	MetricRehydrateMiss
	// MetricRehydrateRejected counts boots whose cached token the provider refused.
	MetricRehydrateRejected
	// MetricRehydrateUnavailable counts boots where the provider could not be reached.
	MetricRehydrateUnavailable
	// MetricSignOut counts sign-outs.
	MetricSignOut
	// MetricCacheReadDegraded counts token cache reads turned into misses.
	MetricCacheReadDegraded
	// MetricCacheWriteFailure counts token cache writes abandoned after retries.
	MetricCacheWriteFailure
	// MetricRedirect counts redirects issued by guards created through the client.
	MetricRedirect
	// MetricDiscardedResult counts provider answers dropped because the caller went away.
	MetricDiscardedResult
	// MetricGatewayLatency is the identity provider round-trip histogram.
	MetricGatewayLatency
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

// Metrics is a set of lock-free counters and one latency histogram.
// A nil or disabled Metrics records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics allocates counters for every MetricID. A disabled instance
// ignores Inc and Observe.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether gateway latency is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram id. Only MetricGatewayLatency has one.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricGatewayLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns one counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter, and the latency histogram when enabled.
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
		if id == MetricGatewayLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricGatewayLatency].buckets[i])
		}
		s.Histograms[MetricGatewayLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
