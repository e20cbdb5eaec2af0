package authcore

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one counter or histogram in the in-process metrics
// system.
type MetricID uint16

const (
	// MetricLoginSuccess counts fully authenticated logins.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts bad-credential rejections.
	MetricLoginFailure
	// MetricLoginLocked counts logins refused by an active lockout.
	MetricLoginLocked
	// MetricLockoutTriggered counts failures that tipped an account into lockout.
	MetricLockoutTriggered
	// MetricRegisterSuccess counts completed registrations.
	MetricRegisterSuccess
	// MetricRefreshSuccess counts successful rotations.
	MetricRefreshSuccess
	// MetricRefreshFailure counts refresh rejections other than reuse.
	MetricRefreshFailure
	// MetricRefreshReuseDetected counts stale-hash presentations that revoked a family.
	MetricRefreshReuseDetected
	// MetricLogout counts single-session logouts.
	MetricLogout
	// MetricLogoutAll counts all-session revocations.
	MetricLogoutAll
	// MetricMFAChallengeIssued counts logins deferred to an MFA challenge.
	MetricMFAChallengeIssued
	// MetricMFASuccess counts completed MFA verifications.
	MetricMFASuccess
	// MetricMFAFailure counts wrong-code MFA rejections.
	MetricMFAFailure
	// MetricMFAReplay counts replayed challenge tokens.
	MetricMFAReplay
	// MetricPasswordChangeSuccess counts completed password changes.
	MetricPasswordChangeSuccess
	// MetricPasswordResetSuccess counts completed password resets.
	MetricPasswordResetSuccess
	// MetricPasswordPolicyRejected counts policy or history rejections.
	MetricPasswordPolicyRejected
	// MetricBlacklistHit counts revoked tokens caught by the blacklist.
	MetricBlacklistHit
	// MetricLoginLatency is the login duration histogram.
	MetricLoginLatency
	metricIDCount
)

var metricNames = [metricIDCount]string{
	MetricLoginSuccess:           "login.success",
	MetricLoginFailure:           "login.failure",
	MetricLoginLocked:            "login.locked",
	MetricLockoutTriggered:       "lockout.triggered",
	MetricRegisterSuccess:        "register.success",
	MetricRefreshSuccess:         "refresh.success",
	MetricRefreshFailure:         "refresh.failure",
	MetricRefreshReuseDetected:   "refresh.reuse_detected",
	MetricLogout:                 "logout",
	MetricLogoutAll:              "logout.all",
	MetricMFAChallengeIssued:     "mfa.challenge_issued",
	MetricMFASuccess:             "mfa.success",
	MetricMFAFailure:             "mfa.failure",
	MetricMFAReplay:              "mfa.replay",
	MetricPasswordChangeSuccess:  "password.change_success",
	MetricPasswordResetSuccess:   "password.reset_success",
	MetricPasswordPolicyRejected: "password.policy_rejected",
	MetricBlacklistHit:           "blacklist.hit",
	MetricLoginLatency:           "login.latency",
}

// String returns the stable dotted name exporters publish under.
func (id MetricID) String() string {
	if id >= metricIDCount {
		return "unknown"
	}
	return metricNames[id]
}

// CounterIDs lists every counter metric, excluding histograms.
func CounterIDs() []MetricID {
	out := make([]MetricID, 0, int(metricIDCount)-1)
	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricLoginLatency {
			continue
		}
		out = append(out, id)
	}
	return out
}

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

// Metrics holds atomic counters and an optional login-latency histogram.
// A disabled instance makes every operation a no-op.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time deep copy of all metric values.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates a Metrics instance configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Inc increments counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d into the login-latency histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || id != MetricLoginLatency {
		return
	}
	atomic.AddUint64(&m.histograms[id].buckets[bucketIndex(d)], 1)
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot deep-copies all metric values for exporters.
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
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := range buckets {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricLoginLatency].buckets[i])
		}
		s.Histograms[MetricLoginLatency] = buckets
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
