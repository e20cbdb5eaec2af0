package authcore

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsCountersAndSnapshot(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricRefreshReuseDetected)
	m.Observe(MetricLoginLatency, 7*time.Millisecond)
	m.Observe(MetricLoginLatency, 900*time.Millisecond)

	if got := m.Value(MetricLoginSuccess); got != 2 {
		t.Fatalf("Value = %d, want 2", got)
	}

	snap := m.Snapshot()
	if snap.Counters[MetricLoginSuccess] != 2 || snap.Counters[MetricRefreshReuseDetected] != 1 {
		t.Fatalf("snapshot counters = %v", snap.Counters)
	}

	buckets := snap.Histograms[MetricLoginLatency]
	if len(buckets) != histBucketCount {
		t.Fatalf("bucket count = %d, want %d", len(buckets), histBucketCount)
	}
	if buckets[1] != 1 || buckets[7] != 1 {
		t.Fatalf("buckets = %v, want one in [1] and one in [7]", buckets)
	}

	// Snapshot is a copy, not a view.
	m.Inc(MetricLoginSuccess)
	if snap.Counters[MetricLoginSuccess] != 2 {
		t.Fatal("snapshot mutated after the fact")
	}
}

func TestMetricsDisabledIsNoOp(t *testing.T) {
	m := NewMetrics(MetricsConfig{})

	m.Inc(MetricLoginSuccess)
	m.Observe(MetricLoginLatency, time.Millisecond)

	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("disabled counter = %d, want 0", got)
	}
	if snap := m.Snapshot(); len(snap.Counters) != 0 {
		t.Fatalf("disabled snapshot = %v, want empty", snap.Counters)
	}
}

func TestMetricsConcurrentIncrements(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 16
	const perGoroutine = 1000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				m.Inc(MetricLoginFailure)
			}
		}()
	}
	wg.Wait()

	if got := m.Value(MetricLoginFailure); got != goroutines*perGoroutine {
		t.Fatalf("counter = %d, want %d", got, goroutines*perGoroutine)
	}
}

func TestCounterIDsExcludeHistogram(t *testing.T) {
	for _, id := range CounterIDs() {
		if id == MetricLoginLatency {
			t.Fatal("histogram listed among counters")
		}
		if id.String() == "unknown" || id.String() == "" {
			t.Fatalf("metric %d has no name", id)
		}
	}
}
