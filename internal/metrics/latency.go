package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// LatencyTracker records primary-request latencies in a thread-safe manner.
type LatencyTracker struct {
	mu         sync.Mutex
	hist       *hdrhistogram.Histogram
	minLatency time.Duration
	maxLatency time.Duration
	sumLatency time.Duration
	samples    int64
}

// LatencyStats represents aggregated latency figures.
type LatencyStats struct {
	Samples    int64         `json:"samples"`
	Min        time.Duration `json:"-"`
	Max        time.Duration `json:"-"`
	Mean       time.Duration `json:"-"`
	P50        time.Duration `json:"-"`
	P90        time.Duration `json:"-"`
	P99        time.Duration `json:"-"`
	MinMs      float64       `json:"min_ms"`
	MaxMs      float64       `json:"max_ms"`
	MeanMs     float64       `json:"mean_ms"`
	P50Ms      float64       `json:"p50_ms"`
	P90Ms      float64       `json:"p90_ms"`
	P99Ms      float64       `json:"p99_ms"`
}

func NewLatencyTracker() *LatencyTracker {
	// Track latencies from 1µs up to 60s with 3 significant figures.
	return &LatencyTracker{hist: hdrhistogram.New(1, 60_000_000, 3)}
}

// Record adds a single request latency.
func (t *LatencyTracker) Record(latency time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if latency > 0 {
		us := latency.Microseconds()
		if us < t.hist.LowestTrackableValue() {
			us = t.hist.LowestTrackableValue()
		}
		if us > t.hist.HighestTrackableValue() {
			us = t.hist.HighestTrackableValue()
		}
		_ = t.hist.RecordValue(us)
	}
	t.sumLatency += latency
	t.samples++

	if t.minLatency == 0 || latency < t.minLatency {
		t.minLatency = latency
	}
	if latency > t.maxLatency {
		t.maxLatency = latency
	}
}

// Stats computes the current aggregated latency statistics.
func (t *LatencyTracker) Stats() LatencyStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := LatencyStats{
		Samples: t.samples,
		Min:     t.minLatency,
		Max:     t.maxLatency,
	}
	if t.samples > 0 {
		stats.Mean = time.Duration(int64(t.sumLatency) / t.samples)
	}
	if t.hist.TotalCount() > 0 {
		stats.P50 = time.Duration(t.hist.ValueAtQuantile(50)) * time.Microsecond
		stats.P90 = time.Duration(t.hist.ValueAtQuantile(90)) * time.Microsecond
		stats.P99 = time.Duration(t.hist.ValueAtQuantile(99)) * time.Microsecond
	}

	stats.MinMs = float64(stats.Min) / float64(time.Millisecond)
	stats.MaxMs = float64(stats.Max) / float64(time.Millisecond)
	stats.MeanMs = float64(stats.Mean) / float64(time.Millisecond)
	stats.P50Ms = float64(stats.P50) / float64(time.Millisecond)
	stats.P90Ms = float64(stats.P90) / float64(time.Millisecond)
	stats.P99Ms = float64(stats.P99) / float64(time.Millisecond)

	return stats
}
