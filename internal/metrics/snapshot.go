// Package metrics defines the published snapshot shape and latency
// aggregation for the load run.
package metrics

import (
	"time"

	"github.com/queryfire/queryfire/internal/counters"
)

// Snapshot is a point-in-time copy of all run counters plus static run
// metadata. Instances are immutable once constructed and have no identity
// beyond their timestamp.
type Snapshot struct {
	RunID          string    `json:"runId"`
	Timestamp      time.Time `json:"timestamp"`
	StartedAt      time.Time `json:"startedAt"`
	Completed      int64     `json:"completed"`
	Total          int64     `json:"total"`
	Errors         int64     `json:"errors"`
	Concurrency    int       `json:"concurrency"`
	Iterations     int       `json:"iterations"`
	LoadScale      int       `json:"loadScale"`
	EventLimit     int       `json:"eventLimit"`
	CacheWrites    int64     `json:"cacheWrites"`
	CacheHits      int64     `json:"cacheHits"`
	CacheMisses    int64     `json:"cacheMisses"`
	BytesProcessed int64     `json:"bytesProcessed"`
	WorkerProgress []int64   `json:"workerProgress"`
}

// RunInfo carries the static metadata stamped onto every snapshot.
type RunInfo struct {
	RunID       string
	StartedAt   time.Time
	Total       int64
	Concurrency int
	Iterations  int
	LoadScale   int
	EventLimit  int
}

// Capture copies the current registry values into a snapshot. Individual
// counters are read atomically, but the snapshot is not a consistent cut
// across counters.
func Capture(info RunInfo, reg *counters.Registry) Snapshot {
	return Snapshot{
		RunID:          info.RunID,
		Timestamp:      time.Now().UTC(),
		StartedAt:      info.StartedAt,
		Completed:      reg.Completed(),
		Total:          info.Total,
		Errors:         reg.Errors(),
		Concurrency:    info.Concurrency,
		Iterations:     info.Iterations,
		LoadScale:      info.LoadScale,
		EventLimit:     info.EventLimit,
		CacheWrites:    reg.CacheWrites(),
		CacheHits:      reg.CacheHits(),
		CacheMisses:    reg.CacheMisses(),
		BytesProcessed: reg.BytesProcessed(),
		WorkerProgress: reg.WorkerProgress(),
	}
}
