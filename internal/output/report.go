// Package output renders the end-of-run summary and the optional results
// file.
package output

import (
	"fmt"
	"io"
	"time"

	"github.com/queryfire/queryfire/internal/counters"
	"github.com/queryfire/queryfire/internal/metrics"
)

// Summary is the final run report.
type Summary struct {
	RunID          string               `json:"run_id"`
	ElapsedMs      int64                `json:"elapsed_ms"`
	Completed      int64                `json:"completed"`
	Total          int64                `json:"total"`
	Errors         int64                `json:"errors"`
	CacheWrites    int64                `json:"cache_writes"`
	CacheHits      int64                `json:"cache_hits"`
	CacheMisses    int64                `json:"cache_misses"`
	BytesProcessed int64                `json:"bytes_processed"`
	WorkerProgress []int64              `json:"worker_progress"`
	Latency        metrics.LatencyStats `json:"latency"`
}

// BuildSummary assembles the final report from the registry and latency
// tracker.
func BuildSummary(runID string, elapsed time.Duration, total int64, reg *counters.Registry, lat *metrics.LatencyTracker) Summary {
	s := Summary{
		RunID:          runID,
		ElapsedMs:      elapsed.Milliseconds(),
		Completed:      reg.Completed(),
		Total:          total,
		Errors:         reg.Errors(),
		CacheWrites:    reg.CacheWrites(),
		CacheHits:      reg.CacheHits(),
		CacheMisses:    reg.CacheMisses(),
		BytesProcessed: reg.BytesProcessed(),
		WorkerProgress: reg.WorkerProgress(),
	}
	if lat != nil {
		s.Latency = lat.Stats()
	}
	return s
}

// PrintSummary writes the human-readable run report.
func PrintSummary(w io.Writer, s Summary) {
	fmt.Fprintln(w, "\n--- Load Run Results ---")
	fmt.Fprintf(w, "Elapsed:           %d ms\n", s.ElapsedMs)
	fmt.Fprintf(w, "Completed:         %d / %d\n", s.Completed, s.Total)
	fmt.Fprintf(w, "Errors:            %d\n", s.Errors)
	fmt.Fprintln(w, "\nCache:")
	fmt.Fprintf(w, "  Writes:          %d\n", s.CacheWrites)
	fmt.Fprintf(w, "  Hits:            %d\n", s.CacheHits)
	fmt.Fprintf(w, "  Misses:          %d\n", s.CacheMisses)
	if s.CacheHits+s.CacheMisses > 0 {
		rate := float64(s.CacheHits) / float64(s.CacheHits+s.CacheMisses) * 100
		fmt.Fprintf(w, "  Hit Rate:        %.1f%%\n", rate)
	}
	fmt.Fprintf(w, "\nBytes Processed:   %d\n", s.BytesProcessed)

	if s.Latency.Samples > 0 {
		fmt.Fprintln(w, "\nPrimary Latency:")
		fmt.Fprintf(w, "  Min:             %s\n", s.Latency.Min)
		fmt.Fprintf(w, "  Max:             %s\n", s.Latency.Max)
		fmt.Fprintf(w, "  Mean:            %s\n", s.Latency.Mean)
		fmt.Fprintf(w, "  P50:             %s\n", s.Latency.P50)
		fmt.Fprintf(w, "  P90:             %s\n", s.Latency.P90)
		fmt.Fprintf(w, "  P99:             %s\n", s.Latency.P99)
	}

	fmt.Fprintln(w, "\nWorker Progress:")
	for id, done := range s.WorkerProgress {
		fmt.Fprintf(w, "  worker %3d: %d\n", id, done)
	}
}
