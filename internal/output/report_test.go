package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/queryfire/queryfire/internal/counters"
	"github.com/queryfire/queryfire/internal/metrics"
)

func sampleSummary(t *testing.T) Summary {
	t.Helper()

	reg := counters.NewRegistry(2)
	for i := 0; i < 5; i++ {
		reg.IncrCompleted()
	}
	reg.IncrErrors()
	reg.IncrCacheWrites()
	reg.IncrCacheWrites()
	reg.IncrCacheHits()
	reg.IncrCacheMisses()
	reg.AddBytes(1024)
	reg.SetWorkerProgress(0, 3)
	reg.SetWorkerProgress(1, 2)

	lat := metrics.NewLatencyTracker()
	lat.Record(5 * time.Millisecond)
	lat.Record(15 * time.Millisecond)

	return BuildSummary("01RUN", 2*time.Second, 10, reg, lat)
}

func TestBuildSummary(t *testing.T) {
	s := sampleSummary(t)

	if s.RunID != "01RUN" {
		t.Fatalf("run id: got %q", s.RunID)
	}
	if s.ElapsedMs != 2000 {
		t.Fatalf("elapsed: expected 2000ms, got %d", s.ElapsedMs)
	}
	if s.Completed != 5 || s.Total != 10 || s.Errors != 1 {
		t.Fatalf("counts: %+v", s)
	}
	if s.CacheWrites != 2 || s.CacheHits != 1 || s.CacheMisses != 1 {
		t.Fatalf("cache counts: %+v", s)
	}
	if s.BytesProcessed != 1024 {
		t.Fatalf("bytes: got %d", s.BytesProcessed)
	}
	if len(s.WorkerProgress) != 2 || s.WorkerProgress[0] != 3 || s.WorkerProgress[1] != 2 {
		t.Fatalf("worker progress: %v", s.WorkerProgress)
	}
	if s.Latency.Samples != 2 {
		t.Fatalf("latency samples: got %d", s.Latency.Samples)
	}
}

func TestBuildSummaryNilLatency(t *testing.T) {
	reg := counters.NewRegistry(1)
	s := BuildSummary("01RUN", time.Second, 1, reg, nil)
	if s.Latency.Samples != 0 {
		t.Fatalf("expected zero latency stats, got %+v", s.Latency)
	}
}

func TestPrintSummary(t *testing.T) {
	s := sampleSummary(t)

	var buf strings.Builder
	PrintSummary(&buf, s)
	out := buf.String()

	for _, want := range []string{
		"Load Run Results",
		"Completed:         5 / 10",
		"Errors:            1",
		"Hit Rate:        50.0%",
		"Bytes Processed:   1024",
		"Primary Latency:",
		"worker   0: 3",
		"worker   1: 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintSummarySkipsEmptySections(t *testing.T) {
	reg := counters.NewRegistry(1)
	s := BuildSummary("01RUN", time.Second, 1, reg, nil)

	var buf strings.Builder
	PrintSummary(&buf, s)
	out := buf.String()

	if strings.Contains(out, "Hit Rate") {
		t.Fatalf("hit rate printed with no cache reads:\n%s", out)
	}
	if strings.Contains(out, "Primary Latency") {
		t.Fatalf("latency printed with no samples:\n%s", out)
	}
}

func TestWriteResultFile(t *testing.T) {
	s := sampleSummary(t)
	path := filepath.Join(t.TempDir(), "result.json")

	if err := WriteResultFile(path, s); err != nil {
		t.Fatalf("write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}

	var got Summary
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.RunID != s.RunID || got.Completed != s.Completed || got.BytesProcessed != s.BytesProcessed {
		t.Fatalf("roundtrip mismatch: got %+v", got)
	}
}

func TestWriteResultFileBadPath(t *testing.T) {
	s := sampleSummary(t)
	err := WriteResultFile(filepath.Join(t.TempDir(), "missing", "result.json"), s)
	if err == nil {
		t.Fatal("expected error for unwritable path")
	}
}
