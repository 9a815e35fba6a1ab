package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func sseServer(t *testing.T, frames []string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			t.Fatalf("test server does not support flushing")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		for _, frame := range frames {
			fmt.Fprintf(w, "data: %s\n\n", frame)
			flusher.Flush()
		}
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientReadsSnapshotFrames(t *testing.T) {
	started := time.Now().UTC().Add(-10 * time.Second)
	frame := fmt.Sprintf(`{"runId":"01X","timestamp":%q,"startedAt":%q,"completed":50,"total":100,"errors":5,"cacheHits":30,"cacheMisses":10,"bytesProcessed":4096,"workerProgress":[25,25]}`,
		time.Now().UTC().Format(time.RFC3339Nano), started.Format(time.RFC3339Nano))
	srv := sseServer(t, []string{frame})

	client := NewClient(Config{URL: srv.URL})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	view, err := client.Next(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}

	if view.RunID != "01X" {
		t.Fatalf("runId: got %q", view.RunID)
	}
	if view.Completed != 50 || view.Total != 100 || view.Errors != 5 {
		t.Fatalf("counters: got %+v", view)
	}
	if len(view.WorkerProgress) != 2 || view.WorkerProgress[0] != 25 {
		t.Fatalf("workerProgress: got %v", view.WorkerProgress)
	}

	if view.Throughput() <= 0 {
		t.Fatalf("throughput should be positive, got %f", view.Throughput())
	}
	if got := view.ErrorRate(); got != 0.1 {
		t.Fatalf("error rate: expected 0.1, got %f", got)
	}
	if got := view.CacheHitRate(); got != 0.75 {
		t.Fatalf("cache hit rate: expected 0.75, got %f", got)
	}

	stats := client.Stats()
	if stats.FramesReceived != 1 {
		t.Fatalf("frames: expected 1, got %d", stats.FramesReceived)
	}
	if stats.BytesReceived == 0 {
		t.Fatalf("bytes should be counted")
	}
}

func TestClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not here", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(Config{URL: srv.URL})
	err := client.Connect(context.Background())
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", statusErr.Code)
	}
}

func TestClientNextBeforeConnect(t *testing.T) {
	client := NewClient(Config{URL: "http://localhost:0"})
	if _, err := client.Next(context.Background()); err == nil {
		t.Fatalf("expected error before connect")
	}
}

func TestDerivedMetricsZeroSafe(t *testing.T) {
	var view SnapshotView
	if view.Throughput() != 0 || view.ErrorRate() != 0 || view.CacheHitRate() != 0 {
		t.Fatalf("zero snapshot should derive zeros")
	}
}
