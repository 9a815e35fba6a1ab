// Package stream subscribes to the collector's snapshot stream. The
// collector emits one `data: <json>` SSE frame per snapshot, replaying the
// latest retained snapshot on connect.
package stream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

// SnapshotView is the decoded subset of a snapshot frame that live
// consumers render. Raw retains the full frame.
type SnapshotView struct {
	RunID          string
	Timestamp      time.Time
	StartedAt      time.Time
	Completed      int64
	Total          int64
	Errors         int64
	CacheHits      int64
	CacheMisses    int64
	BytesProcessed int64
	WorkerProgress []int64
	Raw            []byte
}

// Throughput is completed requests per second since the run started, as of
// the snapshot's own timestamps.
func (v SnapshotView) Throughput() float64 {
	elapsed := v.Timestamp.Sub(v.StartedAt).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(v.Completed) / elapsed
}

// ErrorRate is errors per completed request.
func (v SnapshotView) ErrorRate() float64 {
	if v.Completed == 0 {
		return 0
	}
	return float64(v.Errors) / float64(v.Completed)
}

// CacheHitRate is hits / (hits + misses).
func (v SnapshotView) CacheHitRate() float64 {
	lookups := v.CacheHits + v.CacheMisses
	if lookups == 0 {
		return 0
	}
	return float64(v.CacheHits) / float64(lookups)
}

// StatusError is returned when the stream endpoint responds with a non-200
// status code.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.Code)
}

// Client is a single subscriber connection to the collector stream.
type Client struct {
	url        string
	httpClient *http.Client

	mu     sync.Mutex
	resp   *http.Response
	reader *bufio.Reader

	stats ConnStats
}

// Config configures the stream client.
type Config struct {
	URL     string
	Timeout time.Duration // connect/TLS timeout; reads are unbounded
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	transport := &http.Transport{
		ResponseHeaderTimeout: timeout,
	}
	return &Client{
		url: cfg.URL,
		// No overall client timeout: the stream is long-lived.
		httpClient: &http.Client{Transport: transport},
	}
}

// Connect establishes the streaming connection.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.resp != nil {
		return fmt.Errorf("already connected")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		c.stats.addError()
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.stats.addError()
		return fmt.Errorf("http request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		c.stats.addError()
		resp.Body.Close()
		return &StatusError{Code: resp.StatusCode}
	}

	c.resp = resp
	c.reader = bufio.NewReader(resp.Body)
	c.stats.markConnected()
	return nil
}

// Next blocks until the next snapshot frame arrives and returns its decoded
// view.
func (c *Client) Next(ctx context.Context) (SnapshotView, error) {
	c.mu.Lock()
	reader := c.reader
	c.mu.Unlock()

	if reader == nil {
		return SnapshotView{}, fmt.Errorf("not connected")
	}

	var dataLines []string
	for {
		select {
		case <-ctx.Done():
			return SnapshotView{}, ctx.Err()
		default:
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			c.stats.addError()
			if err == io.EOF {
				return SnapshotView{}, fmt.Errorf("connection closed")
			}
			return SnapshotView{}, fmt.Errorf("read line: %w", err)
		}
		c.stats.addBytes(int64(len(line)))

		line = strings.TrimRight(line, "\r\n")

		// Empty line marks end of event.
		if line == "" {
			if len(dataLines) > 0 {
				raw := []byte(strings.Join(dataLines, "\n"))
				c.stats.addFrame()
				return parseFrame(raw), nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		value, ok := strings.CutPrefix(line, "data:")
		if !ok {
			// Non-data field (id/event); the collector does not emit them.
			continue
		}
		dataLines = append(dataLines, strings.TrimPrefix(value, " "))
	}
}

// Close terminates the streaming connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.resp == nil {
		return nil
	}
	err := c.resp.Body.Close()
	c.resp = nil
	c.reader = nil
	return err
}

// Stats returns the connection statistics.
func (c *Client) Stats() StatsSnapshot {
	return c.stats.Snapshot()
}

func parseFrame(raw []byte) SnapshotView {
	view := SnapshotView{
		RunID:          gjson.GetBytes(raw, "runId").String(),
		Completed:      gjson.GetBytes(raw, "completed").Int(),
		Total:          gjson.GetBytes(raw, "total").Int(),
		Errors:         gjson.GetBytes(raw, "errors").Int(),
		CacheHits:      gjson.GetBytes(raw, "cacheHits").Int(),
		CacheMisses:    gjson.GetBytes(raw, "cacheMisses").Int(),
		BytesProcessed: gjson.GetBytes(raw, "bytesProcessed").Int(),
		Raw:            raw,
	}
	if ts, err := time.Parse(time.RFC3339Nano, gjson.GetBytes(raw, "timestamp").String()); err == nil {
		view.Timestamp = ts
	}
	if ts, err := time.Parse(time.RFC3339Nano, gjson.GetBytes(raw, "startedAt").String()); err == nil {
		view.StartedAt = ts
	}
	for _, p := range gjson.GetBytes(raw, "workerProgress").Array() {
		view.WorkerProgress = append(view.WorkerProgress, p.Int())
	}
	return view
}
