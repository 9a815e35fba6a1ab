// Package publisher pushes counter snapshots to the metrics collector.
// Publishing is fire-and-forget: a slow or down collector must never slow
// the workers.
package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/queryfire/queryfire/internal/counters"
	"github.com/queryfire/queryfire/internal/metrics"
)

const publishTimeout = 5 * time.Second

// Publisher serializes counter snapshots and POSTs them to the collector.
// Report never blocks and never surfaces failures to the caller; the first
// failed publish is logged, later ones are suppressed.
type Publisher struct {
	url    string
	client *http.Client
	reg    *counters.Registry
	info   metrics.RunInfo
	log    *zap.SugaredLogger
	warned int32
}

// New creates a publisher. An empty collector URL yields a no-op publisher.
func New(url string, client *http.Client, reg *counters.Registry, info metrics.RunInfo, log *zap.SugaredLogger) *Publisher {
	if client == nil {
		client = &http.Client{Timeout: publishTimeout}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Publisher{
		url:    strings.TrimSpace(url),
		client: client,
		reg:    reg,
		info:   info,
		log:    log,
	}
}

// Enabled reports whether a collector URL is configured.
func (p *Publisher) Enabled() bool { return p.url != "" }

// Report captures a snapshot and sends it to the collector in a detached
// goroutine. No retry, no queue, no backpressure.
func (p *Publisher) Report() {
	if !p.Enabled() {
		return
	}
	snap := metrics.Capture(p.info, p.reg)
	go p.send(snap)
}

func (p *Publisher) send(snap metrics.Snapshot) {
	body, err := json.Marshal(snap)
	if err != nil {
		p.warnOnce("encode snapshot: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		p.warnOnce("create publish request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		p.warnOnce("publish snapshot: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		p.warnOnce("collector rejected snapshot: status %d", resp.StatusCode)
	}
}

// warnOnce logs the first publish failure and latches; later failures are
// silent.
func (p *Publisher) warnOnce(format string, args ...any) {
	if atomic.CompareAndSwapInt32(&p.warned, 0, 1) {
		p.log.Warnf("metrics publishing degraded, suppressing further warnings: "+format, args...)
	}
}
