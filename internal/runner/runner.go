// Package runner spawns the worker pool and waits for it to drain.
package runner

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/queryfire/queryfire/internal/counters"
	"github.com/queryfire/queryfire/internal/metrics"
	"github.com/queryfire/queryfire/internal/worker"
)

// Result captures the run summary.
type Result struct {
	Completed int64
	Errors    int64
	Duration  time.Duration
	Cancelled bool
}

// Options configure the Runner.
type Options struct {
	Concurrency   int
	Iterations    int // per worker, after load scaling
	EventLimit    int
	SeedBase      int
	SeedWindow    int
	RatePerSecond int // 0 means unlimited
	Client        worker.Fetcher
	Registry      *counters.Registry
	Reporter      worker.Reporter
	Latency       *metrics.LatencyTracker
	Log           *zap.SugaredLogger
}

func (o *Options) normalize() {
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.Iterations < 0 {
		o.Iterations = 0
	}
	if o.RatePerSecond < 0 {
		o.RatePerSecond = 0
	}
	if o.Log == nil {
		o.Log = zap.NewNop().Sugar()
	}
}

// Runner coordinates a fixed pool of independent workers.
type Runner struct {
	opt Options
}

func New(opt Options) *Runner {
	opt.normalize()
	return &Runner{opt: opt}
}

// Run spawns opt.Concurrency workers and blocks until every one of them
// finishes. A failing worker never cancels its siblings; only cancellation
// of ctx ends the run early, and workers observe it themselves.
func (r *Runner) Run(ctx context.Context) Result {
	start := time.Now()
	total := int64(r.opt.Concurrency) * int64(r.opt.Iterations)

	var limiter *rate.Limiter
	if r.opt.RatePerSecond > 0 {
		// Burst equal to rps to smooth pacing under concurrency.
		limiter = rate.NewLimiter(rate.Limit(r.opt.RatePerSecond), r.opt.RatePerSecond)
	}

	var wg sync.WaitGroup
	wg.Add(r.opt.Concurrency)
	for id := 0; id < r.opt.Concurrency; id++ {
		w := worker.New(worker.Options{
			ID:         id,
			Iterations: r.opt.Iterations,
			Total:      total,
			EventLimit: r.opt.EventLimit,
			SeedBase:   r.opt.SeedBase,
			SeedWindow: r.opt.SeedWindow,
			Client:     r.opt.Client,
			Registry:   r.opt.Registry,
			Reporter:   r.opt.Reporter,
			Latency:    r.opt.Latency,
			Limiter:    limiter,
			Log:        r.opt.Log,
		})
		go func() {
			defer wg.Done()
			if err := w.Run(ctx); err != nil {
				// Cancellation only; counted failures already live in
				// the registry.
				r.opt.Log.Debugw("worker stopped", "error", err)
			}
		}()
	}
	wg.Wait()

	return Result{
		Completed: r.opt.Registry.Completed(),
		Errors:    r.opt.Registry.Errors(),
		Duration:  time.Since(start),
		Cancelled: ctx.Err() != nil,
	}
}
