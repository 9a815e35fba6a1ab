// Package worker implements the per-worker load loop: a primary
// network-forcing query followed by a cache-only follow-up of the same
// parameters, with counter updates and milestone reporting.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/queryfire/queryfire/internal/counters"
	"github.com/queryfire/queryfire/internal/metrics"
	"github.com/queryfire/queryfire/internal/queryclient"
)

const (
	progressLogEvery = 100 // global and worker-local progress lines
	reportEvery      = 20  // global completions between snapshot publishes
)

// Fetcher abstracts the two query fetch modes the loop depends on.
type Fetcher interface {
	FetchNetworkOnly(ctx context.Context, limit, seed int) (*queryclient.Response, error)
	FetchCacheOnly(ctx context.Context, limit, seed int) (*queryclient.Response, error)
}

// Reporter triggers a metrics snapshot publish. Implementations must not
// block the caller.
type Reporter interface {
	Report()
}

// Options configure a single worker.
type Options struct {
	ID         int
	Iterations int
	Total      int64 // total requests across all workers
	EventLimit int
	SeedBase   int
	SeedWindow int
	Client     Fetcher
	Registry   *counters.Registry
	Reporter   Reporter
	Latency    *metrics.LatencyTracker // optional
	Limiter    *rate.Limiter           // optional request pacing, shared across workers
	Log        *zap.SugaredLogger
}

// Worker runs a fixed number of sequential iterations. Iterations within a
// worker never overlap; only the Registry is shared with siblings.
type Worker struct {
	opt Options
	log *zap.SugaredLogger
}

func New(opt Options) *Worker {
	log := opt.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Worker{opt: opt, log: log}
}

// Run executes the worker loop. The only error ever returned is the
// context's: cancellation aborts the loop immediately and is not counted as
// a request failure.
func (w *Worker) Run(ctx context.Context) error {
	for i := 0; i < w.opt.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if w.opt.Limiter != nil {
			if err := w.opt.Limiter.Wait(ctx); err != nil {
				return ctx.Err()
			}
		}
		if err := w.runIteration(ctx, i); err != nil {
			return err
		}
	}
	return nil
}

func (w *Worker) runIteration(ctx context.Context, i int) error {
	reg := w.opt.Registry
	params := DeriveParams(w.opt.ID, i, w.opt.EventLimit, w.opt.SeedBase, w.opt.SeedWindow)

	start := time.Now()
	resp, err := w.opt.Client.FetchNetworkOnly(ctx, params.Limit, params.Seed)
	if w.opt.Latency != nil {
		w.opt.Latency.Record(time.Since(start))
	}

	switch {
	case err != nil:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		reg.IncrErrors()
		w.log.Warnw("primary request failed",
			"worker", w.opt.ID, "iteration", i, "limit", params.Limit, "seed", params.Seed, "error", err)
	case resp.HasErrors():
		reg.IncrErrors()
		w.log.Warnw("primary request returned errors",
			"worker", w.opt.ID, "iteration", i, "limit", params.Limit, "seed", params.Seed,
			"errors", resp.ErrorSummary())
	default:
		reg.IncrCacheWrites()
		reg.AddBytes(resp.PayloadCost())
		if err := w.followUp(ctx, i, params); err != nil {
			return err
		}
	}

	w.finishIteration(i)
	return nil
}

// followUp re-reads the same parameters from the local cache only. The
// payload is read twice on purpose to stress the cache layer.
func (w *Worker) followUp(ctx context.Context, i int, params IterationParams) error {
	reg := w.opt.Registry

	cached, err := w.opt.Client.FetchCacheOnly(ctx, params.Limit, params.Seed)
	switch {
	case err != nil:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		reg.IncrCacheMisses()
		reg.IncrErrors()
		w.log.Warnw("cache follow-up failed",
			"worker", w.opt.ID, "iteration", i, "limit", params.Limit, "seed", params.Seed, "error", err)
	case cached == nil:
		// Legitimate miss: the cache had nothing.
		reg.IncrCacheMisses()
	case cached.HasErrors():
		reg.IncrCacheMisses()
		reg.IncrErrors()
		w.log.Warnw("cache follow-up returned errors",
			"worker", w.opt.ID, "iteration", i, "limit", params.Limit, "seed", params.Seed,
			"errors", cached.ErrorSummary())
	default:
		reg.IncrCacheHits()
		reg.AddBytes(cached.PayloadCost())
	}
	return nil
}

// finishIteration applies the always-run bookkeeping for iteration i,
// success or failure alike.
func (w *Worker) finishIteration(i int) {
	done := int64(i + 1)
	w.opt.Registry.SetWorkerProgress(w.opt.ID, done)
	completed := w.opt.Registry.IncrCompleted()

	if completed%progressLogEvery == 0 || completed == w.opt.Total {
		w.log.Infow("progress", "completed", completed, "total", w.opt.Total,
			"errors", w.opt.Registry.Errors())
	}
	if done%progressLogEvery == 0 || int(done) == w.opt.Iterations {
		w.log.Infow("worker progress", "worker", w.opt.ID, "iterations", done,
			"of", w.opt.Iterations)
	}
	if w.opt.Reporter != nil && (completed%reportEvery == 0 || completed == w.opt.Total) {
		w.opt.Reporter.Report()
	}
}
