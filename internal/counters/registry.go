// Package counters holds the shared run counters. Every counter is updated
// atomically on its own; there is deliberately no cross-counter consistency,
// so a reader may observe counters mid-update relative to each other.
package counters

import "sync/atomic"

// Registry is the set of shared counters updated concurrently by workers.
type Registry struct {
	completed      int64
	errors         int64
	cacheWrites    int64
	cacheHits      int64
	cacheMisses    int64
	bytesProcessed int64
	progress       []int64 // one slot per worker, indexed by worker id
}

// NewRegistry creates a registry with one progress slot per worker.
func NewRegistry(concurrency int) *Registry {
	if concurrency < 0 {
		concurrency = 0
	}
	return &Registry{progress: make([]int64, concurrency)}
}

// IncrCompleted increments the global completion counter and returns the
// new value so callers can act on milestones.
func (r *Registry) IncrCompleted() int64 { return atomic.AddInt64(&r.completed, 1) }

func (r *Registry) IncrErrors()      { atomic.AddInt64(&r.errors, 1) }
func (r *Registry) IncrCacheWrites() { atomic.AddInt64(&r.cacheWrites, 1) }
func (r *Registry) IncrCacheHits()   { atomic.AddInt64(&r.cacheHits, 1) }
func (r *Registry) IncrCacheMisses() { atomic.AddInt64(&r.cacheMisses, 1) }

// AddBytes accumulates processed payload bytes.
func (r *Registry) AddBytes(n int64) { atomic.AddInt64(&r.bytesProcessed, n) }

// SetWorkerProgress records the number of iterations worker w has finished.
func (r *Registry) SetWorkerProgress(w int, iterations int64) {
	if w < 0 || w >= len(r.progress) {
		return
	}
	atomic.StoreInt64(&r.progress[w], iterations)
}

func (r *Registry) Completed() int64      { return atomic.LoadInt64(&r.completed) }
func (r *Registry) Errors() int64         { return atomic.LoadInt64(&r.errors) }
func (r *Registry) CacheWrites() int64    { return atomic.LoadInt64(&r.cacheWrites) }
func (r *Registry) CacheHits() int64      { return atomic.LoadInt64(&r.cacheHits) }
func (r *Registry) CacheMisses() int64    { return atomic.LoadInt64(&r.cacheMisses) }
func (r *Registry) BytesProcessed() int64 { return atomic.LoadInt64(&r.bytesProcessed) }

// WorkerProgress returns a copy of the per-worker progress slots. Each slot
// is read atomically; the copy as a whole is not a consistent cut.
func (r *Registry) WorkerProgress() []int64 {
	out := make([]int64, len(r.progress))
	for i := range r.progress {
		out[i] = atomic.LoadInt64(&r.progress[i])
	}
	return out
}

// Workers returns the number of progress slots.
func (r *Registry) Workers() int { return len(r.progress) }
