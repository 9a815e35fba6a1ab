package worker

const (
	// minRequestLimit is the floor applied after jitter shrinks the limit.
	minRequestLimit = 25
	// epochStride spreads seeds of successive epochs apart so payload
	// shapes keep diverging once a worker wraps its seed window.
	epochStride = 131
)

// IterationParams are the request parameters for one worker iteration.
type IterationParams struct {
	Limit int
	Seed  int
}

// DeriveParams computes the deterministic per-iteration parameters for
// worker w at iteration i. Seeds cycle through a bounded window while still
// diverging per worker and per epoch, so payload shapes vary but remain
// reproducible.
func DeriveParams(w, i, eventLimit, seedBase, seedWindow int) IterationParams {
	jitter := (i + w) % 5
	limit := eventLimit - jitter*3
	if limit < minRequestLimit {
		limit = minRequestLimit
	}

	windowIndex := i % seedWindow
	epoch := i / seedWindow
	seed := seedBase + windowIndex + w*seedWindow + epoch*epochStride

	return IterationParams{Limit: limit, Seed: seed}
}
