package worker

import "testing"

func TestDeriveParams(t *testing.T) {
	tests := []struct {
		name       string
		w, i       int
		eventLimit int
		seedBase   int
		seedWindow int
		wantLimit  int
		wantSeed   int
	}{
		{
			name: "worker zero iteration zero",
			w:    0, i: 0, eventLimit: 100, seedBase: 0, seedWindow: 10,
			wantLimit: 100, wantSeed: 0,
		},
		{
			name: "jitter shrinks limit",
			w:    1, i: 2, eventLimit: 100, seedBase: 0, seedWindow: 10,
			// jitter=(2+1)%5=3, limit=100-9=91, seed=2+10=12
			wantLimit: 91, wantSeed: 12,
		},
		{
			name: "limit floor",
			w:    0, i: 4, eventLimit: 25, seedBase: 0, seedWindow: 10,
			// jitter=4 would push below 25; floor applies
			wantLimit: 25, wantSeed: 4,
		},
		{
			name: "epoch advance",
			w:    2, i: 13, eventLimit: 250, seedBase: 7, seedWindow: 10,
			// jitter=(13+2)%5=0, window=3, epoch=1, seed=7+3+20+131=161
			wantLimit: 250, wantSeed: 161,
		},
		{
			name: "seed base offset",
			w:    0, i: 0, eventLimit: 250, seedBase: 1000, seedWindow: 5,
			wantLimit: 250, wantSeed: 1000,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := DeriveParams(tc.w, tc.i, tc.eventLimit, tc.seedBase, tc.seedWindow)
			if got.Limit != tc.wantLimit {
				t.Fatalf("limit: expected %d, got %d", tc.wantLimit, got.Limit)
			}
			if got.Seed != tc.wantSeed {
				t.Fatalf("seed: expected %d, got %d", tc.wantSeed, got.Seed)
			}
		})
	}
}

// TestDeriveParamsDeterministic ensures repeated derivation yields identical
// parameters.
func TestDeriveParamsDeterministic(t *testing.T) {
	for w := 0; w < 4; w++ {
		for i := 0; i < 40; i++ {
			first := DeriveParams(w, i, 250, 17, 10)
			second := DeriveParams(w, i, 250, 17, 10)
			if first != second {
				t.Fatalf("derivation not deterministic for w=%d i=%d: %+v vs %+v", w, i, first, second)
			}
		}
	}
}

// TestDeriveParamsLimitFloor ensures the request limit never drops below 25
// for any jitter value when the event limit is at least 25.
func TestDeriveParamsLimitFloor(t *testing.T) {
	for _, eventLimit := range []int{25, 26, 30, 37, 100, 5000} {
		for i := 0; i < 5; i++ { // jitter cycles over [0,4]
			got := DeriveParams(0, i, eventLimit, 0, 10)
			if got.Limit < 25 {
				t.Fatalf("limit %d below floor for eventLimit=%d i=%d", got.Limit, eventLimit, i)
			}
		}
	}
}

// TestDeriveParamsSeedWindowCycle checks seeds repeat the window pattern
// with a fixed epoch stride.
func TestDeriveParamsSeedWindowCycle(t *testing.T) {
	window := 10
	for i := 0; i < window; i++ {
		inWindow := DeriveParams(0, i, 250, 0, window)
		nextEpoch := DeriveParams(0, i+window, 250, 0, window)
		if nextEpoch.Seed-inWindow.Seed != 131 {
			t.Fatalf("epoch stride: expected 131, got %d (i=%d)", nextEpoch.Seed-inWindow.Seed, i)
		}
	}
}
