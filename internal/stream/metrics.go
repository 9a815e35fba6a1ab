package stream

import (
	"sync"
	"time"
)

// ConnStats tracks connection-level statistics for one subscriber client.
type ConnStats struct {
	mu          sync.Mutex
	connectTime time.Time
	frames      int64
	bytes       int64
	errors      int64
}

func (s *ConnStats) markConnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectTime = time.Now()
}

func (s *ConnStats) addBytes(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bytes += n
}

func (s *ConnStats) addFrame() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
}

func (s *ConnStats) addError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors++
}

// StatsSnapshot is a point-in-time copy of the connection statistics.
type StatsSnapshot struct {
	ConnectedFor   time.Duration
	FramesReceived int64
	BytesReceived  int64
	Errors         int64
}

// Snapshot returns a consistent copy of the statistics.
func (s *ConnStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	var connected time.Duration
	if !s.connectTime.IsZero() {
		connected = time.Since(s.connectTime)
	}
	return StatsSnapshot{
		ConnectedFor:   connected,
		FramesReceived: s.frames,
		BytesReceived:  s.bytes,
		Errors:         s.errors,
	}
}
