// Package collector implements the metrics collector/broadcaster: it
// ingests snapshot POSTs, retains only the latest one, and fans snapshots
// out to live subscribers over SSE or WebSocket.
package collector

import (
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	maxSnapshotBytes = 1 << 20
	// subscriberBuffer bounds queued frames per subscriber. A slow consumer
	// drops intermediate frames rather than backpressuring ingest.
	subscriberBuffer = 16

	writeTimeout = 10 * time.Second
)

type subscriber struct {
	ch chan []byte
}

// Server holds the latest snapshot and the live subscriber set.
type Server struct {
	log      *zap.SugaredLogger
	upgrader websocket.Upgrader

	mu     sync.Mutex
	latest []byte
	subs   map[*subscriber]struct{}
}

func NewServer(log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Server{
		log:  log,
		subs: make(map[*subscriber]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The dashboard is served from arbitrary origins during
			// development; snapshots carry no credentials.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the HTTP routes of the collector.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", s.handleIngest)
	mux.HandleFunc("/events", s.handleSSE)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

// Latest returns the most recently ingested snapshot, or nil.
func (s *Server) Latest() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// Subscribers reports the current live subscriber count.
func (s *Server) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSnapshotBytes+1))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	if len(body) > maxSnapshotBytes {
		http.Error(w, "snapshot too large", http.StatusRequestEntityTooLarge)
		return
	}
	if !gjson.ValidBytes(body) {
		http.Error(w, "snapshot must be valid JSON", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.latest = body
	for sub := range s.subs {
		select {
		case sub.ch <- body:
		default:
			// Subscriber is draining too slowly; skip this frame for it.
		}
	}
	subs := len(s.subs)
	s.mu.Unlock()

	s.log.Debugw("snapshot ingested",
		"bytes", len(body),
		"completed", gjson.GetBytes(body, "completed").Int(),
		"subscribers", subs)
	w.WriteHeader(http.StatusAccepted)
}

// subscribe registers a new subscriber with the latest snapshot (if any)
// already queued.
func (s *Server) subscribe() *subscriber {
	sub := &subscriber{ch: make(chan []byte, subscriberBuffer)}
	s.mu.Lock()
	if s.latest != nil {
		sub.ch <- s.latest
	}
	s.subs[sub] = struct{}{}
	s.mu.Unlock()
	return sub
}

func (s *Server) unsubscribe(sub *subscriber) {
	s.mu.Lock()
	delete(s.subs, sub)
	s.mu.Unlock()
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := s.subscribe()
	defer s.unsubscribe(sub)
	s.log.Infow("sse subscriber connected", "remote", r.RemoteAddr)

	for {
		select {
		case <-r.Context().Done():
			s.log.Infow("sse subscriber disconnected", "remote", r.RemoteAddr)
			return
		case frame := <-sub.ch:
			if _, err := fmt.Fprintf(w, "data: %s\n\n", frame); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()

	sub := s.subscribe()
	defer s.unsubscribe(sub)
	s.log.Infow("websocket subscriber connected", "remote", r.RemoteAddr)

	// Reader goroutine: the dashboard never sends data, but reading is how
	// we learn about close frames.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			s.log.Infow("websocket subscriber disconnected", "remote", r.RemoteAddr)
			return
		case <-r.Context().Done():
			return
		case frame := <-sub.ch:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		}
	}
}
