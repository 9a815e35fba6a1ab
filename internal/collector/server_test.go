package collector

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newTestCollector(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	srv := NewServer(nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func postSnapshot(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url+"/metrics", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post snapshot: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestIngestRetainsLatest(t *testing.T) {
	srv, ts := newTestCollector(t)

	if resp := postSnapshot(t, ts.URL, `{"completed":10}`); resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	if resp := postSnapshot(t, ts.URL, `{"completed":20}`); resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	if got := string(srv.Latest()); got != `{"completed":20}` {
		t.Fatalf("latest snapshot: got %s", got)
	}
}

func TestIngestRejectsInvalidJSON(t *testing.T) {
	_, ts := newTestCollector(t)

	resp := postSnapshot(t, ts.URL, `{"completed":`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestIngestRejectsGet(t *testing.T) {
	_, ts := newTestCollector(t)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}

func readSSEFrame(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	var data string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read frame: %v", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if data != "" {
				return data
			}
			continue
		}
		if after, ok := strings.CutPrefix(line, "data: "); ok {
			data = after
		}
	}
}

func TestSSESubscriberReplaysLatestThenStreams(t *testing.T) {
	srv, ts := newTestCollector(t)

	postSnapshot(t, ts.URL, `{"completed":5}`)

	resp, err := http.Get(ts.URL + "/events")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type: got %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	if got := readSSEFrame(t, reader); got != `{"completed":5}` {
		t.Fatalf("expected latest snapshot on connect, got %s", got)
	}

	// Wait until the subscriber is registered before the next publish.
	waitSubscribers(t, srv, 1)
	postSnapshot(t, ts.URL, `{"completed":6}`)
	if got := readSSEFrame(t, reader); got != `{"completed":6}` {
		t.Fatalf("expected streamed snapshot, got %s", got)
	}
}

func TestSSESubscriberRemovedOnDisconnect(t *testing.T) {
	srv, ts := newTestCollector(t)

	postSnapshot(t, ts.URL, `{"completed":1}`)
	resp, err := http.Get(ts.URL + "/events")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	waitSubscribers(t, srv, 1)

	resp.Body.Close()
	waitSubscribers(t, srv, 0)
}

func TestWebSocketSubscriber(t *testing.T) {
	srv, ts := newTestCollector(t)

	postSnapshot(t, ts.URL, `{"completed":3}`)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, frame, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(frame) != `{"completed":3}` {
		t.Fatalf("expected latest snapshot on connect, got %s", frame)
	}

	waitSubscribers(t, srv, 1)
	postSnapshot(t, ts.URL, `{"completed":4}`)
	_, frame, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(frame) != `{"completed":4}` {
		t.Fatalf("expected streamed snapshot, got %s", frame)
	}
}

func TestHealthz(t *testing.T) {
	_, ts := newTestCollector(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
}

func waitSubscribers(t *testing.T, srv *Server, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if srv.Subscribers() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("subscribers: expected %d, got %d", want, srv.Subscribers())
}
