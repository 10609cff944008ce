package live

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func readLine(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("read line: %v", err)
	}
	return strings.TrimRight(line, "\n")
}

func TestSSEHandlerWritesProbeThenFrames(t *testing.T) {
	hub := NewHub(4, zap.NewNop())
	srv := httptest.NewServer(NewSSEHandler(hub, StreamOptions{HeartbeatInterval: time.Hour}, zap.NewNop()))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}
	reader := bufio.NewReader(resp.Body)
	if probe := readLine(t, reader); probe != "" {
		t.Fatalf("probe = %q, want blank line", probe)
	}

	waitFor(t, time.Second, func() bool { return hub.Subscribers() == 1 })
	hub.Publish(EventAlertTriggered, map[string]string{"k": "v"})

	if got := readLine(t, reader); got != "event: alert-triggered" {
		t.Fatalf("event line = %q", got)
	}
	if got := readLine(t, reader); got != `data: {"k":"v"}` {
		t.Fatalf("data line = %q", got)
	}
	if got := readLine(t, reader); got != "" {
		t.Fatalf("terminator = %q", got)
	}

	cancel()
	waitFor(t, time.Second, func() bool { return hub.Subscribers() == 0 })
}

func TestSSEHandlerRefusesAfterShutdown(t *testing.T) {
	hub := NewHub(4, zap.NewNop())
	hub.Shutdown()

	rec := httptest.NewRecorder()
	NewSSEHandler(hub, StreamOptions{}, zap.NewNop()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestWSHandlerSendsReadyThenEvents(t *testing.T) {
	hub := NewHub(4, zap.NewNop())
	srv := httptest.NewServer(NewWSHandler(hub, StreamOptions{HeartbeatInterval: time.Hour}, nil, zap.NewNop()))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var msg wsMessage
	if err := conn.ReadJSON(&msg); err != nil || msg.Event != "ready" {
		t.Fatalf("ready = %+v (%v)", msg, err)
	}

	hub.Publish(EventDatapointCreated, map[string]int{"id": 3})
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read event: %v", err)
	}
	var payload map[string]int
	if msg.Event != EventDatapointCreated || json.Unmarshal(msg.Data, &payload) != nil || payload["id"] != 3 {
		t.Fatalf("event = %+v", msg)
	}

	conn.Close()
	waitFor(t, time.Second, func() bool { return hub.Subscribers() == 0 })
}
