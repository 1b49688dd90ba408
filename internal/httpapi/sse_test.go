package httpapi

import (
	"bufio"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestSSEHubPublishAndDropSlow(t *testing.T) {
	hub := NewSSEHub()
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	hub.PublishJSON(map[string]any{"type": "task_update", "task_id": 1})
	select {
	case msg := <-ch:
		if !strings.Contains(string(msg), "task_update") {
			t.Fatalf("unexpected message: %s", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}

	// A full channel drops instead of blocking the publisher.
	for i := 0; i < cap(ch)+10; i++ {
		hub.PublishJSON(map[string]any{"type": "flood", "n": i})
	}
}

func TestSSEUnsubscribeClosesChannel(t *testing.T) {
	hub := NewSSEHub()
	ch := hub.Subscribe()
	hub.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after unsubscribe")
	}
	// Double unsubscribe is a no-op.
	hub.Unsubscribe(ch)
}

func TestStreamEndpointSendsConnectedEvent(t *testing.T) {
	ts := newTestServer(t, ServerOptions{})

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("wrong content type: %s", ct)
	}
	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	if !strings.Contains(line, "connected") {
		t.Fatalf("expected connected event, got %q", line)
	}
}
