package trigger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestWebSocketHub_BroadcastsToSubscriber(t *testing.T) {
	hub := NewWebSocketHub()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := hub.Subscribe(w, r, "exec-1"); err != nil {
			t.Errorf("subscribe failed: %v", err)
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	// give the server goroutine time to register the subscription.
	time.Sleep(50 * time.Millisecond)

	hub.Broadcast(context.Background(), Event{ExecutionID: "exec-1", NodeID: "n1", Status: "completed"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("expected a broadcast message: %v", err)
	}
	if !strings.Contains(string(msg), "exec-1") {
		t.Fatalf("unexpected message: %s", msg)
	}
}

func TestWebSocketHub_BroadcastWithNoSubscribersIsNoop(t *testing.T) {
	hub := NewWebSocketHub()
	hub.Broadcast(context.Background(), Event{ExecutionID: "none", Status: "completed"})
}
