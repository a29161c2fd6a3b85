package trigger

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Event is one execution-progress notification: a node completing, or
// the run reaching a terminal state.
type Event struct {
	ExecutionID string `json:"executionId"`
	NodeID      string `json:"nodeId,omitempty"`
	Status      string `json:"status"`
}

// Broadcaster is an optional sink the Executor notifies as an execution
// progresses. It is consumed through this interface only; the core
// never depends on a concrete transport.
type Broadcaster interface {
	Broadcast(ctx context.Context, event Event)
}

// WebSocketHub is a minimal Broadcaster backed by gorilla/websocket: it
// fans every event out to all currently-connected subscribers of an
// execution ID, dropping events for executions nobody is watching.
type WebSocketHub struct {
	upgrader websocket.Upgrader

	mu   sync.RWMutex
	subs map[string]map[*websocket.Conn]struct{}
}

// NewWebSocketHub constructs an empty hub.
func NewWebSocketHub() *WebSocketHub {
	return &WebSocketHub{
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		subs:     make(map[string]map[*websocket.Conn]struct{}),
	}
}

// Subscribe upgrades an HTTP connection and registers it for events
// belonging to executionID. The caller owns the HTTP request lifecycle;
// the transport surface itself is out of scope for the core.
func (h *WebSocketHub) Subscribe(w http.ResponseWriter, r *http.Request, executionID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	h.mu.Lock()
	if h.subs[executionID] == nil {
		h.subs[executionID] = make(map[*websocket.Conn]struct{})
	}
	h.subs[executionID][conn] = struct{}{}
	h.mu.Unlock()

	return nil
}

// Broadcast implements Broadcaster.
func (h *WebSocketHub) Broadcast(_ context.Context, event Event) {
	h.mu.RLock()
	conns := h.subs[event.ExecutionID]
	h.mu.RUnlock()
	if len(conns) == 0 {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			conn.Close()
			delete(conns, conn)
		}
	}
	if event.NodeID == "" {
		// terminal event: the run is over, drop the subscriber set.
		for conn := range conns {
			conn.Close()
		}
		delete(h.subs, event.ExecutionID)
	}
}
