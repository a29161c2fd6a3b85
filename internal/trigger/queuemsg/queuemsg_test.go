package queuemsg

import (
	"encoding/json"
	"testing"

	"github.com/flowcore/engine/internal/messaging"
)

func TestBuildRequest_UnwrapsJSONBody(t *testing.T) {
	msg := messaging.Message{
		Body:       json.RawMessage(`{"orderId":"o-1","amount":9}`),
		Attributes: map[string]string{"source": "checkout"},
	}
	payload, err := BuildRequest(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload.Parameters["orderId"]) != `"o-1"` {
		t.Fatalf("expected orderId field, got %v", payload.Parameters)
	}
	if string(payload.Parameters["attributes"]) != `{"source":"checkout"}` {
		t.Fatalf("expected attributes field, got %s", payload.Parameters["attributes"])
	}
}

func TestBuildRequest_RejectsNonObjectBody(t *testing.T) {
	msg := messaging.Message{Body: json.RawMessage(`[1,2,3]`)}
	if _, err := BuildRequest(msg); err == nil {
		t.Fatal("expected error for non-object message body")
	}
}
