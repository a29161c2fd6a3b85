package scheduled

import (
	"encoding/json"
	"testing"
)

func TestBuildRequest_ReturnsStaticPayloadUnchanged(t *testing.T) {
	static := map[string]json.RawMessage{"mode": json.RawMessage(`"nightly"`)}
	payload, err := BuildRequest(static)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload.Parameters["mode"]) != `"nightly"` {
		t.Fatalf("expected static payload unchanged, got %v", payload.Parameters)
	}
}
