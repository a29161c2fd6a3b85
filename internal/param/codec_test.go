package param

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/flowcore/engine/internal/objectstore"
)

func newTestTable() *Table {
	return NewTable(objectstore.NewMemStore("blobs"))
}

func TestStringCodec_RoundTrip(t *testing.T) {
	tbl := newTestTable()
	ctx := context.Background()

	node, err := tbl.WireToNode(ctx, "string", json.RawMessage(`"hello"`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if node != "hello" {
		t.Fatalf("expected %q, got %v", "hello", node)
	}

	wire, err := tbl.NodeToWire(ctx, "string", node)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(wire) != `"hello"` {
		t.Fatalf("expected round-tripped wire value, got %s", wire)
	}
}

func TestStringCodec_RejectsWrongKind(t *testing.T) {
	tbl := newTestTable()
	if _, err := tbl.WireToNode(context.Background(), "string", json.RawMessage(`42`)); err == nil {
		t.Fatal("expected type error for number passed as string")
	}
}

func TestNumberCodec_RoundTrip(t *testing.T) {
	tbl := newTestTable()
	ctx := context.Background()

	node, err := tbl.WireToNode(ctx, "number", json.RawMessage(`3.5`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if node != 3.5 {
		t.Fatalf("expected 3.5, got %v", node)
	}
}

func TestJSONCodec_AcceptsAnyShape(t *testing.T) {
	tbl := newTestTable()
	ctx := context.Background()

	for _, raw := range []string{`{"a":1}`, `[1,2,3]`, `"s"`, `42`, `true`, `null`} {
		if _, err := tbl.WireToNode(ctx, "json", json.RawMessage(raw)); err != nil {
			t.Fatalf("unexpected error for %s: %v", raw, err)
		}
	}
}

func TestGeoJSONCodec_AcceptsValidFeature(t *testing.T) {
	tbl := newTestTable()
	raw := json.RawMessage(`{"type":"Feature","geometry":null,"properties":{}}`)
	if _, err := tbl.WireToNode(context.Background(), "geojson", raw); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGeoJSONCodec_RejectsMissingType(t *testing.T) {
	tbl := newTestTable()
	raw := json.RawMessage(`{"geometry":null}`)
	if _, err := tbl.WireToNode(context.Background(), "geojson", raw); err == nil {
		t.Fatal("expected error for missing geojson type member")
	}
}

func TestGeoJSONCodec_RejectsUnrecognizedType(t *testing.T) {
	tbl := newTestTable()
	raw := json.RawMessage(`{"type":"NotAGeoJSONType"}`)
	if _, err := tbl.WireToNode(context.Background(), "geojson", raw); err == nil {
		t.Fatal("expected error for unrecognized geojson type")
	}
}

func TestImageCodec_InlineIngress(t *testing.T) {
	tbl := newTestTable()
	ctx := context.Background()

	payload := []byte("tiny-png-bytes")
	encoded := base64.StdEncoding.EncodeToString(payload)
	wire := json.RawMessage(`{"data":"` + encoded + `","mimeType":"image/png"}`)

	node, err := tbl.WireToNode(ctx, "image", wire)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	blob, ok := node.(*BlobValue)
	if !ok {
		t.Fatalf("expected *BlobValue, got %T", node)
	}
	if string(blob.Data) != "tiny-png-bytes" || blob.MimeType != "image/png" {
		t.Fatalf("unexpected blob: %+v", blob)
	}
}

func TestImageCodec_EgressInlinesSmallPayload(t *testing.T) {
	tbl := newTestTable()
	ctx := context.Background()

	blob := &BlobValue{Data: []byte("small"), MimeType: "image/png"}
	wire, err := tbl.NodeToWire(ctx, "image", blob)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(string(wire), objectstore.RefPrefix) {
		t.Fatalf("expected small payload to be inlined, got %s", wire)
	}
}

func TestImageCodec_EgressExternalizesLargePayload(t *testing.T) {
	tbl := newTestTable()
	ctx := context.Background()

	large := make([]byte, InlineThreshold+1)
	blob := &BlobValue{Data: large, MimeType: "image/png"}
	wire, err := tbl.NodeToWire(ctx, "image", blob)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(wire), objectstore.RefPrefix) {
		t.Fatalf("expected large payload to be externalized as a reference, got %s", wire)
	}
}

func TestImageCodec_ReferenceIngress(t *testing.T) {
	tbl := newTestTable()
	ctx := context.Background()

	large := []byte(strings.Repeat("x", InlineThreshold+1))
	egress, err := tbl.NodeToWire(ctx, "image", &BlobValue{Data: large, MimeType: "image/png"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	node, err := tbl.WireToNode(ctx, "image", egress)
	if err != nil {
		t.Fatalf("unexpected error reading back reference: %v", err)
	}
	blob := node.(*BlobValue)
	if len(blob.Data) != len(large) {
		t.Fatalf("expected round-tripped large payload, got len %d", len(blob.Data))
	}
}

func TestImageCodec_IsIdempotentAcrossRoundTrip(t *testing.T) {
	tbl := newTestTable()
	ctx := context.Background()

	blob := &BlobValue{Data: []byte("idempotency check"), MimeType: "image/png"}
	wire1, _ := tbl.NodeToWire(ctx, "image", blob)
	node1, _ := tbl.WireToNode(ctx, "image", wire1)
	wire2, err := tbl.NodeToWire(ctx, "image", node1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(wire1) != string(wire2) {
		t.Fatalf("expected idempotent conversion, got %s vs %s", wire1, wire2)
	}
}

func TestTable_UnknownTypeIsInitError(t *testing.T) {
	tbl := newTestTable()
	if _, err := tbl.WireToNode(context.Background(), "not-a-real-type", json.RawMessage(`1`)); err == nil {
		t.Fatal("expected error for unregistered parameter type")
	}
}
