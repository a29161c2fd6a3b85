// Package param implements the parameter codec: a fixed, per-type table
// of wire<->node conversions. Missing entries are an init-time error,
// never a runtime one.
package param

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/flowcore/engine/internal/objectstore"
)

// BlobValue is the node-form representation of an image/audio/document
// parameter: materialized bytes plus a MIME type.
type BlobValue struct {
	Data     []byte `json:"-"`
	MimeType string `json:"mimeType"`
}

// wireBlob is the wire-form shape: {data, mimeType}, where data is either
// a blob reference string or a base64-encoded inline payload.
type wireBlob struct {
	Data     json.RawMessage `json:"data"`
	MimeType string          `json:"mimeType"`
}

// InlineThreshold is the default egress size threshold: node outputs
// whose bytes exceed this size are written to the object store and
// replaced with a reference; smaller payloads are inlined as base64.
const InlineThreshold = 128 * 1024 // 128 KiB

// Codec converts one declared parameter type between its wire and node
// forms. Implementations must be idempotent: feeding back an
// already-canonical value returns it unchanged.
type Codec interface {
	WireToNode(ctx context.Context, wire json.RawMessage) (any, error)
	NodeToWire(ctx context.Context, node any) (json.RawMessage, error)
}

// Table is the fixed registry of codecs by declared parameter type name.
type Table struct {
	store     objectstore.Store
	threshold int
	codecs    map[string]Codec
}

// NewTable builds the full codec table against the given object store.
// Every declared parameter type has an entry; there is no runtime
// fallback for an unknown type.
func NewTable(store objectstore.Store) *Table {
	t := &Table{store: store, threshold: InlineThreshold}
	t.codecs = map[string]Codec{
		"string":   identityCodec{kind: "string"},
		"number":   identityCodec{kind: "number"},
		"boolean":  identityCodec{kind: "boolean"},
		"json":     identityCodec{kind: ""},
		"any":      identityCodec{kind: ""},
		"geojson":  geojsonCodec{},
		"image":    blobCodec{store: store, threshold: t.threshold},
		"audio":    blobCodec{store: store, threshold: t.threshold},
		"document": blobCodec{store: store, threshold: t.threshold},
	}
	return t
}

// WireToNode converts a wire-form value to its node-form counterpart for
// the named declared type.
func (t *Table) WireToNode(ctx context.Context, paramType string, wire json.RawMessage) (any, error) {
	codec, ok := t.codecs[paramType]
	if !ok {
		return nil, fmt.Errorf("param: no codec registered for type %q", paramType)
	}
	return codec.WireToNode(ctx, wire)
}

// NodeToWire converts a node-form value back to wire form for the named
// declared type.
func (t *Table) NodeToWire(ctx context.Context, paramType string, node any) (json.RawMessage, error) {
	codec, ok := t.codecs[paramType]
	if !ok {
		return nil, fmt.Errorf("param: no codec registered for type %q", paramType)
	}
	return codec.NodeToWire(ctx, node)
}

// identityCodec implements string/number/boolean/json/any: the node form
// is identical to the wire form. kind, when non-empty, rejects a wire
// value of the wrong JSON kind.
type identityCodec struct{ kind string }

func (c identityCodec) WireToNode(ctx context.Context, wire json.RawMessage) (any, error) {
	var v any
	if len(wire) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(wire, &v); err != nil {
		return nil, fmt.Errorf("param: invalid JSON value: %w", err)
	}
	if err := checkKind(c.kind, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (c identityCodec) NodeToWire(ctx context.Context, node any) (json.RawMessage, error) {
	if node == nil {
		return json.RawMessage("null"), nil
	}
	if err := checkKind(c.kind, node); err != nil {
		return nil, err
	}
	return json.Marshal(node)
}

func checkKind(kind string, v any) error {
	switch kind {
	case "string":
		if _, ok := v.(string); !ok {
			return fmt.Errorf("param: expected string, got %T", v)
		}
	case "number":
		if _, ok := v.(float64); !ok {
			return fmt.Errorf("param: expected number, got %T", v)
		}
	case "boolean":
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("param: expected boolean, got %T", v)
		}
	}
	return nil
}

// geojsonCodec passes the value through unchanged but performs a
// structural GeoJSON check on ingress.
type geojsonCodec struct{}

func (geojsonCodec) WireToNode(ctx context.Context, wire json.RawMessage) (any, error) {
	var v any
	if err := json.Unmarshal(wire, &v); err != nil {
		return nil, fmt.Errorf("param: invalid GeoJSON JSON: %w", err)
	}
	if err := validateGeoJSONShape(v); err != nil {
		return nil, err
	}
	return v, nil
}

func (geojsonCodec) NodeToWire(ctx context.Context, node any) (json.RawMessage, error) {
	return json.Marshal(node)
}

// validateGeoJSONShape checks the minimal structural invariant of a
// GeoJSON value: an object with a recognized "type" member.
func validateGeoJSONShape(v any) error {
	obj, ok := v.(map[string]any)
	if !ok {
		return fmt.Errorf("param: geojson value must be a JSON object")
	}
	typ, ok := obj["type"].(string)
	if !ok {
		return fmt.Errorf("param: geojson value is missing a string \"type\" member")
	}
	switch typ {
	case "Feature", "FeatureCollection", "Point", "MultiPoint", "LineString",
		"MultiLineString", "Polygon", "MultiPolygon", "GeometryCollection":
		return nil
	default:
		return fmt.Errorf("param: unrecognized geojson type %q", typ)
	}
}

// blobCodec implements image/audio/document: on ingress, a blob
// reference is fetched from the Object Store and a base64 inline payload
// is decoded; on egress, large payloads are written to the store and
// replaced with a reference, small ones are inlined.
type blobCodec struct {
	store     objectstore.Store
	threshold int
}

func (c blobCodec) WireToNode(ctx context.Context, wire json.RawMessage) (any, error) {
	if len(wire) == 0 {
		return nil, nil
	}
	var wb wireBlob
	if err := json.Unmarshal(wire, &wb); err != nil {
		return nil, fmt.Errorf("param: invalid blob wire value: %w", err)
	}

	var dataStr string
	if err := json.Unmarshal(wb.Data, &dataStr); err != nil {
		return nil, fmt.Errorf("param: blob data must be a string: %w", err)
	}

	if ref, isRef := objectstore.ParseRef(dataStr); isRef {
		bytes, err := c.store.Get(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("param: failed to fetch blob %s: %w", ref, err)
		}
		return &BlobValue{Data: bytes, MimeType: wb.MimeType}, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(dataStr)
	if err != nil {
		return nil, fmt.Errorf("param: invalid base64 blob data: %w", err)
	}
	return &BlobValue{Data: decoded, MimeType: wb.MimeType}, nil
}

func (c blobCodec) NodeToWire(ctx context.Context, node any) (json.RawMessage, error) {
	if node == nil {
		return json.RawMessage("null"), nil
	}
	blob, ok := node.(*BlobValue)
	if !ok {
		return nil, fmt.Errorf("param: expected *BlobValue, got %T", node)
	}

	var dataField string
	if len(blob.Data) > c.threshold {
		ref, err := c.store.Put(ctx, blob.Data, blob.MimeType)
		if err != nil {
			return nil, fmt.Errorf("param: failed to store blob: %w", err)
		}
		dataField = ref.String()
	} else {
		dataField = base64.StdEncoding.EncodeToString(blob.Data)
	}

	return json.Marshal(wireBlob{
		Data:     mustMarshalString(dataField),
		MimeType: blob.MimeType,
	})
}

func mustMarshalString(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}
