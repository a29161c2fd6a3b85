package objectstore

import (
	"context"
	"testing"
)

func TestMemStore_PutGetRoundTrip(t *testing.T) {
	store := NewMemStore("blobs")
	ctx := context.Background()

	ref, err := store.Put(ctx, []byte("hello world"), "text/plain")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref.Bucket != "blobs" {
		t.Fatalf("expected bucket 'blobs', got %q", ref.Bucket)
	}

	data, err := store.Get(ctx, ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "hello world" {
		t.Fatalf("expected round-tripped data, got %q", data)
	}
}

func TestMemStore_HeadReportsSize(t *testing.T) {
	store := NewMemStore("blobs")
	ctx := context.Background()

	ref, _ := store.Put(ctx, []byte("0123456789"), "application/octet-stream")
	head, err := store.Head(ctx, ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if head.Size != 10 {
		t.Fatalf("expected size 10, got %d", head.Size)
	}
}

func TestMemStore_GetMissingReturnsNotFound(t *testing.T) {
	store := NewMemStore("blobs")
	_, err := store.Get(context.Background(), Ref{Bucket: "blobs", Key: "nope"})
	if err == nil {
		t.Fatal("expected ErrNotFound")
	}
}

func TestMemStore_DeleteRemovesObject(t *testing.T) {
	store := NewMemStore("blobs")
	ctx := context.Background()

	ref, _ := store.Put(ctx, []byte("temp"), "text/plain")
	if err := store.Delete(ctx, ref); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.Get(ctx, ref); err == nil {
		t.Fatal("expected deleted object to be gone")
	}
}

func TestParseRef_RecognizesReferenceString(t *testing.T) {
	ref := Ref{Bucket: "blobs", Key: "abc123-ffff"}
	parsed, ok := ParseRef(ref.String())
	if !ok {
		t.Fatal("expected ParseRef to recognize a reference string")
	}
	if parsed != ref {
		t.Fatalf("expected %+v, got %+v", ref, parsed)
	}
}

func TestParseRef_RejectsPlainBase64(t *testing.T) {
	if _, ok := ParseRef("aGVsbG8gd29ybGQ="); ok {
		t.Fatal("expected plain base64 payload to not parse as a reference")
	}
}
