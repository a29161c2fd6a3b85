// Package objectstore implements a content-addressed object store: a
// Put/Get/Head/Delete surface that the parameter codec uses to
// externalize large blob payloads, backed by the storage.FileStorage
// abstraction (S3/GCS/Azure Blob).
package objectstore

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/flowcore/engine/internal/storage"
)

// RefPrefix marks a string as an object store reference rather than an
// inline base64 payload.
const RefPrefix = "objstore://"

// Ref identifies a stored blob by bucket and content-addressed key.
type Ref struct {
	Bucket string
	Key    string
}

// String renders the reference in its wire form.
func (r Ref) String() string {
	return RefPrefix + r.Bucket + "/" + r.Key
}

// ParseRef recognizes a wire-form string as an object store reference.
// It returns false for a plain base64 payload: a blob reference is
// fetched, anything else is decoded inline.
func ParseRef(s string) (Ref, bool) {
	if !strings.HasPrefix(s, RefPrefix) {
		return Ref{}, false
	}
	rest := strings.TrimPrefix(s, RefPrefix)
	idx := strings.Index(rest, "/")
	if idx < 0 {
		return Ref{}, false
	}
	return Ref{Bucket: rest[:idx], Key: rest[idx+1:]}, true
}

// Head is the metadata Head returns without fetching the blob body.
type Head struct {
	Size        int64
	ContentType string
	ETag        string
}

// Store is the content-addressed blob surface the Parameter Codec and
// media/document nodes depend on.
type Store interface {
	Put(ctx context.Context, data []byte, contentType string) (Ref, error)
	Get(ctx context.Context, ref Ref) ([]byte, error)
	Head(ctx context.Context, ref Ref) (Head, error)
	Delete(ctx context.Context, ref Ref) error
}

// ErrNotFound is returned by Get/Head/Delete for an unknown reference.
var ErrNotFound = errors.New("objectstore: blob not found")

// backedStore adapts storage.FileStorage (a multi-backend upload/download
// interface) to the content-addressed Store contract.
type backedStore struct {
	backend storage.FileStorage
	bucket  string
}

// NewStore wraps a FileStorage backend (S3, GCS, or Azure Blob — whatever
// storage.New built from config) behind the content-addressed Store
// interface, writing every blob under the given bucket.
func NewStore(backend storage.FileStorage, bucket string) Store {
	return &backedStore{backend: backend, bucket: bucket}
}

// Put derives a content-addressed key from the SHA-256 digest of data
// plus a random suffix, so repeated uploads of identical content don't
// collide under concurrent writers while still deduplicating well in
// practice.
func (s *backedStore) Put(ctx context.Context, data []byte, contentType string) (Ref, error) {
	key := contentKey(data)
	err := s.backend.Upload(ctx, s.bucket, key, bytes.NewReader(data), &storage.UploadOptions{
		ContentType: contentType,
	})
	if err != nil {
		return Ref{}, fmt.Errorf("objectstore: upload failed: %w", err)
	}
	return Ref{Bucket: s.bucket, Key: key}, nil
}

func (s *backedStore) Get(ctx context.Context, ref Ref) ([]byte, error) {
	rc, err := s.backend.Download(ctx, ref.Bucket, ref.Key)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("objectstore: download failed: %w", err)
	}
	return data, nil
}

func (s *backedStore) Head(ctx context.Context, ref Ref) (Head, error) {
	info, err := s.backend.GetMetadata(ctx, ref.Bucket, ref.Key)
	if err != nil {
		return Head{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return Head{Size: info.Size, ContentType: info.ContentType, ETag: info.ETag}, nil
}

func (s *backedStore) Delete(ctx context.Context, ref Ref) error {
	return s.backend.Delete(ctx, ref.Bucket, ref.Key)
}

func contentKey(data []byte) string {
	sum := sha256.Sum256(data)
	suffix := make([]byte, 4)
	_, _ = rand.Read(suffix)
	return hex.EncodeToString(sum[:16]) + "-" + hex.EncodeToString(suffix)
}

// memObject is one entry in the in-memory store used by tests and local
// development runs (mode=dev with no configured backend).
type memObject struct {
	data        []byte
	contentType string
	storedAt    time.Time
}

// memStore is a process-local Store modeled on the in-memory test
// doubles used for FileStorage; it never round-trips through a real
// network backend so unit tests stay hermetic.
type memStore struct {
	mu      sync.RWMutex
	bucket  string
	objects map[string]memObject
}

// NewMemStore builds an in-memory Store for tests and dev-mode runs
// where no cloud backend is configured.
func NewMemStore(bucket string) Store {
	return &memStore{bucket: bucket, objects: make(map[string]memObject)}
}

func (s *memStore) Put(ctx context.Context, data []byte, contentType string) (Ref, error) {
	key := contentKey(data)
	cp := make([]byte, len(data))
	copy(cp, data)

	s.mu.Lock()
	s.objects[key] = memObject{data: cp, contentType: contentType, storedAt: time.Now()}
	s.mu.Unlock()

	return Ref{Bucket: s.bucket, Key: key}, nil
}

func (s *memStore) Get(ctx context.Context, ref Ref) ([]byte, error) {
	s.mu.RLock()
	obj, ok := s.objects[ref.Key]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	cp := make([]byte, len(obj.data))
	copy(cp, obj.data)
	return cp, nil
}

func (s *memStore) Head(ctx context.Context, ref Ref) (Head, error) {
	s.mu.RLock()
	obj, ok := s.objects[ref.Key]
	s.mu.RUnlock()
	if !ok {
		return Head{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return Head{Size: int64(len(obj.data)), ContentType: obj.contentType}, nil
}

func (s *memStore) Delete(ctx context.Context, ref Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[ref.Key]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	delete(s.objects, ref.Key)
	return nil
}
