// Package blobstore stores scan images. It defines the ObjectStore interface,
// an in-memory implementation for tests and development, and an
// S3-compatible implementation for hosted buckets.
package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Sentinel errors
// ---------------------------------------------------------------------------

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrObjectExists   = errors.New("object already exists")
	ErrEmptyKey       = errors.New("object key is required")
)

// ---------------------------------------------------------------------------
// Domain types
// ---------------------------------------------------------------------------

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

// ObjectStore is the contract for image storage backends.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// NewKey builds an object key of the form "{userID}/{uuid}.{ext}". The
// extension comes from the file name, then the content type.
func NewKey(userID uuid.UUID, fileName, contentType string) string {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(fileName)), ".")
	if ext == "" {
		if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
			ext = strings.TrimPrefix(exts[0], ".")
		}
	}
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("%s/%s.%s", userID, uuid.New(), ext)
}

// ---------------------------------------------------------------------------
// In-memory implementation
// ---------------------------------------------------------------------------

type storedObject struct {
	info ObjectInfo
	data []byte
}

// MemoryStore is a thread-safe ObjectStore kept in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	bucket  string
	objects map[string]*storedObject
}

func NewMemoryStore(bucket string) *MemoryStore {
	return &MemoryStore{bucket: bucket, objects: make(map[string]*storedObject)}
}

// Put stores a copy of data. Existing keys are never overwritten.
func (s *MemoryStore) Put(_ context.Context, key, contentType string, data []byte) error {
	if key == "" {
		return ErrEmptyKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[key]; ok {
		return fmt.Errorf("%s: %w", key, ErrObjectExists)
	}
	s.objects[key] = &storedObject{
		info: ObjectInfo{
			Key:         key,
			ContentType: contentType,
			Size:        int64(len(data)),
			CreatedAt:   time.Now().UTC(),
		},
		data: bytes.Clone(data),
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, nil, fmt.Errorf("%s: %w", key, ErrObjectNotFound)
	}
	info := obj.info
	return io.NopCloser(bytes.NewReader(obj.data)), &info, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[key]; !ok {
		return fmt.Errorf("%s: %w", key, ErrObjectNotFound)
	}
	delete(s.objects, key)
	return nil
}

func (s *MemoryStore) URL(key string) string {
	return fmt.Sprintf("memory://%s/%s", s.bucket, key)
}

// Len returns the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Has reports whether key is stored.
func (s *MemoryStore) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok
}
