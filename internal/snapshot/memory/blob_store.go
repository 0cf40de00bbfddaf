// Package memory provides an in-memory snapshot store for tests.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Object is one stored snapshot.
type Object struct {
	ContentType string
	Data        []byte
}

// BlobStore keeps snapshots in a map, keyed by path.
type BlobStore struct {
	mu      sync.Mutex
	objects map[string]Object
}

// New creates an empty in-memory snapshot store.
func New() *BlobStore {
	return &BlobStore{objects: map[string]Object{}}
}

// PutObject stores data and returns a mem:// URI.
func (s *BlobStore) PutObject(_ context.Context, path string, contentType string, data []byte) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = Object{
		ContentType: contentType,
		Data:        append([]byte(nil), data...),
	}
	return "mem://" + path, nil
}

// Get returns the stored object for a path.
func (s *BlobStore) Get(path string) (Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[path]
	return obj, ok
}

// Len reports how many snapshots are stored.
func (s *BlobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
