package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

type memObject struct {
	data []byte
	meta map[string]string
}

// MemoryStore implements Store in process memory. Used by tests and the
// development preset; contents are lost on shutdown.
type MemoryStore struct {
	mu         sync.RWMutex
	containers map[string]map[string]*memObject
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		containers: make(map[string]map[string]*memObject),
	}
}

// Put stores object bytes, overwriting any previous object of the same name.
// Overwriting drops previously set metadata, matching a fresh blob.
func (s *MemoryStore) Put(ctx context.Context, container, name string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read object data: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	objects, ok := s.containers[container]
	if !ok {
		objects = make(map[string]*memObject)
		s.containers[container] = objects
	}
	objects[name] = &memObject{data: data}
	return nil
}

// Get returns a reader over a copy of the object bytes.
func (s *MemoryStore) Get(ctx context.Context, container, name string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.containers[container][name]
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// GetMetadata returns a copy of the object's metadata.
func (s *MemoryStore) GetMetadata(ctx context.Context, container, name string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.containers[container][name]
	if !ok {
		return nil, ErrNotFound
	}
	meta := make(map[string]string, len(obj.meta))
	for k, v := range obj.meta {
		meta[k] = v
	}
	return meta, nil
}

// SetMetadata replaces the full metadata set for the object.
func (s *MemoryStore) SetMetadata(ctx context.Context, container, name string, meta map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.containers[container][name]
	if !ok {
		return ErrNotFound
	}
	copied := make(map[string]string, len(meta))
	for k, v := range meta {
		copied[k] = v
	}
	obj.meta = copied
	return nil
}

// List enumerates object names in a container, in map iteration order.
func (s *MemoryStore) List(ctx context.Context, container string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	objects := s.containers[container]
	names := make([]string, 0, len(objects))
	for name := range objects {
		names = append(names, name)
	}
	return names, nil
}
