package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/metcalfcloud/pictallion/internal/library"
)

// MemoryStore is an in-memory implementation of the BlobStore interface.
// It stores all content and snapshots in memory, making it useful for testing.
// This implementation is safe for concurrent use.
type MemoryStore struct {
	content         map[string][]byte // key -> content
	snapshots       map[string][]byte // name -> snapshot
	snapshotVersion map[string]int64  // name -> version
	mu              sync.RWMutex
}

// NewMemoryStore creates a new in-memory blob store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		content:         make(map[string][]byte),
		snapshots:       make(map[string][]byte),
		snapshotVersion: make(map[string]int64),
	}
}

// PutContent stores content identified by key.
func (m *MemoryStore) PutContent(ctx context.Context, key string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}

	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Idempotent: storing the same key multiple times is safe
	m.content[key] = data
	return nil
}

// GetContent retrieves content by key.
func (m *MemoryStore) GetContent(ctx context.Context, key string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.content[key]
	if !ok {
		return fmt.Errorf("content not found: %s", key)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write content: %w", err)
	}

	return nil
}

// PutSnapshot stores a named catalog snapshot with a version marker.
func (m *MemoryStore) PutSnapshot(ctx context.Context, name string, r io.Reader, size int64, version int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapshots[name] = data
	m.snapshotVersion[name] = version
	return nil
}

// GetSnapshot retrieves a named catalog snapshot.
func (m *MemoryStore) GetSnapshot(ctx context.Context, name string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.snapshots[name]
	if !ok {
		return fmt.Errorf("snapshot not found: %s", name)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	return nil
}

// SnapshotVersion returns the version for a named snapshot.
// Returns 0 if no snapshot has been stored under this name.
func (m *MemoryStore) SnapshotVersion(ctx context.Context, name string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.snapshotVersion[name], nil
}

// Validate always succeeds for the in-memory store.
func (m *MemoryStore) Validate(ctx context.Context) error {
	return nil
}

// Compile-time check that MemoryStore implements the BlobStore interface
var _ library.BlobStore = (*MemoryStore)(nil)
