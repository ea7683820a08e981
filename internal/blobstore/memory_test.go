package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestMemoryStore_ContentRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	data := "photo bytes"
	if err := s.PutContent(ctx, "key1", strings.NewReader(data), int64(len(data))); err != nil {
		t.Fatalf("PutContent() error = %v", err)
	}

	var buf bytes.Buffer
	if err := s.GetContent(ctx, "key1", &buf); err != nil {
		t.Fatalf("GetContent() error = %v", err)
	}
	if buf.String() != data {
		t.Errorf("content = %q, want %q", buf.String(), data)
	}

	if err := s.GetContent(ctx, "missing", &buf); err == nil {
		t.Error("GetContent() expected error for missing key")
	}
}

func TestMemoryStore_SizeMismatch(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.PutContent(ctx, "key1", strings.NewReader("short"), 100); err == nil {
		t.Error("PutContent() expected size mismatch error")
	}
}

func TestMemoryStore_Snapshots(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	version, err := s.SnapshotVersion(ctx, "catalog")
	if err != nil {
		t.Fatalf("SnapshotVersion() error = %v", err)
	}
	if version != 0 {
		t.Errorf("version = %d, want 0", version)
	}

	data := "snapshot bytes"
	if err := s.PutSnapshot(ctx, "catalog", strings.NewReader(data), int64(len(data)), 7); err != nil {
		t.Fatalf("PutSnapshot() error = %v", err)
	}

	version, err = s.SnapshotVersion(ctx, "catalog")
	if err != nil {
		t.Fatalf("SnapshotVersion() error = %v", err)
	}
	if version != 7 {
		t.Errorf("version = %d, want 7", version)
	}

	var buf bytes.Buffer
	if err := s.GetSnapshot(ctx, "catalog", &buf); err != nil {
		t.Fatalf("GetSnapshot() error = %v", err)
	}
	if buf.String() != data {
		t.Errorf("snapshot = %q, want %q", buf.String(), data)
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", n)
			data := fmt.Sprintf("data-%d", n)
			if err := s.PutContent(ctx, key, strings.NewReader(data), int64(len(data))); err != nil {
				t.Errorf("PutContent() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 10; i++ {
		var buf bytes.Buffer
		if err := s.GetContent(ctx, fmt.Sprintf("key-%d", i), &buf); err != nil {
			t.Errorf("GetContent() error = %v", err)
		}
	}
}
