package library

import (
	"context"
	"io"
)

// BlobStore provides an interface for content storage backends. Content is
// write-once and addressed by key (the content hash for originals); all
// operations stream so large files never sit in memory.
type BlobStore interface {
	// PutContent stores content under key. Idempotent: storing the same key
	// again is safe and must not corrupt the existing object. size is the
	// number of bytes that will be read from r.
	PutContent(ctx context.Context, key string, r io.Reader, size int64) error

	// GetContent retrieves content by key and writes it to w.
	GetContent(ctx context.Context, key string, w io.Writer) error

	// PutSnapshot stores a named catalog snapshot with a version marker.
	PutSnapshot(ctx context.Context, name string, r io.Reader, size int64, version int64) error

	// GetSnapshot retrieves a named catalog snapshot and writes it to w.
	GetSnapshot(ctx context.Context, name string, w io.Writer) error

	// SnapshotVersion returns the stored version for a named snapshot, or 0
	// when none has been stored.
	SnapshotVersion(ctx context.Context, name string) (int64, error)

	// Validate verifies the store is accessible and properly configured.
	Validate(ctx context.Context) error
}
