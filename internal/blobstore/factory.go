package blobstore

import (
	"context"
	"fmt"

	"github.com/metcalfcloud/pictallion/internal/config"
	"github.com/metcalfcloud/pictallion/internal/library"
)

// NewBlobStoreFromConfig creates a BlobStore implementation based on the
// blobstore config type.
func NewBlobStoreFromConfig(ctx context.Context, cfg config.BlobStoreConfig) (library.BlobStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "filesystem":
		if cfg.Root == "" {
			return nil, fmt.Errorf("filesystem blobstore requires root to be set")
		}
		return NewFileSystemStore(cfg.Root)
	case "s3":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("s3 blobstore requires bucket to be set")
		}
		return NewS3Store(ctx, cfg.Bucket)
	default:
		return nil, fmt.Errorf("unknown blobstore type: %s", cfg.Type)
	}
}
