package library

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// SnapshotName is the blob store name catalog backups are stored under.
const SnapshotName = "catalog"

// BackupResult describes a finished backup attempt.
type BackupResult struct {
	Version   int64
	Skipped   bool // the stored snapshot was already at this version
	Encrypted bool
}

// Backup snapshots the catalog into the blob store. The snapshot version is
// the highest transition sequence number, so a backup is skipped when
// nothing has happened since the last one. With an encryptor configured the
// snapshot is age-encrypted before upload.
func (s *Service) Backup(ctx context.Context) (*BackupResult, error) {
	version, err := s.catalog.MaxTransitionSeq(ctx)
	if err != nil {
		return nil, err
	}

	stored, err := s.blobs.SnapshotVersion(ctx, SnapshotName)
	if err != nil {
		return nil, err
	}
	if stored == version && version > 0 {
		s.logger.Info("backup skipped, snapshot up to date", "version", version)
		return &BackupResult{Version: version, Skipped: true}, nil
	}

	tmpDir, err := os.MkdirTemp("", "pictallion-backup-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	snapPath := filepath.Join(tmpDir, "catalog.db")
	if err := s.catalog.SnapshotTo(ctx, snapPath); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(snapPath)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	encrypted := false
	if s.encryptor != nil {
		var buf bytes.Buffer
		if err := s.encryptor.Encrypt(bytes.NewReader(data), &buf); err != nil {
			return nil, fmt.Errorf("encrypting snapshot: %w", err)
		}
		data = buf.Bytes()
		encrypted = true
	}

	if err := s.blobs.PutSnapshot(ctx, SnapshotName, bytes.NewReader(data), int64(len(data)), version); err != nil {
		return nil, err
	}

	s.logger.Info("backup complete", "version", version, "bytes", len(data), "encrypted", encrypted)
	return &BackupResult{Version: version, Encrypted: encrypted}, nil
}
