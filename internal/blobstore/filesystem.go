package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/metcalfcloud/pictallion/internal/library"
)

// FileSystemStore is a filesystem-based implementation of the BlobStore
// interface. It stores content and catalog snapshots as files in a directory
// structure:
//
//	<root>/
//	  content/
//	    <hash>               (content files, named by SHA-256)
//	  snapshots/
//	    <name>.db            (catalog snapshots)
//	    <name>.version       (version markers)
type FileSystemStore struct {
	root        string
	contentDir  string
	snapshotDir string
}

// NewFileSystemStore creates a new filesystem store rooted at the given path.
func NewFileSystemStore(root string) (*FileSystemStore, error) {
	contentDir := filepath.Join(root, "content")
	snapshotDir := filepath.Join(root, "snapshots")

	// Create directory structure
	if err := os.MkdirAll(contentDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create content directory: %w", err)
	}
	if err := os.MkdirAll(snapshotDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	return &FileSystemStore{
		root:        root,
		contentDir:  contentDir,
		snapshotDir: snapshotDir,
	}, nil
}

// PutContent stores content identified by key.
// The operation is idempotent: storing the same key multiple times is safe.
func (s *FileSystemStore) PutContent(ctx context.Context, key string, r io.Reader, size int64) error {
	destPath := filepath.Join(s.contentDir, key)

	// If content already exists, skip (idempotent)
	if _, err := os.Stat(destPath); err == nil {
		// Consume the reader to maintain expected behavior
		written, err := io.Copy(io.Discard, r)
		if err != nil {
			return fmt.Errorf("failed to read content: %w", err)
		}
		if written != size {
			return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
		}
		return nil
	}

	return s.writeFile(destPath, r, size)
}

// GetContent retrieves content by key and writes it to w.
func (s *FileSystemStore) GetContent(ctx context.Context, key string, w io.Writer) error {
	srcPath := filepath.Join(s.contentDir, key)
	return s.readFile(srcPath, w, fmt.Sprintf("content not found: %s", key))
}

// PutSnapshot stores a named catalog snapshot along with a version marker.
func (s *FileSystemStore) PutSnapshot(ctx context.Context, name string, r io.Reader, size int64, version int64) error {
	destPath := filepath.Join(s.snapshotDir, name+".db")
	if err := s.writeFile(destPath, r, size); err != nil {
		return err
	}

	// Write version file
	versionPath := filepath.Join(s.snapshotDir, name+".version")
	versionData := strconv.FormatInt(version, 10)
	return os.WriteFile(versionPath, []byte(versionData), 0644)
}

// GetSnapshot retrieves a named catalog snapshot and writes it to w.
func (s *FileSystemStore) GetSnapshot(ctx context.Context, name string, w io.Writer) error {
	srcPath := filepath.Join(s.snapshotDir, name+".db")
	return s.readFile(srcPath, w, fmt.Sprintf("snapshot not found: %s", name))
}

// SnapshotVersion returns the version marker for a named snapshot.
// Returns 0 if no version file exists.
func (s *FileSystemStore) SnapshotVersion(ctx context.Context, name string) (int64, error) {
	versionPath := filepath.Join(s.snapshotDir, name+".version")
	data, err := os.ReadFile(versionPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading version file: %w", err)
	}

	version, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// Validate verifies that the store directories are accessible.
func (s *FileSystemStore) Validate(ctx context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("store root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("store root is not a directory: %s", s.root)
	}

	for _, dir := range []string{s.contentDir, s.snapshotDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("store directory not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("store path is not a directory: %s", dir)
		}
	}

	return nil
}

// writeFile writes data from r to the specified path using atomic write (temp file + rename).
func (s *FileSystemStore) writeFile(destPath string, r io.Reader, expectedSize int64) error {
	// Create temp file in the same directory to ensure atomic rename works
	dir := filepath.Dir(destPath)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// readFile reads from the specified path and writes to w.
func (s *FileSystemStore) readFile(srcPath string, w io.Writer, notFoundMsg string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s", notFoundMsg)
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	return nil
}

// Compile-time check that FileSystemStore implements the BlobStore interface
var _ library.BlobStore = (*FileSystemStore)(nil)
