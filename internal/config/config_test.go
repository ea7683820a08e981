package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		BaseDir: "/home/user/.local/share/pictallion",
		LogDir:  "/home/user/.local/share/pictallion/log",
		Catalog: CatalogConfig{Type: "sqlite", DataDir: "/home/user/.local/share/pictallion/catalog"},
		BlobStore: BlobStoreConfig{
			Type: "filesystem",
			Root: "/photos/store",
		},
		Metadata:  MetadataConfig{Type: "exiftool", ExiftoolPath: "/usr/bin/exiftool"},
		Annotator: AnnotatorConfig{Provider: "http", Endpoint: "http://localhost:8090/annotate", TimeoutSeconds: 15},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  "/home/user/.local/share/pictallion/keys/pictallion.pub",
			PrivateKeyPath: "/home/user/.local/share/pictallion/keys/pictallion.key",
		},
		Pipeline: PipelineConfig{
			DuplicateFloor:     85,
			BurstFloor:         70,
			BurstWindowSeconds: 10,
			BatchWorkers:       8,
		},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.BaseDir != original.BaseDir {
		t.Errorf("BaseDir = %q, want %q", got.BaseDir, original.BaseDir)
	}
	if got.Catalog.Type != "sqlite" {
		t.Errorf("Catalog.Type = %q, want %q", got.Catalog.Type, "sqlite")
	}
	if got.BlobStore.Type != "filesystem" {
		t.Errorf("BlobStore.Type = %q, want %q", got.BlobStore.Type, "filesystem")
	}
	if got.BlobStore.Root != "/photos/store" {
		t.Errorf("BlobStore.Root = %q, want %q", got.BlobStore.Root, "/photos/store")
	}
	if got.Metadata.ExiftoolPath != "/usr/bin/exiftool" {
		t.Errorf("Metadata.ExiftoolPath = %q, want %q", got.Metadata.ExiftoolPath, "/usr/bin/exiftool")
	}
	if got.Annotator.Provider != "http" || got.Annotator.Endpoint != original.Annotator.Endpoint {
		t.Errorf("Annotator = %+v, want %+v", got.Annotator, original.Annotator)
	}
	if got.Encryption.PublicKeyPath != original.Encryption.PublicKeyPath {
		t.Errorf("Encryption.PublicKeyPath = %q, want %q", got.Encryption.PublicKeyPath, original.Encryption.PublicKeyPath)
	}
	if got.Pipeline != original.Pipeline {
		t.Errorf("Pipeline = %+v, want %+v", got.Pipeline, original.Pipeline)
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/data/pictallion")

	if cfg.BaseDir != "/data/pictallion" {
		t.Errorf("BaseDir = %q, want %q", cfg.BaseDir, "/data/pictallion")
	}
	if cfg.LogDir != "/data/pictallion/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/pictallion/log")
	}
	if cfg.Catalog.Type != "sqlite" {
		t.Errorf("Catalog.Type = %q, want %q", cfg.Catalog.Type, "sqlite")
	}
	if cfg.Catalog.DataDir != "/data/pictallion/catalog" {
		t.Errorf("Catalog.DataDir = %q, want %q", cfg.Catalog.DataDir, "/data/pictallion/catalog")
	}
	if cfg.BlobStore.Root != "/data/pictallion/store" {
		t.Errorf("BlobStore.Root = %q, want %q", cfg.BlobStore.Root, "/data/pictallion/store")
	}
	if cfg.Encryption.PublicKeyPath != "/data/pictallion/keys/pictallion.pub" {
		t.Errorf("Encryption.PublicKeyPath = %q, want %q", cfg.Encryption.PublicKeyPath, "/data/pictallion/keys/pictallion.pub")
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "pictallion.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.BaseDir != dir {
			t.Errorf("BaseDir = %q, want %q", got.BaseDir, dir)
		}
	})

	t.Run("refuses to overwrite", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "pictallion.toml")
		if err := os.WriteFile(path, []byte("base_dir = \"x\"\n"), 0644); err != nil {
			t.Fatalf("failed to write existing config: %v", err)
		}

		if err := Init(path, NewConfig(dir)); err == nil {
			t.Error("Init() expected error for existing config")
		}
	})
}

func TestReadFromFile_Missing(t *testing.T) {
	if _, err := ReadFromFile(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("ReadFromFile() expected error for missing file")
	}
}
