package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for pictallion.
type Config struct {
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Catalog    CatalogConfig    `toml:"catalog"`
	BlobStore  BlobStoreConfig  `toml:"blobstore"`
	Metadata   MetadataConfig   `toml:"metadata"`
	Annotator  AnnotatorConfig  `toml:"annotator"`
	Encryption EncryptionConfig `toml:"encryption"`
	Pipeline   PipelineConfig   `toml:"pipeline"`
}

// CatalogConfig represents configuration for the metadata catalog.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type CatalogConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// BlobStoreConfig represents configuration for the content store backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type BlobStoreConfig struct {
	Type string `toml:"type"` // "memory", "s3", or "filesystem"

	// S3-specific fields (only used when Type == "s3")
	Bucket string `toml:"s3_bucket,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	Root string `toml:"root,omitempty"`
}

// MetadataConfig selects the capture metadata reader.
type MetadataConfig struct {
	Type string `toml:"type"` // "exiftool" or "none"

	// Path to the exiftool binary; empty means search PATH.
	ExiftoolPath string `toml:"exiftool_path,omitempty"`
}

// AnnotatorConfig selects the AI annotation provider.
type AnnotatorConfig struct {
	Provider string `toml:"provider"` // "http" or "none"

	// HTTP-specific fields (only used when Provider == "http")
	Endpoint       string `toml:"endpoint,omitempty"`
	APIKey         string `toml:"api_key,omitempty"`
	TimeoutSeconds int    `toml:"timeout_seconds,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used to encrypt catalog
// snapshots before upload.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" or "none"
	PublicKeyPath  string `toml:"public_key_path,omitempty"`
	PrivateKeyPath string `toml:"private_key_path,omitempty"`
}

// PipelineConfig holds the grouping and batch tuning knobs. Zero values fall
// back to the package defaults.
type PipelineConfig struct {
	DuplicateFloor     int `toml:"duplicate_floor"`      // minimum similarity for duplicate groups
	BurstFloor         int `toml:"burst_floor"`          // minimum similarity for burst groups
	BurstWindowSeconds int `toml:"burst_window_seconds"` // max capture-time gap within a burst
	BatchWorkers       int `toml:"batch_workers"`        // promotion worker pool size
}

// NewConfig creates a new Config with the provided base directory and
// sensible defaults.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Catalog: CatalogConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "catalog"),
		},
		BlobStore: BlobStoreConfig{
			Type: "filesystem",
			Root: filepath.Join(baseDir, "store"),
		},
		Metadata:  MetadataConfig{Type: "exiftool"},
		Annotator: AnnotatorConfig{Provider: "none"},
		Encryption: EncryptionConfig{
			Type:           "none",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "pictallion.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "pictallion.key"),
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
