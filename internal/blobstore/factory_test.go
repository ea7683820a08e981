package blobstore

import (
	"context"
	"testing"

	"github.com/metcalfcloud/pictallion/internal/config"
)

func TestNewBlobStoreFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.BlobStoreConfig
		wantErr bool
	}{
		{
			name:    "memory store",
			cfg:     config.BlobStoreConfig{Type: "memory"},
			wantErr: false,
		},
		{
			name: "filesystem store",
			cfg: config.BlobStoreConfig{
				Type: "filesystem",
				Root: t.TempDir(),
			},
			wantErr: false,
		},
		{
			name:    "filesystem store without root",
			cfg:     config.BlobStoreConfig{Type: "filesystem"},
			wantErr: true,
		},
		{
			name:    "s3 store without bucket",
			cfg:     config.BlobStoreConfig{Type: "s3"},
			wantErr: true,
		},
		{
			name:    "unknown store type",
			cfg:     config.BlobStoreConfig{Type: "unknown"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewBlobStoreFromConfig(context.Background(), tt.cfg)

			if (err != nil) != tt.wantErr {
				t.Errorf("NewBlobStoreFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if (got == nil) != tt.wantErr {
				t.Errorf("NewBlobStoreFromConfig() = %v, want nil: %v", got, tt.wantErr)
			}
		})
	}
}
