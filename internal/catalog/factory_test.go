package catalog

import (
	"testing"

	"github.com/metcalfcloud/pictallion/internal/config"
)

func TestNewCatalogFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.CatalogConfig
		wantErr bool
	}{
		{
			name:    "memory catalog",
			cfg:     config.CatalogConfig{Type: "memory"},
			wantErr: false,
		},
		{
			name: "sqlite catalog",
			cfg: config.CatalogConfig{
				Type:    "sqlite",
				DataDir: t.TempDir(),
			},
			wantErr: false,
		},
		{
			name:    "sqlite catalog without data_dir",
			cfg:     config.CatalogConfig{Type: "sqlite"},
			wantErr: true,
		},
		{
			name:    "unknown catalog type",
			cfg:     config.CatalogConfig{Type: "unknown"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewCatalogFromConfig(tt.cfg)

			if (err != nil) != tt.wantErr {
				t.Errorf("NewCatalogFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if (got == nil) != tt.wantErr {
				t.Errorf("NewCatalogFromConfig() = %v, want nil: %v", got, tt.wantErr)
			}
			if got != nil {
				got.Close()
			}
		})
	}
}
