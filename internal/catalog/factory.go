package catalog

import (
	"fmt"
	"path/filepath"

	"github.com/metcalfcloud/pictallion/internal/config"
	"github.com/metcalfcloud/pictallion/internal/library"
)

// NewCatalogFromConfig creates a Catalog implementation based on the catalog config type.
func NewCatalogFromConfig(cfg config.CatalogConfig) (library.Catalog, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite catalog")
		}
		return NewSQLiteCatalog(filepath.Join(cfg.DataDir, "catalog.db"))
	case "memory":
		return NewSQLiteCatalog(":memory:")
	default:
		return nil, fmt.Errorf("unknown catalog type: %s", cfg.Type)
	}
}
