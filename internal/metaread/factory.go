package metaread

import (
	"fmt"

	"github.com/metcalfcloud/pictallion/internal/config"
	"github.com/metcalfcloud/pictallion/internal/library"
)

// NewReaderFromConfig creates a MetadataReader based on the metadata config type.
func NewReaderFromConfig(cfg config.MetadataConfig) (library.MetadataReader, error) {
	switch cfg.Type {
	case "exiftool":
		return NewExiftoolReader(cfg.ExiftoolPath)
	case "none", "":
		return NewNoneReader(), nil
	default:
		return nil, fmt.Errorf("unknown metadata reader type: %s", cfg.Type)
	}
}
