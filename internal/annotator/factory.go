package annotator

import (
	"fmt"
	"time"

	"github.com/metcalfcloud/pictallion/internal/config"
	"github.com/metcalfcloud/pictallion/internal/library"
)

// NewAnnotatorFromConfig creates an Annotator based on the configured provider.
func NewAnnotatorFromConfig(cfg config.AnnotatorConfig) (library.Annotator, error) {
	switch cfg.Provider {
	case "http":
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("http annotator requires endpoint to be set")
		}
		return NewHTTPAnnotator(cfg.Endpoint, cfg.APIKey, time.Duration(cfg.TimeoutSeconds)*time.Second), nil
	case "none", "":
		return NewNoneAnnotator(), nil
	default:
		return nil, fmt.Errorf("unknown annotator provider: %s", cfg.Provider)
	}
}
