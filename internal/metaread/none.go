package metaread

import (
	"context"

	"github.com/metcalfcloud/pictallion/internal/library"
	"github.com/metcalfcloud/pictallion/internal/model"
)

// NoneReader never reads metadata. Capture times then fall back to
// ingestion time.
type NoneReader struct{}

func NewNoneReader() *NoneReader { return &NoneReader{} }

func (*NoneReader) Read(ctx context.Context, path string) (*model.ExifMetadata, error) {
	return nil, nil
}

var _ library.MetadataReader = (*NoneReader)(nil)
