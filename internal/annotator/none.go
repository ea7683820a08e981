package annotator

import (
	"context"
	"io"

	"github.com/metcalfcloud/pictallion/internal/library"
	"github.com/metcalfcloud/pictallion/internal/model"
)

// NoneAnnotator produces an empty annotation. Review promotion then runs
// without AI insight, which keeps the pipeline usable when no annotation
// service is configured.
type NoneAnnotator struct{}

func NewNoneAnnotator() *NoneAnnotator { return &NoneAnnotator{} }

func (*NoneAnnotator) Annotate(ctx context.Context, content io.Reader, mimeType string) (*model.AIAnnotation, error) {
	// Drain the content so the reader contract matches real providers.
	if _, err := io.Copy(io.Discard, content); err != nil {
		return nil, err
	}
	return &model.AIAnnotation{}, nil
}

var _ library.Annotator = (*NoneAnnotator)(nil)
