package testutil

import (
	"context"
	"io"
	"sync"

	"github.com/metcalfcloud/pictallion/internal/model"
)

// StubAnnotator returns a canned annotation, or an error when Err is set.
// It counts calls so tests can assert invocation behavior.
type StubAnnotator struct {
	mu         sync.Mutex
	Annotation *model.AIAnnotation
	Err        error
	calls      int

	// Block, when non-nil, is closed by the test to release a pending
	// Annotate call. Used to exercise timeouts and cancellation.
	Block chan struct{}
}

// NewStubAnnotator creates a StubAnnotator with a minimal annotation.
func NewStubAnnotator() *StubAnnotator {
	sharpness := 0.8
	return &StubAnnotator{
		Annotation: &model.AIAnnotation{
			Tags:        []string{"photo"},
			Description: "a photo",
			Confidence:  map[string]float64{"photo": 0.9},
			Sharpness:   &sharpness,
		},
	}
}

func (a *StubAnnotator) Annotate(ctx context.Context, content io.Reader, mimeType string) (*model.AIAnnotation, error) {
	a.mu.Lock()
	a.calls++
	block := a.Block
	a.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Err != nil {
		return nil, a.Err
	}
	return a.Annotation, nil
}

// Calls returns how many times Annotate was invoked.
func (a *StubAnnotator) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}
