// Package annotator provides AI annotation providers for the review stage.
package annotator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/metcalfcloud/pictallion/internal/library"
	"github.com/metcalfcloud/pictallion/internal/model"
)

const defaultHTTPTimeout = 30 * time.Second

// HTTPAnnotator calls an external annotation service over HTTP. The service
// receives the raw image bytes and responds with a JSON annotation.
type HTTPAnnotator struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTPAnnotator creates an annotator client for the given endpoint.
// timeout bounds a single request; zero means the default.
func NewHTTPAnnotator(endpoint, apiKey string, timeout time.Duration) *HTTPAnnotator {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &HTTPAnnotator{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}
}

// Annotate posts the content to the annotation service and decodes the
// returned annotation. The call is side-effect-free on failure, so callers
// may retry freely.
func (a *HTTPAnnotator) Annotate(ctx context.Context, content io.Reader, mimeType string) (*model.AIAnnotation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, content)
	if err != nil {
		return nil, fmt.Errorf("building annotation request: %w", err)
	}
	req.Header.Set("Content-Type", mimeType)
	req.Header.Set("Accept", "application/json")
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling annotation service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("annotation service returned %d: %s", resp.StatusCode, string(body))
	}

	var annotation model.AIAnnotation
	if err := json.NewDecoder(resp.Body).Decode(&annotation); err != nil {
		return nil, fmt.Errorf("decoding annotation response: %w", err)
	}
	return &annotation, nil
}

var _ library.Annotator = (*HTTPAnnotator)(nil)
