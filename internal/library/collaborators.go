package library

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/metcalfcloud/pictallion/internal/model"
)

// Annotator is the external AI metadata service. It may fail or time out;
// it is at-least-once-invokable and side-effect-free on failure, so retries
// are always safe.
type Annotator interface {
	Annotate(ctx context.Context, content io.Reader, mimeType string) (*model.AIAnnotation, error)
}

// MetadataReader extracts capture metadata from a stored file. Best-effort:
// a nil result with nil error means nothing could be read.
type MetadataReader interface {
	Read(ctx context.Context, path string) (*model.ExifMetadata, error)
}

// Clock abstracts time retrieval so business logic is deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator abstracts unique ID generation so tests are deterministic.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }

// Logger provides structured logging for the service layer.
// The args follow slog conventions: alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NopLogger is a Logger that discards all output. Use in tests.
type NopLogger struct{}

func NewNopLogger() *NopLogger { return &NopLogger{} }

func (*NopLogger) Debug(string, ...any) {}
func (*NopLogger) Info(string, ...any)  {}
func (*NopLogger) Warn(string, ...any)  {}
func (*NopLogger) Error(string, ...any) {}
