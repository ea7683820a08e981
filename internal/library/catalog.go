package library

import (
	"context"

	"github.com/metcalfcloud/pictallion/internal/model"
)

// Catalog provides an interface for metadata storage operations.
// All multi-row methods must be implemented with appropriate transaction
// handling; single-field setters must be single atomic writes.
type Catalog interface {
	// Asset operations

	// CreateAssetWithInstance atomically creates an asset and its first
	// (raw) file instance. Ingestion never creates one without the other.
	CreateAssetWithInstance(ctx context.Context, asset *model.Asset, instance *model.FileInstance) error

	// GetAsset returns an asset by id, or ErrAssetNotFound.
	GetAsset(ctx context.Context, id string) (*model.Asset, error)

	// Instance operations

	// FindInstanceByContentHash returns the active instance whose content
	// hash matches, or nil when none exists. Discarded instances and
	// deliberate keeps (kept_duplicate) do not count against uniqueness, so
	// their bytes can be ingested again. Backed by an index so
	// exact-duplicate detection stays O(log n).
	FindInstanceByContentHash(ctx context.Context, hash string) (*model.FileInstance, error)

	// CurrentInstance returns the asset's non-superseded instance at the
	// highest tier, or nil when the asset has no active instance.
	CurrentInstance(ctx context.Context, assetID string) (*model.FileInstance, error)

	// ListActiveInstances returns every non-superseded, non-discarded
	// instance. Grouping scans recompute from this set each time.
	ListActiveInstances(ctx context.Context) ([]*model.FileInstance, error)

	// GetInstance returns an instance by id, or nil when absent.
	GetInstance(ctx context.Context, id string) (*model.FileInstance, error)

	// SetDecision records a duplicate/burst group decision for one instance
	// as a single atomic write (last writer wins, never partial).
	SetDecision(ctx context.Context, instanceID string, discarded, keptDuplicate bool) error

	// SetReviewed sets the human-review acknowledgment flag.
	SetReviewed(ctx context.Context, instanceID string, reviewed bool) error

	// SetRating sets the 0-5 rating.
	SetRating(ctx context.Context, instanceID string, rating int) error

	// SetPerceptualHash backfills a perceptual hash onto an instance.
	SetPerceptualHash(ctx context.Context, instanceID string, hash uint64) error

	// Transition operations

	// ApplyTransition atomically records a successful transition: inserts
	// the record, inserts the next-tier instance, and marks the prior
	// instance superseded, all or nothing. Fails with
	// ErrTransitionConflict when the asset's current tier no longer matches
	// record.FromTier (a concurrent promotion won).
	ApplyTransition(ctx context.Context, record *model.TransitionRecord, next *model.FileInstance) error

	// RecordTransitionFailure appends a failed-attempt record. No instance
	// state changes.
	RecordTransitionFailure(ctx context.Context, record *model.TransitionRecord) error

	// FindSuccessfulTransition returns the successful record for
	// (asset, fromTier), or nil. Used for idempotence checks.
	FindSuccessfulTransition(ctx context.Context, assetID string, fromTier model.Tier) (*model.TransitionRecord, error)

	// ListTransitions returns all records for an asset, oldest first.
	ListTransitions(ctx context.Context, assetID string) ([]*model.TransitionRecord, error)

	// MaxTransitionSeq returns the highest record sequence number (0 when
	// the log is empty). Used as the catalog snapshot version.
	MaxTransitionSeq(ctx context.Context) (int64, error)

	// SnapshotTo writes a complete copy of the catalog to destPath.
	SnapshotTo(ctx context.Context, destPath string) error

	// Close closes the underlying store.
	Close() error
}
