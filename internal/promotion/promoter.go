// Package promotion implements the tier transition engine: raw instances are
// annotated into reviewed instances, and reviewed instances are finalized.
// Every attempt, successful or not, is recorded in the append-only transition
// log; successful transitions are idempotent per (asset, from-tier).
package promotion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/metcalfcloud/pictallion/internal/library"
	"github.com/metcalfcloud/pictallion/internal/model"
)

// DefaultAnnotateTimeout bounds a single annotator call.
const DefaultAnnotateTimeout = 30 * time.Second

// Promoter moves assets through the tier state machine. Attempts on the same
// asset are serialized; attempts on different assets run concurrently.
type Promoter struct {
	catalog   library.Catalog
	blobs     library.BlobStore
	annotator library.Annotator
	clock     library.Clock
	idgen     library.IDGenerator
	logger    library.Logger

	locks           *assetLocks
	annotateTimeout time.Duration
}

// NewPromoter creates a promotion engine with the given collaborators.
func NewPromoter(catalog library.Catalog, blobs library.BlobStore, annotator library.Annotator,
	clock library.Clock, idgen library.IDGenerator, logger library.Logger) *Promoter {
	return &Promoter{
		catalog:         catalog,
		blobs:           blobs,
		annotator:       annotator,
		clock:           clock,
		idgen:           idgen,
		logger:          logger,
		locks:           newAssetLocks(),
		annotateTimeout: DefaultAnnotateTimeout,
	}
}

// SetAnnotateTimeout overrides the per-call annotator timeout.
func (p *Promoter) SetAnnotateTimeout(d time.Duration) {
	p.annotateTimeout = d
}

// Annotate promotes an asset from raw to reviewed: it runs the external
// annotator over the stored content and writes a reviewed instance carrying
// the annotation. A repeat call after success returns the original record
// without invoking the annotator again.
func (p *Promoter) Annotate(ctx context.Context, assetID, actor string) (*model.TransitionRecord, error) {
	release := p.locks.acquire(assetID)
	defer release()

	if prior, err := p.priorSuccess(ctx, assetID, model.TierRaw); prior != nil || err != nil {
		return prior, err
	}

	inst, err := p.currentAt(ctx, assetID, model.TierRaw)
	if err != nil {
		return nil, err
	}

	if inst.Discarded {
		return nil, p.fail(ctx, assetID, model.TierRaw, model.TierReviewed, actor,
			fmt.Errorf("%w: instance %s", library.ErrInstanceDiscarded, inst.ID))
	}
	if inst.ContentHash == "" || inst.PerceptualHash == nil {
		return nil, p.fail(ctx, assetID, model.TierRaw, model.TierReviewed, actor,
			fmt.Errorf("%w: instance %s is missing hashes", library.ErrUndecodable, inst.ID))
	}

	annotation, err := p.runAnnotator(ctx, inst)
	if err != nil {
		return nil, p.fail(ctx, assetID, model.TierRaw, model.TierReviewed, actor,
			fmt.Errorf("%w: %v", library.ErrAnnotationFailed, err))
	}

	now := p.clock.Now()
	next := p.nextInstance(inst, model.TierReviewed, now)
	next.Metadata.AI = annotation

	record := &model.TransitionRecord{
		ID:        p.idgen.New(),
		AssetID:   assetID,
		FromTier:  model.TierRaw,
		ToTier:    model.TierReviewed,
		Actor:     actor,
		Outcome:   model.OutcomeSuccess,
		CreatedAt: now,
	}

	if err := p.apply(ctx, record, next, model.TierRaw); err != nil {
		return nil, err
	}

	p.logger.Info("asset annotated", "asset_id", assetID, "instance_id", next.ID, "actor", actor)
	return record, nil
}

// Finalize promotes an asset from reviewed to finalized. The instance must
// carry the human-review acknowledgment unless force is set. Finalization
// freezes the instance metadata as a sidecar object in the blob store.
func (p *Promoter) Finalize(ctx context.Context, assetID, actor string, force bool) (*model.TransitionRecord, error) {
	release := p.locks.acquire(assetID)
	defer release()

	if prior, err := p.priorSuccess(ctx, assetID, model.TierReviewed); prior != nil || err != nil {
		return prior, err
	}

	inst, err := p.currentAt(ctx, assetID, model.TierReviewed)
	if err != nil {
		return nil, err
	}

	if inst.Discarded {
		return nil, p.fail(ctx, assetID, model.TierReviewed, model.TierFinalized, actor,
			fmt.Errorf("%w: instance %s", library.ErrInstanceDiscarded, inst.ID))
	}
	if !inst.IsReviewed && !force {
		return nil, p.fail(ctx, assetID, model.TierReviewed, model.TierFinalized, actor,
			fmt.Errorf("instance %s has not been reviewed", inst.ID))
	}

	if err := p.freezeMetadata(ctx, assetID, inst); err != nil {
		return nil, p.fail(ctx, assetID, model.TierReviewed, model.TierFinalized, actor,
			fmt.Errorf("freezing metadata: %w", err))
	}

	now := p.clock.Now()
	next := p.nextInstance(inst, model.TierFinalized, now)

	record := &model.TransitionRecord{
		ID:        p.idgen.New(),
		AssetID:   assetID,
		FromTier:  model.TierReviewed,
		ToTier:    model.TierFinalized,
		Actor:     actor,
		Outcome:   model.OutcomeSuccess,
		CreatedAt: now,
	}

	if err := p.apply(ctx, record, next, model.TierReviewed); err != nil {
		return nil, err
	}

	p.logger.Info("asset finalized", "asset_id", assetID, "instance_id", next.ID, "actor", actor)
	return record, nil
}

// priorSuccess returns the earlier successful record for (asset, fromTier)
// when one exists. Transitions are exactly-once per pair.
func (p *Promoter) priorSuccess(ctx context.Context, assetID string, fromTier model.Tier) (*model.TransitionRecord, error) {
	prior, err := p.catalog.FindSuccessfulTransition(ctx, assetID, fromTier)
	if err != nil {
		return nil, err
	}
	if prior != nil {
		p.logger.Debug("transition already recorded", "asset_id", assetID, "from_tier", fromTier)
		return prior, nil
	}
	return nil, nil
}

// currentAt loads the asset's current instance and verifies it is at want.
func (p *Promoter) currentAt(ctx context.Context, assetID string, want model.Tier) (*model.FileInstance, error) {
	inst, err := p.catalog.CurrentInstance(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, fmt.Errorf("%w: %s", library.ErrAssetNotFound, assetID)
	}
	if inst.Tier != want {
		return nil, fmt.Errorf("%w: asset %s is at tier %s, expected %s",
			library.ErrTransitionConflict, assetID, inst.Tier, want)
	}
	return inst, nil
}

// nextInstance derives the next-tier instance from the current one. Content
// identity, capture metadata, and curation state all carry forward.
func (p *Promoter) nextInstance(inst *model.FileInstance, tier model.Tier, now time.Time) *model.FileInstance {
	return &model.FileInstance{
		ID:             p.idgen.New(),
		AssetID:        inst.AssetID,
		Tier:           tier,
		FilePath:       inst.FilePath,
		FileSize:       inst.FileSize,
		MimeType:       inst.MimeType,
		ContentHash:    inst.ContentHash,
		PerceptualHash: inst.PerceptualHash,
		IsReviewed:     inst.IsReviewed,
		Rating:         inst.Rating,
		KeptDuplicate:  inst.KeptDuplicate,
		Metadata:       inst.Metadata,
		CaptureTime:    inst.CaptureTime,
		CreatedAt:      now,
	}
}

// runAnnotator streams the stored content through the annotator under a
// bounded deadline.
func (p *Promoter) runAnnotator(ctx context.Context, inst *model.FileInstance) (*model.AIAnnotation, error) {
	var buf bytes.Buffer
	if err := p.blobs.GetContent(ctx, inst.FilePath, &buf); err != nil {
		return nil, fmt.Errorf("loading content: %w", err)
	}

	annotateCtx, cancel := context.WithTimeout(ctx, p.annotateTimeout)
	defer cancel()

	annotation, err := p.annotator.Annotate(annotateCtx, &buf, inst.MimeType)
	if err != nil {
		return nil, err
	}
	if annotation == nil {
		return nil, errors.New("annotator returned no result")
	}
	return annotation, nil
}

// freezeMetadata writes the instance metadata as a JSON sidecar. The key is
// derived from the asset so retries after a conflict overwrite nothing new.
func (p *Promoter) freezeMetadata(ctx context.Context, assetID string, inst *model.FileInstance) error {
	data, err := json.Marshal(inst.Metadata)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	key := assetID + ".finalized.json"
	return p.blobs.PutContent(ctx, key, bytes.NewReader(data), int64(len(data)))
}

// apply commits the transition. On a conflict it re-reads the log: if a
// concurrent attempt already succeeded for the same pair, that record is
// returned as the idempotent result instead of an error.
func (p *Promoter) apply(ctx context.Context, record *model.TransitionRecord, next *model.FileInstance, fromTier model.Tier) error {
	err := p.catalog.ApplyTransition(ctx, record, next)
	if err == nil {
		return nil
	}
	if errors.Is(err, library.ErrTransitionConflict) {
		prior, lookupErr := p.catalog.FindSuccessfulTransition(ctx, record.AssetID, fromTier)
		if lookupErr == nil && prior != nil {
			*record = *prior
			return nil
		}
	}
	return err
}

// fail appends a failure record and returns cause. The record write is
// best-effort: a logging failure never masks the original error.
func (p *Promoter) fail(ctx context.Context, assetID string, fromTier, toTier model.Tier, actor string, cause error) error {
	record := &model.TransitionRecord{
		ID:        p.idgen.New(),
		AssetID:   assetID,
		FromTier:  fromTier,
		ToTier:    toTier,
		Actor:     actor,
		Outcome:   model.OutcomeFailure,
		Reason:    cause.Error(),
		CreatedAt: p.clock.Now(),
	}
	if err := p.catalog.RecordTransitionFailure(ctx, record); err != nil {
		p.logger.Error("failed to record transition failure", "asset_id", assetID, "error", err)
	}
	p.logger.Warn("transition failed", "asset_id", assetID, "from_tier", fromTier, "reason", cause.Error())
	return cause
}
