// Package app is the application layer between the CLI and the library
// service: it constructs all dependencies from config, holds the process
// lock, and exposes high-level operations over raw string arguments.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/metcalfcloud/pictallion/internal/annotator"
	"github.com/metcalfcloud/pictallion/internal/batch"
	"github.com/metcalfcloud/pictallion/internal/blobstore"
	"github.com/metcalfcloud/pictallion/internal/catalog"
	"github.com/metcalfcloud/pictallion/internal/config"
	"github.com/metcalfcloud/pictallion/internal/encryption"
	"github.com/metcalfcloud/pictallion/internal/grouping"
	"github.com/metcalfcloud/pictallion/internal/library"
	"github.com/metcalfcloud/pictallion/internal/metaread"
	"github.com/metcalfcloud/pictallion/internal/model"
	"github.com/metcalfcloud/pictallion/internal/promotion"
)

// App wires the pipeline together for one CLI invocation. The caller must
// call Close when done.
type App struct {
	cfg         *config.Config
	catalog     library.Catalog
	blobs       library.BlobStore
	meta        library.MetadataReader
	service     *library.Service
	promoter    *promotion.Promoter
	coordinator *batch.Coordinator
	lock        *flock.Flock
	logFile     *os.File
}

// NewApp creates a fully wired App from the given config. operation
// identifies the CLI command being run (e.g. "Ingest", "Dupes").
func NewApp(ctx context.Context, cfg *config.Config, operation string) (*App, error) {
	if cfg.BaseDir == "" {
		return nil, fmt.Errorf("base_dir not configured")
	}
	if err := os.MkdirAll(cfg.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("creating base directory: %w", err)
	}

	// One pictallion process per library at a time. The sqlite catalog has
	// its own locking but the blob store layout does not.
	lock := flock.New(filepath.Join(cfg.BaseDir, "pictallion.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring library lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("library at %s is in use by another pictallion process", cfg.BaseDir)
	}

	cat, err := catalog.NewCatalogFromConfig(cfg.Catalog)
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("creating catalog: %w", err)
	}
	// Bring the schema to the latest version, then verify. Migrate is a
	// no-op when the catalog is already current.
	if migrator, ok := cat.(interface{ Migrate() error }); ok {
		if err := migrator.Migrate(); err != nil {
			cat.Close()
			lock.Unlock()
			return nil, fmt.Errorf("migrating catalog: %w", err)
		}
	}
	if checker, ok := cat.(interface{ CheckMigrations() error }); ok {
		if err := checker.CheckMigrations(); err != nil {
			cat.Close()
			lock.Unlock()
			return nil, fmt.Errorf("catalog schema out of date: %w", err)
		}
	}

	blobs, err := blobstore.NewBlobStoreFromConfig(ctx, cfg.BlobStore)
	if err != nil {
		cat.Close()
		lock.Unlock()
		return nil, fmt.Errorf("creating blob store: %w", err)
	}
	if err := blobs.Validate(ctx); err != nil {
		cat.Close()
		lock.Unlock()
		return nil, fmt.Errorf("validating blob store: %w", err)
	}

	meta, err := metaread.NewReaderFromConfig(cfg.Metadata)
	if err != nil {
		cat.Close()
		lock.Unlock()
		return nil, fmt.Errorf("creating metadata reader: %w", err)
	}

	ann, err := annotator.NewAnnotatorFromConfig(cfg.Annotator)
	if err != nil {
		cat.Close()
		lock.Unlock()
		return nil, fmt.Errorf("creating annotator: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		cat.Close()
		lock.Unlock()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	opID := time.Now().UTC().Format("20060102T150405Z") + "-" + operation
	slogger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		cat.Close()
		lock.Unlock()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	clock := library.RealClock{}
	idgen := library.UUIDGenerator{}

	svc := library.NewService(cat, blobs, meta, enc, clock, idgen, logger)
	promoter := promotion.NewPromoter(cat, blobs, ann, clock, idgen, logger)
	promoter.SetAnnotateTimeout(annotateTimeout(cfg.Annotator))
	coordinator := batch.NewCoordinator(promoter, cfg.Pipeline.BatchWorkers, logger)

	return &App{
		cfg:         cfg,
		catalog:     cat,
		blobs:       blobs,
		meta:        meta,
		service:     svc,
		promoter:    promoter,
		coordinator: coordinator,
		lock:        lock,
		logFile:     logFile,
	}, nil
}

// annotateTimeout maps the configured annotator timeout onto the promotion
// engine. Zero or negative means the default; the same value bounds the HTTP
// client, so the two layers never disagree.
func annotateTimeout(cfg config.AnnotatorConfig) time.Duration {
	if cfg.TimeoutSeconds > 0 {
		return time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return promotion.DefaultAnnotateTimeout
}

// Ingest brings the files at the given paths into the library.
func (a *App) Ingest(ctx context.Context, paths []string) ([]*library.IngestResult, error) {
	results := make([]*library.IngestResult, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return results, fmt.Errorf("resolving path: %w", err)
		}
		result, err := a.service.Ingest(ctx, abs)
		if err != nil {
			return results, fmt.Errorf("ingesting %s: %w", p, err)
		}
		results = append(results, result)
	}
	return results, nil
}

// ScanDuplicates scans for duplicate groups. minSimilarity <= 0 uses the
// configured or default floor.
func (a *App) ScanDuplicates(ctx context.Context, minSimilarity int) ([]grouping.DuplicateGroup, error) {
	if minSimilarity <= 0 {
		minSimilarity = a.cfg.Pipeline.DuplicateFloor
	}
	return a.service.ScanDuplicates(ctx, minSimilarity)
}

// ScanBursts scans for burst groups with the configured window and floor
// unless overridden.
func (a *App) ScanBursts(ctx context.Context, windowSeconds, minSimilarity int) ([]grouping.BurstGroup, error) {
	if windowSeconds <= 0 {
		windowSeconds = a.cfg.Pipeline.BurstWindowSeconds
	}
	if minSimilarity <= 0 {
		minSimilarity = a.cfg.Pipeline.BurstFloor
	}
	return a.service.ScanBursts(ctx, time.Duration(windowSeconds)*time.Second, minSimilarity)
}

// Resolve applies a group decision.
func (a *App) Resolve(ctx context.Context, d library.GroupDecision) error {
	return a.service.ApplyGroupDecision(ctx, d)
}

// Review sets or clears the review acknowledgment on an instance.
func (a *App) Review(ctx context.Context, instanceID string, reviewed bool) error {
	return a.service.Review(ctx, instanceID, reviewed)
}

// Rate sets an instance's rating.
func (a *App) Rate(ctx context.Context, instanceID string, rating int) error {
	return a.service.Rate(ctx, instanceID, rating)
}

// Rehash backfills perceptual hashes for active instances missing one.
func (a *App) Rehash(ctx context.Context) (*library.RehashResult, error) {
	return a.service.Rehash(ctx)
}

// Annotate promotes one asset from raw to reviewed.
func (a *App) Annotate(ctx context.Context, assetID, actor string) (*model.TransitionRecord, error) {
	return a.promoter.Annotate(ctx, assetID, actor)
}

// Finalize promotes one asset from reviewed to finalized.
func (a *App) Finalize(ctx context.Context, assetID, actor string, force bool) (*model.TransitionRecord, error) {
	return a.promoter.Finalize(ctx, assetID, actor, force)
}

// Batch runs a promotion operation over many assets with the configured
// worker pool.
func (a *App) Batch(ctx context.Context, op batch.Operation, assetIDs []string, actor string, force bool) (*batch.Result, error) {
	return a.coordinator.Run(ctx, op, assetIDs, actor, force, nil)
}

// History returns an asset's transition log.
func (a *App) History(ctx context.Context, assetID string) ([]*model.TransitionRecord, error) {
	return a.service.History(ctx, assetID)
}

// Status returns an asset's current standing.
func (a *App) Status(ctx context.Context, assetID string) (*library.Status, error) {
	return a.service.Status(ctx, assetID)
}

// Backup snapshots the catalog into the blob store.
func (a *App) Backup(ctx context.Context) (*library.BackupResult, error) {
	return a.service.Backup(ctx)
}

// RawAssetIDs lists the IDs of assets whose current instance is at the raw
// tier, for batch annotation.
func (a *App) RawAssetIDs(ctx context.Context) ([]string, error) {
	return a.assetIDsAtTier(ctx, model.TierRaw)
}

// ReviewedAssetIDs lists the IDs of assets whose current instance is at the
// reviewed tier, for batch finalization.
func (a *App) ReviewedAssetIDs(ctx context.Context) ([]string, error) {
	return a.assetIDsAtTier(ctx, model.TierReviewed)
}

func (a *App) assetIDsAtTier(ctx context.Context, tier model.Tier) ([]string, error) {
	instances, err := a.catalog.ListActiveInstances(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, inst := range instances {
		if inst.Tier == tier {
			ids = append(ids, inst.AssetID)
		}
	}
	return ids, nil
}

// Close releases all resources held by the App.
func (a *App) Close() error {
	var firstErr error

	if err := a.catalog.Close(); err != nil {
		firstErr = fmt.Errorf("closing catalog: %w", err)
	}
	if closer, ok := a.meta.(io.Closer); ok {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing metadata reader: %w", err)
		}
	}
	if err := a.lock.Unlock(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("releasing library lock: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
