// Package library defines the domain interfaces and the service that ties
// ingestion, grouping scans, curation decisions, and catalog backups
// together.
package library

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/metcalfcloud/pictallion/internal/grouping"
	"github.com/metcalfcloud/pictallion/internal/identity"
	"github.com/metcalfcloud/pictallion/internal/model"
)

// Service orchestrates the photo library. It owns no business rules of the
// promotion engine; it covers everything up to and around promotion:
// ingestion, duplicate and burst scans, group decisions, review state, and
// catalog backups.
type Service struct {
	catalog   Catalog
	blobs     BlobStore
	meta      MetadataReader
	encryptor Encryptor // nil when snapshots are stored in plaintext
	clock     Clock
	idgen     IDGenerator
	logger    Logger
}

// NewService creates a library service. encryptor may be nil.
func NewService(catalog Catalog, blobs BlobStore, meta MetadataReader, encryptor Encryptor,
	clock Clock, idgen IDGenerator, logger Logger) *Service {
	return &Service{
		catalog:   catalog,
		blobs:     blobs,
		meta:      meta,
		encryptor: encryptor,
		clock:     clock,
		idgen:     idgen,
		logger:    logger,
	}
}

// IngestResult describes the outcome of ingesting one file.
type IngestResult struct {
	Asset    *model.Asset
	Instance *model.FileInstance

	// SkippedDuplicate is set when the exact content already exists; Asset
	// and Instance then refer to the existing copy.
	SkippedDuplicate bool

	// Undecodable is set when the file could not be decoded as an image.
	// The instance is stored anyway but carries no perceptual hash and
	// cannot be promoted.
	Undecodable bool
}

// Ingest brings the file at path into the library as a raw-tier asset.
// Byte-identical content is detected up front and skipped instead of stored
// twice.
func (s *Service) Ingest(ctx context.Context, path string) (*IngestResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("refusing to ingest empty file: %s", path)
	}

	id, err := identity.Compute(data)
	undecodable := false
	if err != nil {
		if !errors.Is(err, ErrUndecodable) {
			return nil, err
		}
		undecodable = true
	}

	// Exact duplicate: same bytes already in the library.
	existing, err := s.catalog.FindInstanceByContentHash(ctx, id.ContentHash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		asset, err := s.catalog.GetAsset(ctx, existing.AssetID)
		if err != nil {
			return nil, err
		}
		s.logger.Info("skipping exact duplicate", "path", path, "existing_asset", asset.ID)
		return &IngestResult{Asset: asset, Instance: existing, SkippedDuplicate: true}, nil
	}

	exif, err := s.meta.Read(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("reading capture metadata: %w", err)
	}

	now := s.clock.Now()
	asset := &model.Asset{
		ID:               s.idgen.New(),
		OriginalFilename: filepath.Base(path),
		CreatedAt:        now,
	}
	inst := &model.FileInstance{
		ID:             s.idgen.New(),
		AssetID:        asset.ID,
		Tier:           model.TierRaw,
		FilePath:       id.ContentHash,
		FileSize:       int64(len(data)),
		MimeType:       http.DetectContentType(data),
		ContentHash:    id.ContentHash,
		PerceptualHash: id.PerceptualHash,
		Metadata:       model.Metadata{Exif: exif},
		CreatedAt:      now,
	}
	if exif != nil && exif.CaptureTime != nil {
		inst.CaptureTime = exif.CaptureTime
	}

	// Store the content first: an orphan blob is harmless, a catalog row
	// pointing at nothing is not.
	if err := s.blobs.PutContent(ctx, id.ContentHash, bytes.NewReader(data), int64(len(data))); err != nil {
		return nil, fmt.Errorf("storing content: %w", err)
	}
	if err := s.catalog.CreateAssetWithInstance(ctx, asset, inst); err != nil {
		return nil, err
	}

	s.logger.Info("ingested asset", "asset_id", asset.ID, "filename", asset.OriginalFilename,
		"size", inst.FileSize, "undecodable", undecodable)
	return &IngestResult{Asset: asset, Instance: inst, Undecodable: undecodable}, nil
}

// ScanDuplicates recomputes duplicate groups over all active instances.
// minSimilarity <= 0 uses the default floor.
func (s *Service) ScanDuplicates(ctx context.Context, minSimilarity int) ([]grouping.DuplicateGroup, error) {
	instances, err := s.catalog.ListActiveInstances(ctx)
	if err != nil {
		return nil, err
	}
	if minSimilarity <= 0 {
		minSimilarity = grouping.DefaultDuplicateFloor
	}
	groups := grouping.Duplicates(instances, minSimilarity)
	s.logger.Info("duplicate scan complete", "instances", len(instances),
		"groups", len(groups), "min_similarity", minSimilarity)
	return groups, nil
}

// ScanBursts recomputes burst groups over all active instances.
// Non-positive arguments use the defaults.
func (s *Service) ScanBursts(ctx context.Context, window time.Duration, minSimilarity int) ([]grouping.BurstGroup, error) {
	instances, err := s.catalog.ListActiveInstances(ctx)
	if err != nil {
		return nil, err
	}
	if window <= 0 {
		window = grouping.DefaultBurstWindow
	}
	if minSimilarity <= 0 {
		minSimilarity = grouping.DefaultBurstFloor
	}
	groups := grouping.Bursts(instances, window, minSimilarity)
	s.logger.Info("burst scan complete", "instances", len(instances),
		"groups", len(groups), "window", window, "min_similarity", minSimilarity)
	return groups, nil
}
