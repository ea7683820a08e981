package library

import (
	"context"

	"github.com/metcalfcloud/pictallion/internal/model"
)

// History returns the full transition log for an asset, oldest first.
// Failed attempts are included; the log is append-only so this is the audit
// trail for how the asset reached its current tier.
func (s *Service) History(ctx context.Context, assetID string) ([]*model.TransitionRecord, error) {
	if _, err := s.catalog.GetAsset(ctx, assetID); err != nil {
		return nil, err
	}
	return s.catalog.ListTransitions(ctx, assetID)
}

// Status summarizes where an asset currently stands.
type Status struct {
	Asset    *model.Asset
	Instance *model.FileInstance // current non-superseded instance, highest tier
	Records  []*model.TransitionRecord
}

// Status returns the asset, its current instance, and its transition log.
func (s *Service) Status(ctx context.Context, assetID string) (*Status, error) {
	asset, err := s.catalog.GetAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	inst, err := s.catalog.CurrentInstance(ctx, assetID)
	if err != nil {
		return nil, err
	}
	records, err := s.catalog.ListTransitions(ctx, assetID)
	if err != nil {
		return nil, err
	}
	return &Status{Asset: asset, Instance: inst, Records: records}, nil
}
