package library

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/metcalfcloud/pictallion/internal/identity"
)

// RehashResult summarizes one backfill pass over hash-less instances.
type RehashResult struct {
	Updated int // instances that gained a perceptual hash
	Skipped int // instances whose content still does not decode
}

// Rehash recomputes perceptual hashes for active instances that have none,
// reading their content back from the blob store. Instances whose bytes
// still do not decode are left alone; they stay out of perceptual grouping
// until a later pass succeeds.
func (s *Service) Rehash(ctx context.Context) (*RehashResult, error) {
	instances, err := s.catalog.ListActiveInstances(ctx)
	if err != nil {
		return nil, err
	}

	result := &RehashResult{}
	for _, inst := range instances {
		if inst.PerceptualHash != nil {
			continue
		}

		var buf bytes.Buffer
		if err := s.blobs.GetContent(ctx, inst.ContentHash, &buf); err != nil {
			return result, fmt.Errorf("reading content for instance %s: %w", inst.ID, err)
		}

		phash, err := identity.Perceptual(buf.Bytes())
		if err != nil {
			if errors.Is(err, ErrUndecodable) {
				result.Skipped++
				continue
			}
			return result, fmt.Errorf("rehashing instance %s: %w", inst.ID, err)
		}

		if err := s.catalog.SetPerceptualHash(ctx, inst.ID, phash); err != nil {
			return result, err
		}
		result.Updated++
	}

	s.logger.Info("rehash complete", "updated", result.Updated, "skipped", result.Skipped)
	return result, nil
}
