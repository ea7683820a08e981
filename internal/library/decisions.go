package library

import (
	"context"
	"fmt"

	"github.com/metcalfcloud/pictallion/internal/model"
)

// DecisionMode selects how a duplicate or burst group is resolved.
type DecisionMode string

const (
	// KeepSuggested keeps only the group's suggested instance.
	KeepSuggested DecisionMode = "keep_suggested"
	// KeepAll keeps every member virtually marked as a deliberate duplicate.
	KeepAll DecisionMode = "keep_all"
	// KeepSpecific keeps exactly the listed instances.
	KeepSpecific DecisionMode = "keep_specific"
	// KeepNone discards the whole group.
	KeepNone DecisionMode = "keep_none"
)

// GroupDecision resolves one scanned group. Members lists every instance ID
// in the group; Suggested is the scan's pick; Keep is consulted only for
// KeepSpecific.
type GroupDecision struct {
	Mode      DecisionMode
	Members   []string
	Suggested string
	Keep      []string
}

// ApplyGroupDecision records a group decision member by member. Each member
// write is atomic and decisions are last-writer-wins, so re-applying the
// same decision is harmless. Discarded members stop appearing in scans and
// cannot be promoted; survivors of a multi-keep decision are flagged as
// deliberate duplicates.
func (s *Service) ApplyGroupDecision(ctx context.Context, d GroupDecision) error {
	if len(d.Members) < 2 {
		return fmt.Errorf("a group decision needs at least 2 members, got %d", len(d.Members))
	}

	keep, err := resolveKeepSet(d)
	if err != nil {
		return err
	}

	// Validate every member before writing anything.
	for _, id := range d.Members {
		inst, err := s.catalog.GetInstance(ctx, id)
		if err != nil {
			return err
		}
		if inst == nil {
			return fmt.Errorf("unknown instance in group: %s", id)
		}
	}

	for _, id := range d.Members {
		kept := keep[id]
		keptDuplicate := kept && len(keep) > 1
		if err := s.catalog.SetDecision(ctx, id, !kept, keptDuplicate); err != nil {
			return err
		}
	}

	s.logger.Info("group decision applied", "mode", string(d.Mode),
		"members", len(d.Members), "kept", len(keep))
	return nil
}

func resolveKeepSet(d GroupDecision) (map[string]bool, error) {
	members := make(map[string]bool, len(d.Members))
	for _, id := range d.Members {
		members[id] = true
	}

	keep := make(map[string]bool)
	switch d.Mode {
	case KeepSuggested:
		if d.Suggested == "" {
			return nil, fmt.Errorf("keep_suggested requires a suggested instance")
		}
		if !members[d.Suggested] {
			return nil, fmt.Errorf("suggested instance %s is not a group member", d.Suggested)
		}
		keep[d.Suggested] = true
	case KeepAll:
		for _, id := range d.Members {
			keep[id] = true
		}
	case KeepSpecific:
		if len(d.Keep) == 0 {
			return nil, fmt.Errorf("keep_specific requires at least one instance to keep")
		}
		for _, id := range d.Keep {
			if !members[id] {
				return nil, fmt.Errorf("instance %s is not a group member", id)
			}
			keep[id] = true
		}
	case KeepNone:
		// Everything is discarded.
	default:
		return nil, fmt.Errorf("unknown decision mode: %s", d.Mode)
	}
	return keep, nil
}

// Review sets or clears the human-review acknowledgment on an instance.
// Finalization requires it unless forced.
func (s *Service) Review(ctx context.Context, instanceID string, reviewed bool) error {
	inst, err := s.mustInstance(ctx, instanceID)
	if err != nil {
		return err
	}
	if inst.Discarded {
		return fmt.Errorf("%w: %s", ErrInstanceDiscarded, instanceID)
	}
	return s.catalog.SetReviewed(ctx, instanceID, reviewed)
}

// Rate sets the 0-5 rating on an instance. Ratings feed the suggested-keep
// ordering in duplicate scans.
func (s *Service) Rate(ctx context.Context, instanceID string, rating int) error {
	if rating < 0 || rating > 5 {
		return fmt.Errorf("rating must be between 0 and 5, got %d", rating)
	}
	if _, err := s.mustInstance(ctx, instanceID); err != nil {
		return err
	}
	return s.catalog.SetRating(ctx, instanceID, rating)
}

func (s *Service) mustInstance(ctx context.Context, instanceID string) (*model.FileInstance, error) {
	inst, err := s.catalog.GetInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, fmt.Errorf("unknown instance: %s", instanceID)
	}
	return inst, nil
}
