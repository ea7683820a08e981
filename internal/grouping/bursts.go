package grouping

import (
	"fmt"
	"time"

	"github.com/metcalfcloud/pictallion/internal/model"
)

// Burst grouping tolerates more visual variation than duplicate grouping
// (pose and exposure drift across a burst) but additionally bounds members
// to a short capture-time window.
const (
	DefaultBurstFloor  = 70
	DefaultBurstWindow = 10 * time.Second
)

// BurstGroup is a cluster of photos taken in rapid succession. A photo may
// appear in a BurstGroup and, independently, in a DuplicateGroup; the two
// classifications are orthogonal.
type BurstGroup struct {
	Members           []*model.FileInstance
	AverageSimilarity int
	SuggestedBest     string        // Instance ID
	TimeSpan          time.Duration // Max minus min capture time
	GroupReason       string
}

// Bursts partitions instances into burst groups: duplicate-style similarity
// edges further restricted to pairs whose capture times fall within window.
// Singletons are not returned.
func Bursts(instances []*model.FileInstance, window time.Duration, minSimilarity int) []BurstGroup {
	comps := components(instances, func(a, b *model.FileInstance) bool {
		sim, ok := pairSimilarity(a, b)
		if !ok || sim < float64(minSimilarity) {
			return false
		}
		diff := captureTime(a).Sub(captureTime(b))
		if diff < 0 {
			diff = -diff
		}
		return diff <= window
	})

	groups := make([]BurstGroup, 0, len(comps))
	for _, members := range comps {
		span := timeSpan(members)
		groups = append(groups, BurstGroup{
			Members:           members,
			AverageSimilarity: averageSimilarity(members),
			SuggestedBest:     suggestBest(members),
			TimeSpan:          span,
			GroupReason:       burstReason(len(members), span),
		})
	}
	return groups
}

// captureTime is the EXIF capture time when available, else the ingestion
// timestamp.
func captureTime(inst *model.FileInstance) time.Time {
	if inst.CaptureTime != nil {
		return *inst.CaptureTime
	}
	return inst.CreatedAt
}

func timeSpan(members []*model.FileInstance) time.Duration {
	earliest, latest := captureTime(members[0]), captureTime(members[0])
	for _, m := range members[1:] {
		t := captureTime(m)
		if t.Before(earliest) {
			earliest = t
		}
		if t.After(latest) {
			latest = t
		}
	}
	return latest.Sub(earliest)
}

// suggestBest prefers the annotator's sharpness score when present, then
// rating, then earliest capture, then lowest ID.
func suggestBest(members []*model.FileInstance) string {
	best := members[0]
	for _, m := range members[1:] {
		if bestLess(m, best) {
			best = m
		}
	}
	return best.ID
}

func bestLess(a, b *model.FileInstance) bool {
	as, bs := sharpness(a), sharpness(b)
	if as != bs {
		return as > bs
	}
	if a.Rating != b.Rating {
		return a.Rating > b.Rating
	}
	at, bt := captureTime(a), captureTime(b)
	if !at.Equal(bt) {
		return at.Before(bt)
	}
	return a.ID < b.ID
}

func sharpness(inst *model.FileInstance) float64 {
	if inst.Metadata.AI != nil && inst.Metadata.AI.Sharpness != nil {
		return *inst.Metadata.AI.Sharpness
	}
	return -1
}

func burstReason(count int, span time.Duration) string {
	switch {
	case span < 5*time.Second:
		return "Rapid burst sequence (under 5 seconds)"
	case span < 10*time.Second:
		return "Quick burst sequence (under 10 seconds)"
	default:
		return fmt.Sprintf("%d photos within %.1fs", count, span.Seconds())
	}
}
