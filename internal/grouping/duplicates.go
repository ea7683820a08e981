// Package grouping partitions file instances into duplicate and burst groups
// by perceptual similarity. Groups are transient query results recomputed
// from the current instance set on every scan; nothing here mutates state.
package grouping

import (
	"sort"

	"github.com/metcalfcloud/pictallion/internal/model"
)

// GroupType classifies how tight a duplicate group is.
type GroupType string

const (
	GroupIdentical   GroupType = "identical"
	GroupVerySimilar GroupType = "very_similar"
	GroupSimilar     GroupType = "similar"
)

// DefaultDuplicateFloor is the default minimum pairwise similarity for an
// edge in the duplicate graph.
const DefaultDuplicateFloor = 85

// DuplicateGroup is a cluster of instances judged visually identical or
// near-identical regardless of capture time.
type DuplicateGroup struct {
	Members           []*model.FileInstance
	AverageSimilarity int
	GroupType         GroupType
	SuggestedKeep     string // Instance ID
}

// Duplicates partitions instances into duplicate groups: connected
// components of the graph whose edges are pairs with similarity >=
// minSimilarity. Singletons are not returned. Lowering minSimilarity only
// merges or grows groups, never splits them.
func Duplicates(instances []*model.FileInstance, minSimilarity int) []DuplicateGroup {
	comps := components(instances, func(a, b *model.FileInstance) bool {
		sim, ok := pairSimilarity(a, b)
		return ok && sim >= float64(minSimilarity)
	})

	groups := make([]DuplicateGroup, 0, len(comps))
	for _, members := range comps {
		minSim, allContentEqual := minPairSimilarity(members)
		groupType := GroupSimilar
		switch {
		case allContentEqual && minSim == 100:
			groupType = GroupIdentical
		case minSim >= 95:
			groupType = GroupVerySimilar
		}

		groups = append(groups, DuplicateGroup{
			Members:           members,
			AverageSimilarity: averageSimilarity(members),
			GroupType:         groupType,
			SuggestedKeep:     suggestKeep(members),
		})
	}
	return groups
}

// suggestKeep picks the member a user most likely wants to retain:
// highest rating, then largest byte size (resolution proxy), then earliest
// creation (first capture is canonical), then lowest ID for a total order.
func suggestKeep(members []*model.FileInstance) string {
	best := members[0]
	for _, m := range members[1:] {
		if keepLess(m, best) {
			best = m
		}
	}
	return best.ID
}

func keepLess(a, b *model.FileInstance) bool {
	if a.Rating != b.Rating {
		return a.Rating > b.Rating
	}
	if a.FileSize != b.FileSize {
		return a.FileSize > b.FileSize
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// SortMembersByKeepOrder orders members best-keep first, matching the
// suggestKeep tie-break. Used for stable presentation.
func SortMembersByKeepOrder(members []*model.FileInstance) {
	sort.Slice(members, func(i, j int) bool { return keepLess(members[i], members[j]) })
}
