package grouping

import (
	"math"
	"math/bits"
	"sort"

	"github.com/metcalfcloud/pictallion/internal/identity"
	"github.com/metcalfcloud/pictallion/internal/model"
)

// pairSimilarity returns the similarity percentage between two instances and
// whether the pair is comparable at all. Identical content hashes are a 100%
// match regardless of perceptual hashes (exact duplicates of undecodable
// content still group); otherwise both sides need a perceptual hash.
func pairSimilarity(a, b *model.FileInstance) (float64, bool) {
	if a.ContentHash != "" && a.ContentHash == b.ContentHash {
		return 100, true
	}
	if a.PerceptualHash == nil || b.PerceptualHash == nil {
		return 0, false
	}
	dist := bits.OnesCount64(*a.PerceptualHash ^ *b.PerceptualHash)
	return 100 * (1 - float64(dist)/float64(identity.PerceptualBits)), true
}

// unionFind is a plain disjoint-set over instance slice indexes.
// Connected-component extraction keeps groups disjoint by construction and
// makes threshold lowering monotonic: fewer edges can only split nothing
// that a superset of edges joined.
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(i int) int {
	for uf.parent[i] != i {
		uf.parent[i] = uf.parent[uf.parent[i]]
		i = uf.parent[i]
	}
	return i
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra != rb {
		uf.parent[rb] = ra
	}
}

// components partitions instances into connected components where an edge
// exists when accept returns true for the pair. Singletons are dropped.
// Component order and member order follow instance ID for determinism.
func components(instances []*model.FileInstance, accept func(a, b *model.FileInstance) bool) [][]*model.FileInstance {
	sorted := make([]*model.FileInstance, len(instances))
	copy(sorted, instances)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	uf := newUnionFind(len(sorted))
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if accept(sorted[i], sorted[j]) {
				uf.union(i, j)
			}
		}
	}

	byRoot := make(map[int][]*model.FileInstance)
	var roots []int
	for i, inst := range sorted {
		root := uf.find(i)
		if _, seen := byRoot[root]; !seen {
			roots = append(roots, root)
		}
		byRoot[root] = append(byRoot[root], inst)
	}
	sort.Ints(roots)

	var out [][]*model.FileInstance
	for _, root := range roots {
		if members := byRoot[root]; len(members) > 1 {
			out = append(out, members)
		}
	}
	return out
}

// averageSimilarity is the mean of all pairwise similarities in a component,
// rounded to the nearest integer percentage. Incomparable pairs contribute
// zero similarity (they are only in the component transitively).
func averageSimilarity(members []*model.FileInstance) int {
	var total float64
	var pairs int
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			sim, _ := pairSimilarity(members[i], members[j])
			total += sim
			pairs++
		}
	}
	if pairs == 0 {
		return 0
	}
	return int(math.Round(total / float64(pairs)))
}

// minPairSimilarity returns the minimum pairwise similarity in a component
// and whether every pair's content hash matches.
func minPairSimilarity(members []*model.FileInstance) (minSim float64, allContentEqual bool) {
	minSim = 100
	allContentEqual = true
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			sim, _ := pairSimilarity(members[i], members[j])
			if sim < minSim {
				minSim = sim
			}
			if members[i].ContentHash != members[j].ContentHash {
				allContentEqual = false
			}
		}
	}
	return minSim, allContentEqual
}
