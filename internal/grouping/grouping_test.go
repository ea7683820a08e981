package grouping_test

import (
	"testing"
	"time"

	"github.com/metcalfcloud/pictallion/internal/grouping"
	"github.com/metcalfcloud/pictallion/internal/model"
)

var baseTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// inst builds a file instance whose perceptual hash has the given number of
// low bits set, so Hamming distances between test instances are exact.
func inst(id string, lowBits int, opts ...func(*model.FileInstance)) *model.FileInstance {
	var hash uint64
	for i := 0; i < lowBits; i++ {
		hash |= 1 << i
	}
	fi := &model.FileInstance{
		ID:             id,
		AssetID:        "asset-" + id,
		Tier:           model.TierRaw,
		ContentHash:    "content-" + id,
		PerceptualHash: &hash,
		FileSize:       1000,
		CreatedAt:      baseTime,
	}
	for _, o := range opts {
		o(fi)
	}
	return fi
}

func withContentHash(h string) func(*model.FileInstance) {
	return func(fi *model.FileInstance) { fi.ContentHash = h }
}

func withCapture(t time.Time) func(*model.FileInstance) {
	return func(fi *model.FileInstance) { fi.CaptureTime = &t }
}

func groupIDs(members []*model.FileInstance) map[string]bool {
	ids := make(map[string]bool, len(members))
	for _, m := range members {
		ids[m.ID] = true
	}
	return ids
}

func TestDuplicates(t *testing.T) {
	t.Run("identical content hashes form an identical group", func(t *testing.T) {
		a := inst("a", 0, withContentHash("same"))
		b := inst("b", 0, withContentHash("same"))

		groups := grouping.Duplicates([]*model.FileInstance{a, b}, grouping.DefaultDuplicateFloor)
		if len(groups) != 1 {
			t.Fatalf("Duplicates() groups = %d, want 1", len(groups))
		}
		g := groups[0]
		if g.GroupType != grouping.GroupIdentical {
			t.Errorf("GroupType = %q, want %q", g.GroupType, grouping.GroupIdentical)
		}
		if g.AverageSimilarity != 100 {
			t.Errorf("AverageSimilarity = %d, want 100", g.AverageSimilarity)
		}
	})

	t.Run("equal perceptual hash with distinct content is very_similar not identical", func(t *testing.T) {
		a := inst("a", 4)
		b := inst("b", 4)

		groups := grouping.Duplicates([]*model.FileInstance{a, b}, grouping.DefaultDuplicateFloor)
		if len(groups) != 1 {
			t.Fatalf("Duplicates() groups = %d, want 1", len(groups))
		}
		if groups[0].GroupType != grouping.GroupVerySimilar {
			t.Errorf("GroupType = %q, want %q", groups[0].GroupType, grouping.GroupVerySimilar)
		}
	})

	t.Run("pairs below the floor stay singletons and are not returned", func(t *testing.T) {
		a := inst("a", 0)
		b := inst("b", 32) // Hamming distance 32 => 50% similarity

		groups := grouping.Duplicates([]*model.FileInstance{a, b}, grouping.DefaultDuplicateFloor)
		if len(groups) != 0 {
			t.Fatalf("Duplicates() groups = %d, want 0", len(groups))
		}
	})

	t.Run("instances without perceptual hashes are excluded from similarity grouping", func(t *testing.T) {
		a := inst("a", 0)
		b := inst("b", 0)
		b.PerceptualHash = nil

		groups := grouping.Duplicates([]*model.FileInstance{a, b}, grouping.DefaultDuplicateFloor)
		if len(groups) != 0 {
			t.Fatalf("Duplicates() groups = %d, want 0", len(groups))
		}
	})

	t.Run("groups are disjoint within a scan", func(t *testing.T) {
		instances := []*model.FileInstance{
			inst("a", 0), inst("b", 2), // distance 2
			inst("c", 40), inst("d", 42), // distance 2, far from a/b
		}

		groups := grouping.Duplicates(instances, grouping.DefaultDuplicateFloor)
		if len(groups) != 2 {
			t.Fatalf("Duplicates() groups = %d, want 2", len(groups))
		}
		seen := make(map[string]bool)
		for _, g := range groups {
			for id := range groupIDs(g.Members) {
				if seen[id] {
					t.Fatalf("instance %s appears in more than one group", id)
				}
				seen[id] = true
			}
		}
	})

	t.Run("lowering the floor only merges or grows groups", func(t *testing.T) {
		// a-b distance 4 (93.75%), b-c distance 12 (81.25%).
		instances := []*model.FileInstance{inst("a", 0), inst("b", 4), inst("c", 16)}

		tight := grouping.Duplicates(instances, 90)
		loose := grouping.Duplicates(instances, 80)

		if len(tight) != 1 || len(tight[0].Members) != 2 {
			t.Fatalf("tight scan: want one group of 2, got %+v", tight)
		}
		if len(loose) != 1 || len(loose[0].Members) != 3 {
			t.Fatalf("loose scan: want one group of 3, got %+v", loose)
		}

		// Every tight group must be a subset of some loose group.
		for _, tg := range tight {
			contained := false
			for _, lg := range loose {
				ids := groupIDs(lg.Members)
				all := true
				for _, m := range tg.Members {
					if !ids[m.ID] {
						all = false
						break
					}
				}
				if all {
					contained = true
					break
				}
			}
			if !contained {
				t.Fatalf("group %v not contained in any lower-threshold group", groupIDs(tg.Members))
			}
		}
	})

	t.Run("suggested keep follows rating, size, age, id", func(t *testing.T) {
		rated := inst("rated", 0)
		rated.Rating = 5
		big := inst("big", 1)
		big.FileSize = 9000
		early := inst("early", 2)
		early.CreatedAt = baseTime.Add(-time.Hour)
		plain := inst("aaa", 3)

		cases := []struct {
			name    string
			members []*model.FileInstance
			want    string
		}{
			{"rating wins", []*model.FileInstance{plain, big, rated}, "rated"},
			{"size breaks rating tie", []*model.FileInstance{plain, big}, "big"},
			{"earlier creation breaks size tie", []*model.FileInstance{plain, early}, "early"},
			{"lowest id is the final tie-break", []*model.FileInstance{inst("bbb", 0), inst("aaa", 1)}, "aaa"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				groups := grouping.Duplicates(tc.members, grouping.DefaultDuplicateFloor)
				if len(groups) != 1 {
					t.Fatalf("want 1 group, got %d", len(groups))
				}
				if groups[0].SuggestedKeep != tc.want {
					t.Errorf("SuggestedKeep = %q, want %q", groups[0].SuggestedKeep, tc.want)
				}
			})
		}
	})

	t.Run("selection is reproducible across repeated scans", func(t *testing.T) {
		instances := []*model.FileInstance{inst("c", 0), inst("a", 1), inst("b", 2)}
		first := grouping.Duplicates(instances, grouping.DefaultDuplicateFloor)
		for i := 0; i < 10; i++ {
			again := grouping.Duplicates(instances, grouping.DefaultDuplicateFloor)
			if again[0].SuggestedKeep != first[0].SuggestedKeep {
				t.Fatalf("SuggestedKeep changed between scans")
			}
		}
	})
}

func TestBursts(t *testing.T) {
	t.Run("five photos inside two seconds form one group", func(t *testing.T) {
		var instances []*model.FileInstance
		for i := 0; i < 5; i++ {
			// Hamming distances up to 8 => similarities 87.5%..100%.
			fi := inst(string(rune('a'+i)), i*2, withCapture(baseTime.Add(time.Duration(i)*500*time.Millisecond)))
			instances = append(instances, fi)
		}

		groups := grouping.Bursts(instances, grouping.DefaultBurstWindow, grouping.DefaultBurstFloor)
		if len(groups) != 1 {
			t.Fatalf("Bursts() groups = %d, want 1", len(groups))
		}
		g := groups[0]
		if len(g.Members) != 5 {
			t.Errorf("members = %d, want 5", len(g.Members))
		}
		if g.TimeSpan != 2*time.Second {
			t.Errorf("TimeSpan = %v, want 2s", g.TimeSpan)
		}
		if g.GroupReason != "Rapid burst sequence (under 5 seconds)" {
			t.Errorf("GroupReason = %q", g.GroupReason)
		}
	})

	t.Run("similar photos outside the window do not group", func(t *testing.T) {
		a := inst("a", 0, withCapture(baseTime))
		b := inst("b", 2, withCapture(baseTime.Add(time.Minute)))

		groups := grouping.Bursts([]*model.FileInstance{a, b}, grouping.DefaultBurstWindow, grouping.DefaultBurstFloor)
		if len(groups) != 0 {
			t.Fatalf("Bursts() groups = %d, want 0", len(groups))
		}
	})

	t.Run("falls back to ingestion time when capture time is absent", func(t *testing.T) {
		a := inst("a", 0)
		b := inst("b", 2)
		a.CreatedAt = baseTime
		b.CreatedAt = baseTime.Add(3 * time.Second)

		groups := grouping.Bursts([]*model.FileInstance{a, b}, grouping.DefaultBurstWindow, grouping.DefaultBurstFloor)
		if len(groups) != 1 {
			t.Fatalf("Bursts() groups = %d, want 1", len(groups))
		}
		if groups[0].TimeSpan != 3*time.Second {
			t.Errorf("TimeSpan = %v, want 3s", groups[0].TimeSpan)
		}
	})

	t.Run("burst floor tolerates variation the duplicate floor rejects", func(t *testing.T) {
		// Distance 12 => 81.25%: below the duplicate floor, above the burst floor.
		a := inst("a", 0, withCapture(baseTime))
		b := inst("b", 12, withCapture(baseTime.Add(time.Second)))
		instances := []*model.FileInstance{a, b}

		if got := grouping.Duplicates(instances, grouping.DefaultDuplicateFloor); len(got) != 0 {
			t.Fatalf("Duplicates() groups = %d, want 0", len(got))
		}
		if got := grouping.Bursts(instances, grouping.DefaultBurstWindow, grouping.DefaultBurstFloor); len(got) != 1 {
			t.Fatalf("Bursts() groups = %d, want 1", len(got))
		}
	})

	t.Run("suggested best prefers sharpness then rating then earliest capture", func(t *testing.T) {
		sharp := 90.0
		dull := 40.0

		a := inst("a", 0, withCapture(baseTime))
		a.Metadata.AI = &model.AIAnnotation{Sharpness: &dull}
		b := inst("b", 2, withCapture(baseTime.Add(time.Second)))
		b.Metadata.AI = &model.AIAnnotation{Sharpness: &sharp}

		groups := grouping.Bursts([]*model.FileInstance{a, b}, grouping.DefaultBurstWindow, grouping.DefaultBurstFloor)
		if len(groups) != 1 {
			t.Fatalf("Bursts() groups = %d, want 1", len(groups))
		}
		if groups[0].SuggestedBest != "b" {
			t.Errorf("SuggestedBest = %q, want b (sharper)", groups[0].SuggestedBest)
		}

		// Without sharpness, rating decides; without either, earliest capture.
		a.Metadata.AI = nil
		b.Metadata.AI = nil
		a.Rating = 4
		groups = grouping.Bursts([]*model.FileInstance{a, b}, grouping.DefaultBurstWindow, grouping.DefaultBurstFloor)
		if groups[0].SuggestedBest != "a" {
			t.Errorf("SuggestedBest = %q, want a (rated)", groups[0].SuggestedBest)
		}

		a.Rating = 0
		groups = grouping.Bursts([]*model.FileInstance{a, b}, grouping.DefaultBurstWindow, grouping.DefaultBurstFloor)
		if groups[0].SuggestedBest != "a" {
			t.Errorf("SuggestedBest = %q, want a (earlier)", groups[0].SuggestedBest)
		}
	})

	t.Run("burst and duplicate membership are independent", func(t *testing.T) {
		// Near-identical pair far apart in time: duplicate group, no burst.
		a := inst("a", 0, withCapture(baseTime))
		b := inst("b", 2, withCapture(baseTime.Add(time.Hour)))
		instances := []*model.FileInstance{a, b}

		if got := grouping.Duplicates(instances, grouping.DefaultDuplicateFloor); len(got) != 1 {
			t.Fatalf("Duplicates() groups = %d, want 1", len(got))
		}
		if got := grouping.Bursts(instances, grouping.DefaultBurstWindow, grouping.DefaultBurstFloor); len(got) != 0 {
			t.Fatalf("Bursts() groups = %d, want 0", len(got))
		}
	})
}
