package library_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/metcalfcloud/pictallion/internal/identity"
	"github.com/metcalfcloud/pictallion/internal/model"
	"github.com/metcalfcloud/pictallion/internal/testutil"
)

func TestRehash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// i1 was stored without a perceptual hash but its bytes decode fine.
	img := testutil.PNGGradient(t, 3)
	imgHash := testutil.SHA256Hex(img)
	now := f.clock.Now()
	err := f.catalog.CreateAssetWithInstance(ctx,
		&model.Asset{ID: "asset-i1", OriginalFilename: "i1.png", CreatedAt: now},
		&model.FileInstance{
			ID: "i1", AssetID: "asset-i1", Tier: model.TierRaw,
			FilePath: imgHash, FileSize: int64(len(img)), MimeType: "image/png",
			ContentHash: imgHash, CreatedAt: now,
		})
	if err != nil {
		t.Fatalf("seeding i1: %v", err)
	}
	if err := f.blobs.PutContent(ctx, imgHash, bytes.NewReader(img), int64(len(img))); err != nil {
		t.Fatalf("storing content: %v", err)
	}

	// Plain text stays undecodable no matter how often it is rehashed.
	if _, err := f.service.Ingest(ctx, writeFile(t, "notes.txt", []byte("not an image"))); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	result, err := f.service.Rehash(ctx)
	if err != nil {
		t.Fatalf("Rehash: %v", err)
	}
	if result.Updated != 1 || result.Skipped != 1 {
		t.Fatalf("result = %+v, want 1 updated and 1 skipped", result)
	}

	want, err := identity.Perceptual(img)
	if err != nil {
		t.Fatalf("Perceptual: %v", err)
	}
	inst, err := f.catalog.GetInstance(ctx, "i1")
	if err != nil {
		t.Fatalf("GetInstance: %v", err)
	}
	if inst.PerceptualHash == nil || *inst.PerceptualHash != want {
		t.Fatalf("PerceptualHash = %v, want %d", inst.PerceptualHash, want)
	}

	t.Run("second pass is a no-op", func(t *testing.T) {
		again, err := f.service.Rehash(ctx)
		if err != nil {
			t.Fatalf("Rehash: %v", err)
		}
		if again.Updated != 0 || again.Skipped != 1 {
			t.Errorf("result = %+v, want nothing updated", again)
		}
	})

	t.Run("backfilled instance joins scans", func(t *testing.T) {
		f.seedInstance(t, "i3", "hash-c", want)
		groups, err := f.service.ScanDuplicates(ctx, 0)
		if err != nil {
			t.Fatalf("ScanDuplicates: %v", err)
		}
		if len(groups) != 1 || len(groups[0].Members) != 2 {
			t.Fatalf("groups = %+v, want one pair including the rehashed instance", groups)
		}
	})
}
