package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lumenforge/hdriatlas/biz/dal/db"
	"github.com/lumenforge/hdriatlas/biz/dal/model"
	"github.com/lumenforge/hdriatlas/pkg/config"
	"github.com/lumenforge/hdriatlas/pkg/storage/local"

	"gorm.io/gorm"
)

func testConfig() *config.Config {
	return &config.Config{
		Catalog: config.CatalogConfig{
			HashSize:       8,
			SampleSize:     32,
			PreviewMaxSize: 64,
		},
		Upload: config.UploadConfig{
			MaxSize: 32 * 1024 * 1024,
			AllowedTypes: []string{
				"image/png",
				"image/jpeg",
				"application/octet-stream",
			},
		},
	}
}

func setupService(t *testing.T) (*Service, *gorm.DB, *local.Storage) {
	t.Helper()
	dbConn := db.SetupTestDB(t)
	t.Cleanup(func() { db.CleanupTestDB(t, dbConn) })

	store, err := local.New(t.TempDir())
	if err != nil {
		t.Fatalf("create local storage: %v", err)
	}
	svc, err := NewService(dbConn, store, testConfig())
	if err != nil {
		t.Fatalf("create service: %v", err)
	}
	return svc, dbConn, store
}

// gradientPNG renders a deterministic test image. The seed shifts the
// gradient so different seeds produce visually different images.
func gradientPNG(t *testing.T, w, h, seed int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8((x*255/w + y*64/h + seed*37) % 256)
			img.Set(x, y, color.RGBA{R: v, G: 255 - v, B: uint8((x + y + seed) % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

func TestIngestAssetCompletesRecord(t *testing.T) {
	svc, _, store := setupService(t)
	ctx := context.Background()

	asset, err := svc.IngestAsset(ctx, IngestInput{FileName: "sunset beach.png", Data: gradientPNG(t, 128, 64, 1)})
	if err != nil {
		t.Fatalf("IngestAsset failed: %v", err)
	}
	if asset.IsPending() {
		t.Fatalf("ingested asset still pending: %+v", asset)
	}
	if asset.Name != "sunset beach" {
		t.Fatalf("expected name derived from file name, got %q", asset.Name)
	}
	if len(asset.Hash) != 16 {
		t.Fatalf("expected 16 hex digit fingerprint, got %q", asset.Hash)
	}
	if _, err := time.Parse(time.RFC3339, asset.UploadDate); err != nil {
		t.Fatalf("upload date is not RFC 3339: %q", asset.UploadDate)
	}
	if !strings.HasSuffix(asset.PreviewPath, "/preview.jpg") {
		t.Fatalf("unexpected preview path: %s", asset.PreviewPath)
	}

	for _, key := range []string{asset.FilePath, asset.PreviewPath} {
		exists, err := store.ObjectExists(ctx, key)
		if err != nil {
			t.Fatalf("ObjectExists(%s): %v", key, err)
		}
		if !exists {
			t.Fatalf("materialized object missing: %s", key)
		}
	}
}

func TestIngestAssetRejectsDuplicate(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	data := gradientPNG(t, 128, 64, 2)

	first, err := svc.IngestAsset(ctx, IngestInput{FileName: "original.png", Data: data})
	if err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}

	_, err = svc.IngestAsset(ctx, IngestInput{FileName: "copy.png", Data: data})
	var dup *DuplicateError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateError, got %v", err)
	}
	if dup.Existing.ID != first.ID {
		t.Fatalf("duplicate should reference asset %d, got %d", first.ID, dup.Existing.ID)
	}

	assets, err := svc.ListAssets(ctx, ListParams{})
	if err != nil {
		t.Fatalf("ListAssets failed: %v", err)
	}
	if len(assets) != 1 {
		t.Fatalf("expected 1 asset after duplicate rejection, got %d", len(assets))
	}
}

func TestIngestAssetResumesPending(t *testing.T) {
	svc, dbConn, _ := setupService(t)
	ctx := context.Background()
	data := gradientPNG(t, 128, 64, 3)

	// Stage a phase-one leftover, as if a previous ingest crashed before
	// materializing any files.
	img, err := svc.decoder.DecodeBytes(data)
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	fp, err := svc.engine.Compute(img)
	if err != nil {
		t.Fatalf("compute fingerprint: %v", err)
	}
	pending := &model.Asset{Name: "crashed", UploadDate: "2026-08-01T00:00:00Z", Hash: fp.String()}
	if err := svc.logic.assetDAO.Create(ctx, dbConn, pending); err != nil {
		t.Fatalf("create pending record: %v", err)
	}

	asset, err := svc.IngestAsset(ctx, IngestInput{FileName: "retry.png", Data: data})
	if err != nil {
		t.Fatalf("resume ingest failed: %v", err)
	}
	if asset.ID != pending.ID {
		t.Fatalf("resume should complete record %d, got new record %d", pending.ID, asset.ID)
	}
	if asset.IsPending() {
		t.Fatalf("resumed record still pending")
	}
}

func TestIngestAssetRejectsUndecodable(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	// Sniffs as application/octet-stream (allowed), but is not an image.
	garbage := append([]byte{0x00, 0x01, 0x02, 0x03}, bytes.Repeat([]byte{0xAB}, 600)...)
	if _, err := svc.IngestAsset(ctx, IngestInput{FileName: "junk.bin", Data: garbage}); err == nil {
		t.Fatalf("expected decode failure for non-image payload")
	}

	// Text payloads fail the MIME whitelist before decoding.
	if _, err := svc.IngestAsset(ctx, IngestInput{FileName: "notes.txt", Data: []byte("plain text")}); err == nil {
		t.Fatalf("expected MIME rejection for text payload")
	}

	// Empty payloads fail the size check before anything else.
	if _, err := svc.IngestAsset(ctx, IngestInput{FileName: "void.png", Data: nil}); err == nil {
		t.Fatalf("expected size rejection for empty payload")
	}

	assets, err := svc.ListAssets(ctx, ListParams{})
	if err != nil {
		t.Fatalf("ListAssets failed: %v", err)
	}
	if len(assets) != 0 {
		t.Fatalf("rejected payloads must not create records, got %d", len(assets))
	}
}

func TestIngestBatchContinuesPastFailures(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	data := gradientPNG(t, 128, 64, 4)

	results := svc.IngestBatch(ctx, []IngestInput{
		{FileName: "one.png", Data: data},
		{FileName: "dup.png", Data: data},
		{FileName: "two.png", Data: gradientPNG(t, 128, 64, 5)},
	})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Err != nil || results[0].Asset == nil {
		t.Fatalf("first item should succeed: %+v", results[0])
	}
	var dup *DuplicateError
	if !errors.As(results[1].Err, &dup) || results[1].Error == "" {
		t.Fatalf("second item should report duplicate: %+v", results[1])
	}
	if results[2].Err != nil || results[2].Asset == nil {
		t.Fatalf("third item should succeed despite earlier failure: %+v", results[2])
	}
}

func TestIngestFileFromDisk(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "harbor_dawn.png")
	if err := os.WriteFile(path, gradientPNG(t, 128, 64, 11), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	asset, err := svc.IngestFile(ctx, path)
	if err != nil {
		t.Fatalf("IngestFile failed: %v", err)
	}
	if asset.Name != "harbor_dawn" {
		t.Fatalf("expected name derived from file, got %q", asset.Name)
	}

	if _, err := svc.IngestFile(ctx, filepath.Join(dir, "missing.png")); err == nil {
		t.Fatalf("expected error for missing source file")
	}
}

func TestCompareAssets(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	a, err := svc.IngestAsset(ctx, IngestInput{FileName: "a.png", Data: gradientPNG(t, 128, 64, 6)})
	if err != nil {
		t.Fatalf("ingest a: %v", err)
	}
	b, err := svc.IngestAsset(ctx, IngestInput{FileName: "b.png", Data: gradientPNG(t, 128, 64, 9)})
	if err != nil {
		t.Fatalf("ingest b: %v", err)
	}

	self, err := svc.CompareAssets(ctx, a.ID, a.ID)
	if err != nil {
		t.Fatalf("CompareAssets self: %v", err)
	}
	if self != 0 {
		t.Fatalf("self distance should be 0, got %d", self)
	}

	dist, err := svc.CompareAssets(ctx, a.ID, b.ID)
	if err != nil {
		t.Fatalf("CompareAssets failed: %v", err)
	}
	if dist <= 0 || dist > 64 {
		t.Fatalf("distance out of range for distinct images: %d", dist)
	}

	if _, err := svc.CompareAssets(ctx, a.ID, 9999); !errors.Is(err, ErrAssetNotFound) {
		t.Fatalf("expected ErrAssetNotFound, got %v", err)
	}
}

func TestRenameAndDeleteAsset(t *testing.T) {
	svc, _, store := setupService(t)
	ctx := context.Background()

	asset, err := svc.IngestAsset(ctx, IngestInput{FileName: "warehouse.png", Data: gradientPNG(t, 128, 64, 7)})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	renamed, err := svc.RenameAsset(ctx, asset.ID, "old warehouse")
	if err != nil {
		t.Fatalf("RenameAsset failed: %v", err)
	}
	if renamed.Name != "old warehouse" {
		t.Fatalf("expected renamed asset, got %q", renamed.Name)
	}
	if renamed.FilePath != asset.FilePath {
		t.Fatalf("rename must not move the materialized file")
	}

	if _, err := svc.RenameAsset(ctx, 9999, "ghost"); !errors.Is(err, ErrAssetNotFound) {
		t.Fatalf("expected ErrAssetNotFound, got %v", err)
	}

	if err := svc.DeleteAsset(ctx, asset.ID); err != nil {
		t.Fatalf("DeleteAsset failed: %v", err)
	}
	if _, err := svc.GetAsset(ctx, asset.ID); !errors.Is(err, ErrAssetNotFound) {
		t.Fatalf("expected ErrAssetNotFound after delete, got %v", err)
	}
	exists, err := store.ObjectExists(ctx, asset.FilePath)
	if err != nil {
		t.Fatalf("ObjectExists: %v", err)
	}
	if exists {
		t.Fatalf("materialized file should be removed with the asset")
	}
}

func TestTagWorkflow(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	asset, err := svc.IngestAsset(ctx, IngestInput{Name: "studio booth", FileName: "booth.png", Data: gradientPNG(t, 128, 64, 8)})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	tag, err := svc.AddTag(ctx, "Studio Light")
	if err != nil {
		t.Fatalf("AddTag failed: %v", err)
	}
	if tag.Column != "tag_Studio_Light" || tag.Name != "Studio_Light" {
		t.Fatalf("unexpected tag info: %+v", tag)
	}

	if err := svc.SetAssetTags(ctx, asset.ID, map[string]bool{"Studio Light": true}); err != nil {
		t.Fatalf("SetAssetTags failed: %v", err)
	}

	// Assigning a brand-new tag creates its column on demand.
	if err := svc.SetAssetTags(ctx, asset.ID, map[string]bool{"Brand New": true}); err != nil {
		t.Fatalf("SetAssetTags with new tag failed: %v", err)
	}
	got, err := svc.GetAsset(ctx, asset.ID)
	if err != nil {
		t.Fatalf("GetAsset failed: %v", err)
	}
	if !got.Tags["tag_Brand_New"] {
		t.Fatalf("on-demand tag not set on introducing asset: %+v", got.Tags)
	}

	matches, err := svc.ListAssets(ctx, ListParams{Tags: map[string]bool{"Studio Light": true}})
	if err != nil {
		t.Fatalf("ListAssets failed: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != asset.ID {
		t.Fatalf("tag filter did not match the tagged asset: %+v", matches)
	}

	if err := svc.RemoveTag(ctx, "Studio Light"); err != nil {
		t.Fatalf("RemoveTag failed: %v", err)
	}
	if err := svc.RemoveTag(ctx, "Studio Light"); !errors.Is(err, ErrTagNotFound) {
		t.Fatalf("expected ErrTagNotFound on second removal, got %v", err)
	}

	tags, err := svc.ListTags(ctx)
	if err != nil {
		t.Fatalf("ListTags failed: %v", err)
	}
	if len(tags) != 1 || tags[0].Column != "tag_Brand_New" {
		t.Fatalf("expected only tag_Brand_New to remain, got %+v", tags)
	}
}

func TestSetAssetTagsUnknownAsset(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	err := svc.SetAssetTags(ctx, 9999, map[string]bool{"Outdoor": true})
	if !errors.Is(err, ErrAssetNotFound) {
		t.Fatalf("expected ErrAssetNotFound, got %v", err)
	}
}

func TestPurgePendingBefore(t *testing.T) {
	svc, dbConn, _ := setupService(t)
	ctx := context.Background()

	stale := &model.Asset{Name: "stale", UploadDate: "2026-07-01T00:00:00Z", Hash: "aaaaaaaaaaaaaaaa"}
	fresh := &model.Asset{Name: "fresh", UploadDate: "2026-08-22T00:00:00Z", Hash: "bbbbbbbbbbbbbbbb"}
	for _, rec := range []*model.Asset{stale, fresh} {
		if err := svc.logic.assetDAO.Create(ctx, dbConn, rec); err != nil {
			t.Fatalf("create pending: %v", err)
		}
	}

	cutoff, _ := time.Parse(time.RFC3339, "2026-08-01T00:00:00Z")
	purged, err := svc.PurgePendingBefore(ctx, cutoff)
	if err != nil {
		t.Fatalf("PurgePendingBefore failed: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged record, got %d", purged)
	}

	if _, err := svc.logic.assetDAO.GetByID(ctx, dbConn, stale.ID); err == nil {
		t.Fatalf("stale pending record should be gone")
	}
	if _, err := svc.logic.assetDAO.GetByID(ctx, dbConn, fresh.ID); err != nil {
		t.Fatalf("fresh pending record should survive: %v", err)
	}
}
