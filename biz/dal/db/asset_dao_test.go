package db

import (
	"context"
	"errors"
	"testing"

	"github.com/lumenforge/hdriatlas/biz/dal/model"
	"gorm.io/gorm"
)

func TestAssetCreateAndFindByHash(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)
	ctx := context.Background()
	dao := NewAssetDAO()

	created := CreateTestAsset(t, db, "sunset_beach")

	found, err := dao.FindByHash(ctx, db, created.Hash)
	if err != nil {
		t.Fatalf("FindByHash failed: %v", err)
	}
	if found.ID != created.ID || found.Name != "sunset_beach" {
		t.Fatalf("unexpected asset returned: %+v", found)
	}
	if found.IsPending() {
		t.Fatalf("complete asset reported as pending")
	}

	if _, err := dao.FindByHash(ctx, db, "no-such-hash"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestAssetDuplicateHashRejected(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)
	ctx := context.Background()
	dao := NewAssetDAO()

	first := CreateTestAsset(t, db, "forest_glade")
	dup := &model.Asset{
		Name:       "forest_glade_copy",
		UploadDate: "2026-08-02T12:00:00Z",
		Hash:       first.Hash,
	}
	if err := dao.Create(ctx, db, dup); err == nil {
		t.Fatalf("expected unique constraint violation for duplicate hash")
	}

	var count int64
	if err := db.Model(&model.Asset{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 row after duplicate insert, got %d", count)
	}
}

func TestAssetPendingLifecycle(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)
	ctx := context.Background()
	dao := NewAssetDAO()

	pending := CreateTestPendingAsset(t, db, "city_night", "hash-city_night")

	got, err := dao.GetByID(ctx, db, pending.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !got.IsPending() {
		t.Fatalf("phase-one record should be pending: %+v", got)
	}

	// Pending records never show up in listings.
	results, err := dao.Query(ctx, db, QueryParams{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("pending record leaked into listing: %+v", results)
	}

	err = dao.CompleteIngest(ctx, db, pending.ID, "assets/00001_city_night/city_night.hdr", "assets/00001_city_night/preview.jpg")
	if err != nil {
		t.Fatalf("CompleteIngest failed: %v", err)
	}

	got, err = dao.GetByID(ctx, db, pending.ID)
	if err != nil {
		t.Fatalf("GetByID after complete failed: %v", err)
	}
	if got.IsPending() {
		t.Fatalf("completed record still pending: %+v", got)
	}
	if got.PreviewPath != "assets/00001_city_night/preview.jpg" {
		t.Fatalf("unexpected preview path: %s", got.PreviewPath)
	}

	if err := dao.CompleteIngest(ctx, db, 9999, "x", "y"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound for unknown id, got %v", err)
	}
}

func TestAssetListPendingBefore(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)
	ctx := context.Background()
	dao := NewAssetDAO()

	stale := &model.Asset{Name: "stale", UploadDate: "2026-07-01T00:00:00Z", Hash: "hash-stale"}
	fresh := &model.Asset{Name: "fresh", UploadDate: "2026-08-20T00:00:00Z", Hash: "hash-fresh"}
	if err := dao.Create(ctx, db, stale); err != nil {
		t.Fatalf("create stale: %v", err)
	}
	if err := dao.Create(ctx, db, fresh); err != nil {
		t.Fatalf("create fresh: %v", err)
	}
	CreateTestAsset(t, db, "complete_one")

	pending, err := dao.ListPendingBefore(ctx, db, "2026-08-01T00:00:00Z")
	if err != nil {
		t.Fatalf("ListPendingBefore failed: %v", err)
	}
	if len(pending) != 1 || pending[0].Name != "stale" {
		t.Fatalf("expected only the stale pending record, got %+v", pending)
	}
}

func TestAssetRenameAndDelete(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)
	ctx := context.Background()
	dao := NewAssetDAO()

	asset := CreateTestAsset(t, db, "old_name")

	if err := dao.Rename(ctx, db, asset.ID, "new_name"); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	got, err := dao.GetByID(ctx, db, asset.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Name != "new_name" {
		t.Fatalf("expected new_name, got %s", got.Name)
	}
	if got.Hash != asset.Hash || got.FilePath != asset.FilePath {
		t.Fatalf("rename must not touch other columns: %+v", got)
	}

	if err := dao.Delete(ctx, db, asset.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := dao.GetByID(ctx, db, asset.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound after delete, got %v", err)
	}
	if err := dao.Delete(ctx, db, asset.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound on double delete, got %v", err)
	}
}

func TestAssetQueryNameFilter(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)
	ctx := context.Background()
	dao := NewAssetDAO()

	CreateTestAsset(t, db, "desert_dunes")
	CreateTestAsset(t, db, "red_desert")
	CreateTestAsset(t, db, "green_meadow")

	results, err := dao.Query(ctx, db, QueryParams{NameContains: "desert"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 matches for 'desert', got %d", len(results))
	}
	for _, a := range results {
		if a.Name != "desert_dunes" && a.Name != "red_desert" {
			t.Fatalf("unexpected match: %s", a.Name)
		}
	}
}

func TestAssetQueryTagFilterAndSemantics(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)
	ctx := context.Background()
	dao := NewAssetDAO()
	schema := NewTagSchemaDAO()

	outdoor, err := schema.AddTag(ctx, db, "outdoor")
	if err != nil {
		t.Fatalf("AddTag outdoor: %v", err)
	}
	sunny, err := schema.AddTag(ctx, db, "sunny")
	if err != nil {
		t.Fatalf("AddTag sunny: %v", err)
	}

	a := CreateTestAsset(t, db, "alpine_lake")
	b := CreateTestAsset(t, db, "beach_noon")
	CreateTestAsset(t, db, "studio_softbox")

	if err := dao.SetTags(ctx, db, a.ID, map[string]bool{outdoor: true}); err != nil {
		t.Fatalf("SetTags a: %v", err)
	}
	if err := dao.SetTags(ctx, db, b.ID, map[string]bool{outdoor: true, sunny: true}); err != nil {
		t.Fatalf("SetTags b: %v", err)
	}

	results, err := dao.Query(ctx, db, QueryParams{Tags: map[string]bool{outdoor: true, sunny: true}})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 1 || results[0].Name != "beach_noon" {
		t.Fatalf("expected only beach_noon to match both tags, got %+v", results)
	}

	if !results[0].Tags[outdoor] || !results[0].Tags[sunny] {
		t.Fatalf("tag values missing from scanned row: %+v", results[0].Tags)
	}

	if _, err := dao.Query(ctx, db, QueryParams{Tags: map[string]bool{"name": true}}); err == nil {
		t.Fatalf("non-tag column must be rejected as a tag filter")
	}
}

func TestAssetQuerySorting(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)
	ctx := context.Background()
	dao := NewAssetDAO()

	first := &model.Asset{FilePath: "f1", Name: "bravo", UploadDate: "2026-08-03T00:00:00Z", Hash: "h1"}
	second := &model.Asset{FilePath: "f2", Name: "alpha", UploadDate: "2026-08-01T00:00:00Z", Hash: "h2"}
	third := &model.Asset{FilePath: "f3", Name: "alpha", UploadDate: "2026-08-02T00:00:00Z", Hash: "h3"}
	for _, a := range []*model.Asset{first, second, third} {
		if err := dao.Create(ctx, db, a); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	byName, err := dao.Query(ctx, db, QueryParams{SortBy: SortByName})
	if err != nil {
		t.Fatalf("Query by name failed: %v", err)
	}
	// Equal names tie-break by id ascending.
	wantNames := []uint64{second.ID, third.ID, first.ID}
	for i, want := range wantNames {
		if byName[i].ID != want {
			t.Fatalf("name sort position %d: expected id %d, got %d", i, want, byName[i].ID)
		}
	}

	byDateDesc, err := dao.Query(ctx, db, QueryParams{SortBy: SortByUploadDate, Descending: true})
	if err != nil {
		t.Fatalf("Query by upload_date failed: %v", err)
	}
	wantDates := []uint64{first.ID, third.ID, second.ID}
	for i, want := range wantDates {
		if byDateDesc[i].ID != want {
			t.Fatalf("date sort position %d: expected id %d, got %d", i, want, byDateDesc[i].ID)
		}
	}

	if _, err := dao.Query(ctx, db, QueryParams{SortBy: "hash"}); err == nil {
		t.Fatalf("unsupported sort key must be rejected")
	}
}
