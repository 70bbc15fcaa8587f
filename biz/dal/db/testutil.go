package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/lumenforge/hdriatlas/biz/dal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB creates an in-memory SQLite database for testing
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // Reduce log noise in tests
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(&model.Asset{}); err != nil {
		t.Fatalf("Failed to migrate tables: %v", err)
	}

	return db
}

// CleanupTestDB closes the database connection
func CleanupTestDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	if err != nil {
		t.Logf("Warning: Failed to get underlying DB: %v", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		t.Logf("Warning: Failed to close DB: %v", err)
	}
}

// CreateTestAsset creates a complete asset record with defaults derived
// from the given name.
func CreateTestAsset(t *testing.T, db *gorm.DB, name string) *model.Asset {
	t.Helper()
	dao := NewAssetDAO()
	asset := &model.Asset{
		FilePath:    fmt.Sprintf("assets/%s/%s.hdr", name, name),
		PreviewPath: fmt.Sprintf("assets/%s/preview.jpg", name),
		Name:        name,
		UploadDate:  "2026-08-01T12:00:00Z",
		Hash:        fmt.Sprintf("hash-%s", name),
	}
	if err := dao.Create(context.Background(), db, asset); err != nil {
		t.Fatalf("Failed to create test asset: %v", err)
	}
	return asset
}

// CreateTestPendingAsset creates a pending (phase one) record: hash and
// metadata only, no materialized file.
func CreateTestPendingAsset(t *testing.T, db *gorm.DB, name, hash string) *model.Asset {
	t.Helper()
	dao := NewAssetDAO()
	asset := &model.Asset{
		Name:       name,
		UploadDate: "2026-08-01T12:00:00Z",
		Hash:       hash,
	}
	if err := dao.Create(context.Background(), db, asset); err != nil {
		t.Fatalf("Failed to create test pending asset: %v", err)
	}
	return asset
}
