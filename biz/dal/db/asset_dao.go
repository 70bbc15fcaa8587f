package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/lumenforge/hdriatlas/biz/dal/model"
	"github.com/lumenforge/hdriatlas/pkg/common"

	"gorm.io/gorm"
)

// Sort keys accepted by Query.
const (
	SortByName       = "name"
	SortByUploadDate = "upload_date"
)

// QueryParams filters and orders a catalog listing. Tags maps full tag
// column names to required values; all entries must match (AND semantics).
type QueryParams struct {
	NameContains string
	Tags         map[string]bool
	SortBy       string
	Descending   bool
}

// AssetDAO handles CRUD operations for catalogued assets. Dynamic tag
// columns force map-based row scans instead of struct scans on reads.
type AssetDAO struct{}

func NewAssetDAO() *AssetDAO { return &AssetDAO{} }

func (dao *AssetDAO) Create(ctx context.Context, db *gorm.DB, asset *model.Asset) error {
	if asset == nil {
		return nil
	}
	return db.WithContext(ctx).Create(asset).Error
}

// FindByHash returns the asset whose fingerprint matches exactly, or
// gorm.ErrRecordNotFound. Tag values are populated from the row.
func (dao *AssetDAO) FindByHash(ctx context.Context, db *gorm.DB, hash string) (*model.Asset, error) {
	row := map[string]any{}
	err := db.WithContext(ctx).
		Table(model.Asset{}.TableName()).
		Where("hash = ?", hash).
		Take(&row).Error
	if err != nil {
		return nil, err
	}
	return assetFromRow(row), nil
}

// GetByID returns a single asset with its tag values populated.
func (dao *AssetDAO) GetByID(ctx context.Context, db *gorm.DB, id uint64) (*model.Asset, error) {
	row := map[string]any{}
	err := db.WithContext(ctx).
		Table(model.Asset{}.TableName()).
		Where("id = ?", id).
		Take(&row).Error
	if err != nil {
		return nil, err
	}
	return assetFromRow(row), nil
}

// CompleteIngest transitions a pending record to complete by filling in the
// materialized file and preview locations.
func (dao *AssetDAO) CompleteIngest(ctx context.Context, db *gorm.DB, id uint64, filePath, previewPath string) error {
	result := db.WithContext(ctx).
		Model(&model.Asset{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"file_path":    filePath,
			"preview_path": previewPath,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Rename updates the display name of an asset.
func (dao *AssetDAO) Rename(ctx context.Context, db *gorm.DB, id uint64, name string) error {
	result := db.WithContext(ctx).
		Model(&model.Asset{}).
		Where("id = ?", id).
		Update("name", name)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetTags writes tag column values for one asset. Keys must be full tag
// column names that already exist in the schema; unknown columns error at
// the database level.
func (dao *AssetDAO) SetTags(ctx context.Context, db *gorm.DB, id uint64, tags map[string]bool) error {
	if len(tags) == 0 {
		return nil
	}
	updates := make(map[string]any, len(tags))
	for column, value := range tags {
		if !IsTagColumn(column) {
			return fmt.Errorf("not a tag column: %s", column)
		}
		updates[column] = value
	}
	result := db.WithContext(ctx).
		Table(model.Asset{}.TableName()).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (dao *AssetDAO) Delete(ctx context.Context, db *gorm.DB, id uint64) error {
	result := db.WithContext(ctx).Where("id = ?", id).Delete(&model.Asset{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListPendingBefore returns pending records (no file materialized) whose
// upload date sorts before the cutoff. Upload dates are RFC 3339 strings,
// so lexicographic comparison matches chronological order.
func (dao *AssetDAO) ListPendingBefore(ctx context.Context, db *gorm.DB, cutoff string) ([]model.Asset, error) {
	var rows []map[string]any
	err := db.WithContext(ctx).
		Table(model.Asset{}.TableName()).
		Where("file_path = ? AND upload_date < ?", "", cutoff).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return assetsFromRows(rows), nil
}

// Query lists assets matching the given filters, ordered by the requested
// sort key with id as a stable tiebreak. Pending records are excluded.
func (dao *AssetDAO) Query(ctx context.Context, db *gorm.DB, params QueryParams) ([]model.Asset, error) {
	tx := db.WithContext(ctx).
		Table(model.Asset{}.TableName()).
		Where("file_path <> ?", "")

	if params.NameContains != "" {
		tx = tx.Where(`name LIKE ? ESCAPE '\'`, "%"+escapeLike(params.NameContains)+"%")
	}
	for column, value := range params.Tags {
		if !IsTagColumn(column) {
			return nil, fmt.Errorf("not a tag column: %s", column)
		}
		tx = tx.Where(fmt.Sprintf("%s = ?", column), value)
	}

	sortBy := params.SortBy
	switch sortBy {
	case "", SortByName:
		sortBy = SortByName
	case SortByUploadDate:
	default:
		return nil, fmt.Errorf("unsupported sort key: %s", params.SortBy)
	}
	direction := "ASC"
	if params.Descending {
		direction = "DESC"
	}

	var rows []map[string]any
	err := tx.Order(fmt.Sprintf("%s %s, id ASC", sortBy, direction)).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return assetsFromRows(rows), nil
}

func assetsFromRows(rows []map[string]any) []model.Asset {
	assets := make([]model.Asset, 0, len(rows))
	for _, row := range rows {
		assets = append(assets, *assetFromRow(row))
	}
	return assets
}

func assetFromRow(row map[string]any) *model.Asset {
	asset := &model.Asset{
		ID:          uint64(common.AsInt64(row["id"])),
		FilePath:    common.AsString(row["file_path"]),
		PreviewPath: common.AsString(row["preview_path"]),
		Name:        common.AsString(row["name"]),
		UploadDate:  common.AsString(row["upload_date"]),
		Hash:        common.AsString(row["hash"]),
		Tags:        map[string]bool{},
	}
	for column, value := range row {
		if IsTagColumn(column) {
			asset.Tags[column] = common.AsBool(value)
		}
	}
	return asset
}

// escapeLike escapes LIKE metacharacters so user input matches literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}
