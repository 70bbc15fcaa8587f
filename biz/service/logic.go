package service

import (
	"errors"
	"fmt"

	"github.com/lumenforge/hdriatlas/biz/dal/db"
	"github.com/lumenforge/hdriatlas/biz/dal/model"
	"gorm.io/gorm"
)

var (
	ErrAssetNotFound = errors.New("asset not found")
	ErrTagNotFound   = errors.New("tag not found")
)

// DuplicateError reports that an ingested file's fingerprint matches an
// asset already fully present in the catalog. The conflicting record is
// carried so callers can show the user what they collided with.
type DuplicateError struct {
	Existing *model.Asset
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate of asset %d (%s)", e.Existing.ID, e.Existing.Name)
}

// Logic contains business rules on top of data persistence.
type Logic struct {
	db        *gorm.DB
	assetDAO  *db.AssetDAO
	tagSchema *db.TagSchemaDAO
}

func NewLogic(dbConn *gorm.DB) *Logic {
	return &Logic{
		db:        dbConn,
		assetDAO:  db.NewAssetDAO(),
		tagSchema: db.NewTagSchemaDAO(),
	}
}
