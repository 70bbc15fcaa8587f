package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/lumenforge/hdriatlas/biz/dal/db"
	"github.com/lumenforge/hdriatlas/biz/dal/model"

	"gorm.io/gorm"
)

// ListParams filters and orders a catalog listing. Tags is keyed by tag
// display name ("Studio Light"), not column name; all entries must match.
type ListParams struct {
	NameContains string
	Tags         map[string]bool
	SortBy       string
	Descending   bool
}

// ListAssets returns the completed assets matching the given filters.
func (s *Service) ListAssets(ctx context.Context, params ListParams) ([]model.Asset, error) {
	query := db.QueryParams{
		NameContains: params.NameContains,
		SortBy:       params.SortBy,
		Descending:   params.Descending,
	}
	if len(params.Tags) > 0 {
		query.Tags = make(map[string]bool, len(params.Tags))
		for name, value := range params.Tags {
			column, err := db.SanitizeTagName(name)
			if err != nil {
				return nil, err
			}
			query.Tags[column] = value
		}
	}
	return s.logic.assetDAO.Query(ctx, s.logic.db, query)
}

// GetAsset returns one asset by id.
func (s *Service) GetAsset(ctx context.Context, id uint64) (*model.Asset, error) {
	return s.getAsset(ctx, id)
}

func (s *Service) getAsset(ctx context.Context, id uint64) (*model.Asset, error) {
	asset, err := s.logic.assetDAO.GetByID(ctx, s.logic.db, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAssetNotFound
	}
	return asset, err
}

// RenameAsset updates an asset's display name. The materialized folder keeps
// its original name; only the catalog entry changes.
func (s *Service) RenameAsset(ctx context.Context, id uint64, name string) (*model.Asset, error) {
	if name == "" {
		return nil, fmt.Errorf("name must not be empty")
	}
	err := s.logic.assetDAO.Rename(ctx, s.logic.db, id, name)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAssetNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.getAsset(ctx, id)
}

// DeleteAsset removes the catalog entry and its materialized folder. The
// row goes first so a storage failure leaves orphaned files, never a
// catalog entry pointing at deleted files.
func (s *Service) DeleteAsset(ctx context.Context, id uint64) error {
	asset, err := s.getAsset(ctx, id)
	if err != nil {
		return err
	}

	if err := s.logic.assetDAO.Delete(ctx, s.logic.db, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAssetNotFound
		}
		return err
	}

	if asset.FilePath != "" {
		if err := s.store.DeletePrefix(ctx, path.Dir(asset.FilePath)); err != nil {
			return fmt.Errorf("delete asset folder: %w", err)
		}
	}
	return nil
}

// OpenAssetFile streams the original file of a completed asset. Returns the
// reader and the stored file name.
func (s *Service) OpenAssetFile(ctx context.Context, id uint64) (io.ReadCloser, string, error) {
	asset, err := s.getAsset(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if asset.IsPending() {
		return nil, "", ErrAssetNotFound
	}
	rc, err := s.store.GetObject(ctx, asset.FilePath)
	if err != nil {
		return nil, "", fmt.Errorf("open asset file: %w", err)
	}
	return rc, path.Base(asset.FilePath), nil
}

// OpenAssetPreview streams the JPEG preview of a completed asset.
func (s *Service) OpenAssetPreview(ctx context.Context, id uint64) (io.ReadCloser, error) {
	asset, err := s.getAsset(ctx, id)
	if err != nil {
		return nil, err
	}
	if asset.IsPending() || asset.PreviewPath == "" {
		return nil, ErrAssetNotFound
	}
	rc, err := s.store.GetObject(ctx, asset.PreviewPath)
	if err != nil {
		return nil, fmt.Errorf("open asset preview: %w", err)
	}
	return rc, nil
}
