package service

import (
	"context"
	"errors"

	"github.com/lumenforge/hdriatlas/biz/dal/db"

	"gorm.io/gorm"
)

// TagInfo describes one tag known to the catalog.
type TagInfo struct {
	Name   string `json:"name"`
	Column string `json:"column"`
}

// ListTags returns all tags currently in the catalog schema.
func (s *Service) ListTags(ctx context.Context) ([]TagInfo, error) {
	columns, err := s.logic.tagSchema.ListTagColumns(ctx, s.logic.db)
	if err != nil {
		return nil, err
	}
	tags := make([]TagInfo, 0, len(columns))
	for _, column := range columns {
		tags = append(tags, TagInfo{
			Name:   db.TagNameFromColumn(column),
			Column: column,
		})
	}
	return tags, nil
}

// AddTag ensures a tag exists in the catalog schema. Existing assets keep
// the tag unset; re-adding an existing tag changes nothing.
func (s *Service) AddTag(ctx context.Context, name string) (TagInfo, error) {
	column, err := s.logic.tagSchema.AddTag(ctx, s.logic.db, name)
	if err != nil {
		return TagInfo{}, err
	}
	return TagInfo{Name: db.TagNameFromColumn(column), Column: column}, nil
}

// RemoveTag drops a tag from the schema, discarding its values on every
// asset. All other asset attributes survive.
func (s *Service) RemoveTag(ctx context.Context, name string) error {
	err := s.logic.tagSchema.RemoveTag(ctx, s.logic.db, name)
	if errors.Is(err, db.ErrTagColumnNotFound) {
		return ErrTagNotFound
	}
	return err
}

// SetAssetTags assigns tag values on one asset. Keys are tag display names.
// Tags are created on demand: assigning a tag the schema has never seen adds
// its column first, so the asset that introduces a tag carries its value
// immediately while every other asset defaults to false.
func (s *Service) SetAssetTags(ctx context.Context, id uint64, tags map[string]bool) error {
	if len(tags) == 0 {
		return nil
	}

	columns := make(map[string]bool, len(tags))
	for name, value := range tags {
		column, err := s.logic.tagSchema.AddTag(ctx, s.logic.db, name)
		if err != nil {
			return err
		}
		columns[column] = value
	}

	err := s.logic.assetDAO.SetTags(ctx, s.logic.db, id, columns)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrAssetNotFound
	}
	return err
}
