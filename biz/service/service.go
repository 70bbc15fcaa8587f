package service

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/lumenforge/hdriatlas/pkg/config"
	"github.com/lumenforge/hdriatlas/pkg/imaging"
	"github.com/lumenforge/hdriatlas/pkg/phash"
	"github.com/lumenforge/hdriatlas/pkg/storage"
	"github.com/lumenforge/hdriatlas/pkg/validator"

	"gorm.io/gorm"
)

const previewFileName = "preview.jpg"

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// Service orchestrates catalog operations: fingerprinting, dedup checks,
// two-phase ingest, tag schema changes and storage materialization.
type Service struct {
	logic          *Logic
	engine         *phash.Engine
	decoder        imaging.Decoder
	store          storage.Storage
	uploads        *validator.UploadValidator
	previewMaxSize int
}

func NewService(dbConn *gorm.DB, store storage.Storage, cfg *config.Config) (*Service, error) {
	engine, err := phash.NewEngine(cfg.Catalog.HashSize, cfg.Catalog.SampleSize)
	if err != nil {
		return nil, fmt.Errorf("build hash engine: %w", err)
	}
	return &Service{
		logic:          NewLogic(dbConn),
		engine:         engine,
		decoder:        imaging.NewStdDecoder(),
		store:          store,
		uploads:        validator.New(cfg.Upload),
		previewMaxSize: cfg.Catalog.PreviewMaxSize,
	}, nil
}

// assetFolder yields the storage folder for one asset: a zero-padded id
// prefix keeps folders unique and listing order stable even after renames.
func assetFolder(id uint64, name string) string {
	return fmt.Sprintf("%05d_%s", id, sanitizeKeyPart(name))
}

// sanitizeKeyPart maps arbitrary display text to a safe storage key segment.
func sanitizeKeyPart(s string) string {
	joined := strings.Join(strings.Fields(strings.TrimSpace(s)), "_")
	cleaned := unsafeKeyChars.ReplaceAllString(joined, "")
	cleaned = strings.Trim(cleaned, "._")
	if cleaned == "" {
		return "asset"
	}
	return cleaned
}

// defaultAssetName derives a display name from an uploaded file name.
func defaultAssetName(fileName string) string {
	base := filepath.Base(fileName)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if strings.TrimSpace(name) == "" {
		return "untitled"
	}
	return name
}
