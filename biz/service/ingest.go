package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/lumenforge/hdriatlas/biz/dal/model"
	"github.com/lumenforge/hdriatlas/pkg/imaging"
	"github.com/lumenforge/hdriatlas/pkg/phash"

	"gorm.io/gorm"
)

// IngestInput carries one file into the catalog.
type IngestInput struct {
	// Name is the display name; derived from FileName when empty.
	Name string
	// FileName is the original upload file name, preserved in storage.
	FileName string
	Data     []byte
}

// IngestResult pairs one batch item with its outcome.
type IngestResult struct {
	FileName string       `json:"file_name"`
	Asset    *model.Asset `json:"asset,omitempty"`
	Err      error        `json:"-"`
	Error    string       `json:"error,omitempty"`
}

// IngestAsset runs the two-phase ingest for a single file.
//
// Phase one computes the perceptual fingerprint and claims it with a pending
// record (hash and metadata, no file). Phase two materializes the original
// and its preview into storage and completes the record. A crash between
// the phases leaves a pending record; re-ingesting the same content resumes
// it instead of rejecting, so recovery needs no manual cleanup.
func (s *Service) IngestAsset(ctx context.Context, in IngestInput) (*model.Asset, error) {
	contentType, err := s.uploads.Validate(in.Data)
	if err != nil {
		return nil, err
	}

	img, err := s.decoder.DecodeBytes(in.Data)
	if err != nil {
		return nil, err
	}
	fp, err := s.engine.Compute(img)
	if err != nil {
		return nil, err
	}
	hash := fp.String()

	name := in.Name
	if name == "" {
		name = defaultAssetName(in.FileName)
	}

	record, err := s.claimFingerprint(ctx, hash, name)
	if err != nil {
		return nil, err
	}

	// Materialize. On failure the record stays pending and the next ingest
	// of the same content resumes it; partial objects are cleaned up
	// best-effort so retries start from an empty folder.
	folder := assetFolder(record.ID, record.Name)
	fileKey := path.Join(folder, sanitizeKeyPart(in.FileName))
	if err := s.store.PutObject(ctx, fileKey, bytes.NewReader(in.Data), contentType, int64(len(in.Data))); err != nil {
		_ = s.store.DeletePrefix(ctx, folder)
		return nil, fmt.Errorf("store original: %w", err)
	}

	previewKey := path.Join(folder, previewFileName)
	preview, err := imaging.EncodeJPEG(imaging.Thumbnail(img, s.previewMaxSize))
	if err != nil {
		_ = s.store.DeletePrefix(ctx, folder)
		return nil, fmt.Errorf("encode preview: %w", err)
	}
	if err := s.store.PutObject(ctx, previewKey, bytes.NewReader(preview), "image/jpeg", int64(len(preview))); err != nil {
		_ = s.store.DeletePrefix(ctx, folder)
		return nil, fmt.Errorf("store preview: %w", err)
	}

	if err := s.logic.assetDAO.CompleteIngest(ctx, s.logic.db, record.ID, fileKey, previewKey); err != nil {
		return nil, fmt.Errorf("complete ingest: %w", err)
	}
	return s.logic.assetDAO.GetByID(ctx, s.logic.db, record.ID)
}

// claimFingerprint resolves the phase-one record for a fingerprint: an
// existing complete asset is a duplicate, an existing pending record is
// resumed, otherwise a fresh pending record claims the hash. A lost insert
// race re-reads the winner and classifies it the same way.
func (s *Service) claimFingerprint(ctx context.Context, hash, name string) (*model.Asset, error) {
	existing, err := s.logic.assetDAO.FindByHash(ctx, s.logic.db, hash)
	switch {
	case err == nil:
		if !existing.IsPending() {
			return nil, &DuplicateError{Existing: existing}
		}
		return existing, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return nil, err
	}

	record := &model.Asset{
		Name:       name,
		UploadDate: time.Now().UTC().Format(time.RFC3339),
		Hash:       hash,
	}
	if err := s.logic.assetDAO.Create(ctx, s.logic.db, record); err != nil {
		winner, findErr := s.logic.assetDAO.FindByHash(ctx, s.logic.db, hash)
		if findErr != nil {
			return nil, err
		}
		if !winner.IsPending() {
			return nil, &DuplicateError{Existing: winner}
		}
		return winner, nil
	}
	return record, nil
}

// IngestFile ingests a file from the local filesystem. The display name is
// derived from the file name.
func (s *Service) IngestFile(ctx context.Context, filePath string) (*model.Asset, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read source file: %w", err)
	}
	return s.IngestAsset(ctx, IngestInput{
		FileName: filepath.Base(filePath),
		Data:     data,
	})
}

// IngestBatch ingests several files sequentially. One failure does not
// abort the rest; each item reports its own outcome.
func (s *Service) IngestBatch(ctx context.Context, inputs []IngestInput) []IngestResult {
	results := make([]IngestResult, 0, len(inputs))
	for _, in := range inputs {
		asset, err := s.IngestAsset(ctx, in)
		result := IngestResult{FileName: in.FileName, Asset: asset, Err: err}
		if err != nil {
			result.Error = err.Error()
		}
		results = append(results, result)
	}
	return results
}

// CompareAssets returns the Hamming distance between the fingerprints of
// two catalogued assets. Lower means more visually similar; 0 means the
// fingerprints are identical.
func (s *Service) CompareAssets(ctx context.Context, idA, idB uint64) (int, error) {
	a, err := s.getAsset(ctx, idA)
	if err != nil {
		return 0, err
	}
	b, err := s.getAsset(ctx, idB)
	if err != nil {
		return 0, err
	}

	fpA, err := phash.ParseHex(a.Hash, s.engine.HashSize())
	if err != nil {
		return 0, fmt.Errorf("asset %d: %w", idA, err)
	}
	fpB, err := phash.ParseHex(b.Hash, s.engine.HashSize())
	if err != nil {
		return 0, fmt.Errorf("asset %d: %w", idB, err)
	}
	return fpA.Distance(fpB)
}

// PurgePendingBefore removes pending records older than the cutoff. These
// are leftovers from ingests that never reached phase two; purging them
// releases their fingerprints for re-ingest from scratch.
func (s *Service) PurgePendingBefore(ctx context.Context, cutoff time.Time) (int, error) {
	stale, err := s.logic.assetDAO.ListPendingBefore(ctx, s.logic.db, cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	purged := 0
	for _, record := range stale {
		if err := s.logic.assetDAO.Delete(ctx, s.logic.db, record.ID); err != nil {
			return purged, fmt.Errorf("purge record %d: %w", record.ID, err)
		}
		purged++
	}
	return purged, nil
}
