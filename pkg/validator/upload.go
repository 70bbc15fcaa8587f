package validator

import (
	"errors"
	"net/http"
	"strings"

	"github.com/lumenforge/hdriatlas/pkg/config"
)

// UploadValidator enforces size and MIME constraints on ingested files.
type UploadValidator struct {
	maxFileSize  int64
	allowedTypes map[string]bool
}

// New builds an UploadValidator from configuration.
func New(cfg config.UploadConfig) *UploadValidator {
	allowed := make(map[string]bool, len(cfg.AllowedTypes))
	for _, t := range cfg.AllowedTypes {
		allowed[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return &UploadValidator{
		maxFileSize:  cfg.MaxSize,
		allowedTypes: allowed,
	}
}

// ValidateFileSize checks if the file size is within the allowed limit.
func (v *UploadValidator) ValidateFileSize(size int64) error {
	if size <= 0 {
		return errors.New("file is empty")
	}
	if v.maxFileSize > 0 && size > v.maxFileSize {
		return errors.New("file too large")
	}
	return nil
}

// ValidateMimeType checks if the MIME type is in the allowed whitelist.
func (v *UploadValidator) ValidateMimeType(mimeType string) error {
	normalized := strings.ToLower(strings.TrimSpace(mimeType))
	if normalized == "" {
		return errors.New("missing content type")
	}
	// Handle MIME types with parameters (e.g. "image/png; charset=binary")
	if idx := strings.Index(normalized, ";"); idx > 0 {
		normalized = strings.TrimSpace(normalized[:idx])
	}
	if !v.allowedTypes[normalized] {
		return errors.New("unsupported file type")
	}
	return nil
}

// DetectAndValidateMimeType sniffs the MIME type from file content and
// validates it against the whitelist. HDR formats such as Radiance .hdr
// sniff as application/octet-stream, which the default whitelist permits.
func (v *UploadValidator) DetectAndValidateMimeType(data []byte) (string, error) {
	detectedType := http.DetectContentType(data)
	if idx := strings.Index(detectedType, ";"); idx > 0 {
		detectedType = strings.TrimSpace(detectedType[:idx])
	}
	if err := v.ValidateMimeType(detectedType); err != nil {
		return detectedType, err
	}
	return detectedType, nil
}

// Validate performs full validation on an upload and returns the detected
// MIME type.
func (v *UploadValidator) Validate(data []byte) (string, error) {
	if err := v.ValidateFileSize(int64(len(data))); err != nil {
		return "", err
	}
	return v.DetectAndValidateMimeType(data)
}
