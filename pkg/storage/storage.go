package storage

// Package storage defines the storage abstraction for materialized catalog
// assets. It provides a unified interface over the local filesystem and
// S3-compatible object storage (AWS S3, Aliyun OSS, MinIO) so canonical
// copies and previews can live on either backend.

import (
	"context"
	"io"
)

// Storage defines the interface for object storage operations.
// All backends (local, S3) must implement this interface.
type Storage interface {
	// PutObject uploads a file to storage.
	// key: object key in format "{assetFolder}/{fileName}"
	// data: file content reader
	// contentType: MIME type of the file
	// size: file size in bytes
	PutObject(ctx context.Context, key string, data io.Reader, contentType string, size int64) error

	// GetObject retrieves a file from storage.
	// Returns a ReadCloser that must be closed by the caller.
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)

	// DeleteObject removes a file from storage.
	DeleteObject(ctx context.Context, key string) error

	// DeletePrefix removes every object under the given key prefix. Used
	// when an asset is deleted and its materialized folder must go with it.
	DeletePrefix(ctx context.Context, prefix string) error

	// ObjectExists checks if an object exists in storage.
	ObjectExists(ctx context.Context, key string) (bool, error)

	// Type returns the storage type identifier ("local" or "s3").
	Type() string
}
