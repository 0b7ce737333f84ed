// Package blobstore keeps uploaded file bytes on the server side.
package blobstore

import (
	"context"
	"fmt"

	"docchat/internal/config"
	"docchat/internal/helper"

	"github.com/rs/zerolog/log"
)

// Store holds raw upload bytes keyed by file id.
// A read-only store accepts nothing and tells callers to keep bytes themselves.
type Store interface {
	Put(ctx context.Context, fileID, filename string, data []byte) error
	Get(ctx context.Context, fileID string) ([]byte, error)
	Delete(ctx context.Context, fileID string) error
	ReadOnly() bool
}

// New picks the store for cfg.Mode. Auto uses the local directory when it is
// writable and falls back to read-only otherwise.
func New(cfg config.StorageConfig) (Store, error) {
	switch cfg.Mode {
	case "local":
		return NewDirStore(cfg.Dir)
	case "minio":
		m := cfg.Minio
		return NewMinioStore(m.Endpoint, m.AccessKey, m.SecretKey, m.Bucket, m.UseSSL)
	case "readonly":
		return ReadOnlyStore{}, nil
	case "auto":
		if helper.Writable(cfg.Dir) {
			return NewDirStore(cfg.Dir)
		}
		log.Warn().Str("dir", cfg.Dir).Msg("Upload dir not writable, running read-only")
		return ReadOnlyStore{}, nil
	default:
		return nil, fmt.Errorf("unknown storage mode %q", cfg.Mode)
	}
}
