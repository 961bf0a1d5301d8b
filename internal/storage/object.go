/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package storage persists plan exports as objects, on the local
// filesystem or in an S3-compatible bucket.
package storage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Store abstracts object storage operations.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error

	// URL returns where a stored object can be found. For the filesystem
	// backend this is a local path.
	URL(key string) string

	// CheckAccess verifies the backend is usable at startup.
	CheckAccess(ctx context.Context) error
}

// Config selects and configures a storage backend.
type Config struct {
	// Backend is "fs" or "s3". Empty means fs.
	Backend string
	FS      FSConfig
	S3      S3Config
}

// New builds the configured store.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (Store, error) {
	switch cfg.Backend {
	case "", "fs":
		return NewFSStore(cfg.FS, logger), nil
	case "s3":
		return NewS3Store(ctx, cfg.S3, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
