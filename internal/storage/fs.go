/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// FSConfig configures the filesystem backend.
type FSConfig struct {
	// RootDir is the directory exports are written under.
	RootDir string
}

// FSStore implements Store using the local filesystem.
type FSStore struct {
	rootDir string
	logger  zerolog.Logger
}

// NewFSStore creates a filesystem-based storage backend.
func NewFSStore(cfg FSConfig, logger zerolog.Logger) *FSStore {
	return &FSStore{
		rootDir: cfg.RootDir,
		logger:  logger.With().Str("component", "storage").Logger(),
	}
}

// cleanKey validates an object key and maps it to a path relative to the
// root. Keys must stay inside the root directory.
func cleanKey(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("empty object key")
	}
	cleaned := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("object key %q escapes storage root", key)
	}
	return cleaned, nil
}

// Put writes an object, creating parent directories as needed.
func (fs *FSStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	rel, err := cleanKey(key)
	if err != nil {
		return err
	}
	fullPath := filepath.Join(fs.rootDir, rel)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}

	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		os.Remove(fullPath) // Clean up on failure
		return fmt.Errorf("write object: %w", err)
	}

	fs.logger.Debug().
		Str("path", fullPath).
		Str("key", key).
		Int("bytes", len(data)).
		Msg("filesystem storage: object stored")

	return nil
}

// Get reads an object.
func (fs *FSStore) Get(ctx context.Context, key string) ([]byte, error) {
	rel, err := cleanKey(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(fs.rootDir, rel))
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	return data, nil
}

// Delete removes an object. Missing objects are not an error.
func (fs *FSStore) Delete(ctx context.Context, key string) error {
	rel, err := cleanKey(key)
	if err != nil {
		return err
	}

	fullPath := filepath.Join(fs.rootDir, rel)
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove object: %w", err)
	}

	fs.logger.Debug().Str("path", fullPath).Msg("filesystem storage: object deleted")
	return nil
}

// URL returns the local path an object is stored at.
func (fs *FSStore) URL(key string) string {
	rel, err := cleanKey(key)
	if err != nil {
		return ""
	}
	return filepath.Join(fs.rootDir, rel)
}

// CheckAccess verifies the storage directory exists and is accessible.
func (fs *FSStore) CheckAccess(ctx context.Context) error {
	info, err := os.Stat(fs.rootDir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("storage root directory does not exist: %s", fs.rootDir)
		}
		return fmt.Errorf("cannot access storage root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("storage root is not a directory: %s", fs.rootDir)
	}
	return nil
}
