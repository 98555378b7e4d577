// Package local implements the image byte store on the local filesystem.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mhzan/cctv-archiver/internal/cctv"
)

// Config captures the parameters for the local image store.
type Config struct {
	// BaseDir is the storage root all image files live under.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// Store writes snapshot bytes to disk under a flat storage root.
type Store struct {
	baseDir string
}

// New validates the storage root and returns a Store. The directory is
// created when missing and probed for writability.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	switch {
	case err != nil && os.IsNotExist(err):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat base directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	probe := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(probe, []byte("probe"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(probe); err != nil {
		return nil, fmt.Errorf("clean up probe file: %w", err)
	}

	return &Store{baseDir: cfg.BaseDir}, nil
}

// Put writes data under key. The write lands before any metadata is
// recorded, so a crash leaves at worst an orphan file, never a dangling
// metadata row.
func (s *Store) Put(_ context.Context, key string, data []byte) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write image %s: %w", key, err)
	}
	return nil
}

// Get returns the bytes stored under key, or cctv.ErrNotFound.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("image %s: %w", key, cctv.ErrNotFound)
		}
		return nil, fmt.Errorf("read image %s: %w", key, err)
	}
	return data, nil
}

// Stats reports storage root health for the health endpoint. It never
// fails on a missing root; that condition is the report.
func (s *Store) Stats(_ context.Context) (cctv.ImageStoreStats, error) {
	stats := cctv.ImageStoreStats{Dir: s.baseDir}
	info, err := os.Stat(s.baseDir)
	if err != nil {
		return stats, nil
	}
	stats.Exists = true
	stats.IsDir = info.IsDir()
	if !stats.IsDir {
		return stats, nil
	}
	matches, err := filepath.Glob(filepath.Join(s.baseDir, "*.jpg"))
	if err != nil {
		return stats, fmt.Errorf("count images: %w", err)
	}
	stats.ImageCount = int64(len(matches))
	return stats, nil
}

// resolve joins key onto the base dir and rejects traversal outside it.
func (s *Store) resolve(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("storage key is required")
	}
	full := filepath.Join(s.baseDir, key)
	cleanBase := filepath.Clean(s.baseDir)
	if !strings.HasPrefix(filepath.Clean(full), cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("storage key escapes base directory")
	}
	return full, nil
}
