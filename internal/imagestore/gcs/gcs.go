// Package gcs implements the image byte store on Google Cloud Storage.
package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/mhzan/cctv-archiver/internal/cctv"
)

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string `mapstructure:"bucket" yaml:"bucket"`
	// Prefix is an optional object name prefix, e.g. "images/".
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
}

// Store writes snapshot bytes to a configured GCS bucket.
type Store struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates a GCS-backed image store.
func New(client *storage.Client, cfg Config) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// Put uploads data under key with a JPEG content type.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("storage key is required")
	}
	writer := s.client.Bucket(s.bucket).Object(s.prefix + key).NewWriter(ctx)
	writer.ContentType = "image/jpeg"
	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}

// Get downloads the object stored under key, or cctv.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("storage key is required")
	}
	reader, err := s.client.Bucket(s.bucket).Object(s.prefix + key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("image %s: %w", key, cctv.ErrNotFound)
		}
		return nil, fmt.Errorf("open object %s: %w", key, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	return data, nil
}

// Stats reports bucket reachability. Objects are not enumerated; a full
// count over a large bucket is too expensive for a health probe.
func (s *Store) Stats(ctx context.Context) (cctv.ImageStoreStats, error) {
	stats := cctv.ImageStoreStats{Dir: fmt.Sprintf("gs://%s/%s", s.bucket, s.prefix)}
	if _, err := s.client.Bucket(s.bucket).Attrs(ctx); err != nil {
		return stats, nil
	}
	stats.Exists = true
	stats.IsDir = true
	stats.ImageCount = -1
	return stats, nil
}
