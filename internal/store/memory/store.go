// Package memory provides an in-memory metadata store for development and
// testing.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mhzan/cctv-archiver/internal/cctv"
)

// Store implements cctv.MetadataStore with maps behind a RWMutex.
type Store struct {
	mu       sync.RWMutex
	highways map[string]cctv.Highway
	cameras  map[string]cctv.Camera
	images   map[string]cctv.ImageRecord // keyed by image path
	order    []string                    // image paths in insertion order
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		highways: make(map[string]cctv.Highway),
		cameras:  make(map[string]cctv.Camera),
		images:   make(map[string]cctv.ImageRecord),
	}
}

// UpsertHighway creates or replaces a highway by code.
func (s *Store) UpsertHighway(_ context.Context, h cctv.Highway) error {
	if h.Code == "" {
		return fmt.Errorf("highway code is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.highways[h.Code] = h
	return nil
}

// UpsertCamera creates or replaces a camera. The owning highway must exist.
func (s *Store) UpsertCamera(_ context.Context, c cctv.Camera) error {
	if c.CameraID == "" {
		return fmt.Errorf("camera id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.highways[c.HighwayCode]; !ok {
		return fmt.Errorf("highway %s: %w", c.HighwayCode, cctv.ErrNotFound)
	}
	s.cameras[c.CameraID] = c
	return nil
}

// RecordImage appends an image record, failing with ErrDuplicateKey when
// the path is already recorded.
func (s *Store) RecordImage(_ context.Context, rec cctv.ImageRecord) error {
	if rec.ImagePath == "" {
		return fmt.Errorf("image path is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.images[rec.ImagePath]; ok {
		return fmt.Errorf("%s: %w", rec.ImagePath, cctv.ErrDuplicateKey)
	}
	if _, ok := s.cameras[rec.CameraID]; !ok {
		return fmt.Errorf("camera %s: %w", rec.CameraID, cctv.ErrNotFound)
	}
	s.images[rec.ImagePath] = rec
	s.order = append(s.order, rec.ImagePath)
	return nil
}

// HasImage reports whether an image path has been recorded.
func (s *Store) HasImage(_ context.Context, imagePath string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.images[imagePath]
	return ok, nil
}

// QueryImages returns matching images newest first.
func (s *Store) QueryImages(_ context.Context, q cctv.ImageQuery) ([]cctv.CapturedImage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []cctv.CapturedImage
	for _, path := range s.order {
		rec := s.images[path]
		cam, ok := s.cameras[rec.CameraID]
		if !ok {
			continue
		}
		if q.CameraID != "" && cam.CameraID != q.CameraID {
			continue
		}
		if q.HighwayCode != "" && cam.HighwayCode != q.HighwayCode {
			continue
		}
		if q.From != nil && rec.CaptureTime.Before(*q.From) {
			continue
		}
		if q.To != nil && rec.CaptureTime.After(*q.To) {
			continue
		}
		hwy := s.highways[cam.HighwayCode]
		out = append(out, cctv.CapturedImage{
			CameraID:    cam.CameraID,
			CameraName:  cam.Name,
			HighwayCode: hwy.Code,
			HighwayName: hwy.Name,
			ImagePath:   rec.ImagePath,
			CaptureTime: rec.CaptureTime,
			FileSize:    rec.FileSize,
		})
	}

	// Newest first; ties keep insertion order stable.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CaptureTime.After(out[j].CaptureTime)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// ListHighways returns all highways sorted by code.
func (s *Store) ListHighways(_ context.Context) ([]cctv.Highway, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]cctv.Highway, 0, len(s.highways))
	for _, h := range s.highways {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// GetHighway fetches one highway by code.
func (s *Store) GetHighway(_ context.Context, code string) (cctv.Highway, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.highways[code]
	if !ok {
		return cctv.Highway{}, fmt.Errorf("highway %s: %w", code, cctv.ErrNotFound)
	}
	return h, nil
}

// ListCameras returns cameras, optionally filtered by highway, sorted by id.
func (s *Store) ListCameras(_ context.Context, highwayCode string) ([]cctv.Camera, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if highwayCode != "" {
		if _, ok := s.highways[highwayCode]; !ok {
			return nil, fmt.Errorf("highway %s: %w", highwayCode, cctv.ErrNotFound)
		}
	}
	var out []cctv.Camera
	for _, c := range s.cameras {
		if highwayCode != "" && c.HighwayCode != highwayCode {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CameraID < out[j].CameraID })
	return out, nil
}

// CountImages returns the number of recorded images.
func (s *Store) CountImages(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.images)), nil
}
