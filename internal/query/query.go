// Package query implements the read-path lookups over archived images:
// latest, nearest-to-timestamp, and time-range listing.
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mhzan/cctv-archiver/internal/cctv"
)

// ErrInvalidRange means a range query's lower bound is after its upper
// bound.
var ErrInvalidRange = errors.New("from_time is after to_time")

// nearestScanLimit bounds how much history a nearest lookup pulls from
// the store. Far larger than any camera accumulates between cleanups.
const nearestScanLimit = 10000

// Engine answers read queries against the metadata store.
type Engine struct {
	store        cctv.MetadataStore
	hardLimit    int
	defaultLimit int
}

// New builds an Engine. hardLimit caps every range result; defaultLimit
// applies when a caller passes no limit.
func New(store cctv.MetadataStore, hardLimit, defaultLimit int) *Engine {
	if hardLimit <= 0 {
		hardLimit = 500
	}
	if defaultLimit <= 0 || defaultLimit > hardLimit {
		defaultLimit = hardLimit
	}
	return &Engine{store: store, hardLimit: hardLimit, defaultLimit: defaultLimit}
}

// Latest returns the newest image for a camera, or cctv.ErrNotFound when
// the camera has no history.
func (e *Engine) Latest(ctx context.Context, cameraID string) (cctv.CapturedImage, error) {
	images, err := e.store.QueryImages(ctx, cctv.ImageQuery{CameraID: cameraID, Limit: 1})
	if err != nil {
		return cctv.CapturedImage{}, fmt.Errorf("query latest image: %w", err)
	}
	if len(images) == 0 {
		return cctv.CapturedImage{}, fmt.Errorf("no images for camera %s: %w", cameraID, cctv.ErrNotFound)
	}
	return images[0], nil
}

// Nearest returns the image whose capture time is closest to target.
// Equidistant candidates resolve to the earlier timestamp. Returns
// cctv.ErrNotFound when the camera has no history.
func (e *Engine) Nearest(ctx context.Context, cameraID string, target time.Time) (cctv.CapturedImage, error) {
	images, err := e.store.QueryImages(ctx, cctv.ImageQuery{CameraID: cameraID, Limit: nearestScanLimit})
	if err != nil {
		return cctv.CapturedImage{}, fmt.Errorf("query camera history: %w", err)
	}
	if len(images) == 0 {
		return cctv.CapturedImage{}, fmt.Errorf("no images for camera %s: %w", cameraID, cctv.ErrNotFound)
	}

	best := images[0]
	bestDiff := absDuration(best.CaptureTime.Sub(target))
	for _, img := range images[1:] {
		diff := absDuration(img.CaptureTime.Sub(target))
		switch {
		case diff < bestDiff:
			best, bestDiff = img, diff
		case diff == bestDiff && img.CaptureTime.Before(best.CaptureTime):
			best = img
		}
	}
	return best, nil
}

// Range lists images matching the query, newest first, with From and To
// inclusive. A non-positive limit takes the default; every limit is
// clamped to the hard cap.
func (e *Engine) Range(ctx context.Context, q cctv.ImageQuery) ([]cctv.CapturedImage, error) {
	if q.From != nil && q.To != nil && q.From.After(*q.To) {
		return nil, fmt.Errorf("%w: %s > %s", ErrInvalidRange,
			q.From.Format(time.RFC3339), q.To.Format(time.RFC3339))
	}
	if q.Limit <= 0 {
		q.Limit = e.defaultLimit
	}
	if q.Limit > e.hardLimit {
		q.Limit = e.hardLimit
	}

	images, err := e.store.QueryImages(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query image range: %w", err)
	}
	return images, nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
