package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mhzan/cctv-archiver/internal/cctv"
	"github.com/mhzan/cctv-archiver/internal/metrics"
)

// RetryConfig bounds the retry loop around store calls.
type RetryConfig struct {
	MaxRetries int
	Backoff    time.Duration
}

// retryingStore wraps a MetadataStore, retrying transient failures with
// fixed backoff and mapping exhaustion to cctv.ErrStoreUnavailable.
// ErrDuplicateKey and ErrNotFound pass through untouched: they are
// answers, not outages.
type retryingStore struct {
	inner  cctv.MetadataStore
	cfg    RetryConfig
	logger *zap.Logger
}

// WithRetry decorates inner with the bounded retry policy.
func WithRetry(inner cctv.MetadataStore, cfg RetryConfig, logger *zap.Logger) cctv.MetadataStore {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 200 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &retryingStore{inner: inner, cfg: cfg, logger: logger}
}

func (s *retryingStore) do(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			metrics.ObserveStoreRetry()
			s.logger.Warn("retrying metadata store call",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %s canceled: %v", cctv.ErrStoreUnavailable, op, ctx.Err())
			case <-time.After(s.cfg.Backoff):
			}
		}
		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, cctv.ErrDuplicateKey) || errors.Is(err, cctv.ErrNotFound) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("%w: %s: %v", cctv.ErrStoreUnavailable, op, lastErr)
}

func (s *retryingStore) UpsertHighway(ctx context.Context, h cctv.Highway) error {
	return s.do(ctx, "upsert highway", func() error {
		return s.inner.UpsertHighway(ctx, h)
	})
}

func (s *retryingStore) UpsertCamera(ctx context.Context, c cctv.Camera) error {
	return s.do(ctx, "upsert camera", func() error {
		return s.inner.UpsertCamera(ctx, c)
	})
}

func (s *retryingStore) RecordImage(ctx context.Context, rec cctv.ImageRecord) error {
	return s.do(ctx, "record image", func() error {
		return s.inner.RecordImage(ctx, rec)
	})
}

func (s *retryingStore) HasImage(ctx context.Context, imagePath string) (bool, error) {
	var found bool
	err := s.do(ctx, "has image", func() error {
		var innerErr error
		found, innerErr = s.inner.HasImage(ctx, imagePath)
		return innerErr
	})
	return found, err
}

func (s *retryingStore) QueryImages(ctx context.Context, q cctv.ImageQuery) ([]cctv.CapturedImage, error) {
	var images []cctv.CapturedImage
	err := s.do(ctx, "query images", func() error {
		var innerErr error
		images, innerErr = s.inner.QueryImages(ctx, q)
		return innerErr
	})
	return images, err
}

func (s *retryingStore) ListHighways(ctx context.Context) ([]cctv.Highway, error) {
	var highways []cctv.Highway
	err := s.do(ctx, "list highways", func() error {
		var innerErr error
		highways, innerErr = s.inner.ListHighways(ctx)
		return innerErr
	})
	return highways, err
}

func (s *retryingStore) GetHighway(ctx context.Context, code string) (cctv.Highway, error) {
	var highway cctv.Highway
	err := s.do(ctx, "get highway", func() error {
		var innerErr error
		highway, innerErr = s.inner.GetHighway(ctx, code)
		return innerErr
	})
	return highway, err
}

func (s *retryingStore) ListCameras(ctx context.Context, highwayCode string) ([]cctv.Camera, error) {
	var cameras []cctv.Camera
	err := s.do(ctx, "list cameras", func() error {
		var innerErr error
		cameras, innerErr = s.inner.ListCameras(ctx, highwayCode)
		return innerErr
	})
	return cameras, err
}

func (s *retryingStore) CountImages(ctx context.Context) (int64, error) {
	var count int64
	err := s.do(ctx, "count images", func() error {
		var innerErr error
		count, innerErr = s.inner.CountImages(ctx)
		return innerErr
	})
	return count, err
}
