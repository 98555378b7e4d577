// Package scrape runs the fetch-and-archive cycle: pull every configured
// highway's camera catalog, persist new snapshots, and record metadata.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mhzan/cctv-archiver/internal/cctv"
	"github.com/mhzan/cctv-archiver/internal/metrics"
	"github.com/mhzan/cctv-archiver/internal/storagekey"
)

// Config tunes cycle concurrency and per-camera retry behavior.
type Config struct {
	Concurrency int
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 500 * time.Millisecond
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 5 * time.Second
	}
	return c
}

// Engine drives one scrape cycle at a time. It owns no goroutines between
// cycles; the scheduler decides when RunCycle fires.
type Engine struct {
	cfg       Config
	fetcher   cctv.CatalogFetcher
	store     cctv.MetadataStore
	images    cctv.ImageStore
	publisher cctv.Publisher
	clock     cctv.Clock
	highways  map[string]cctv.Highway
	logger    *zap.Logger
}

// New builds an Engine. The highways map resolves codes to display names
// for upserts.
func New(
	cfg Config,
	fetcher cctv.CatalogFetcher,
	store cctv.MetadataStore,
	images cctv.ImageStore,
	publisher cctv.Publisher,
	clock cctv.Clock,
	highways map[string]cctv.Highway,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		cfg:       cfg.withDefaults(),
		fetcher:   fetcher,
		store:     store,
		images:    images,
		publisher: publisher,
		clock:     clock,
		highways:  highways,
		logger:    logger.Named("scrape"),
	}
}

type fetchResult struct {
	highwayCode string
	snapshots   []cctv.CameraSnapshot
	attempts    int
	err         error
}

// RunCycle fetches every highway's catalog and archives each snapshot.
// One camera's failure never aborts the cycle; the summary records every
// outcome.
func (e *Engine) RunCycle(ctx context.Context, highwayCodes []string) cctv.CycleSummary {
	done := metrics.CycleStarted()
	defer done()

	summary := cctv.CycleSummary{
		StartedAt: e.clock.Now(),
		PerCamera: make(map[string]cctv.CameraOutcome),
	}

	results := e.fetchCatalogs(ctx, highwayCodes)

	var snapshots []cctv.CameraSnapshot
	for _, res := range results {
		if res.err != nil {
			e.logger.Warn("highway catalog fetch failed",
				zap.String("highway", res.highwayCode),
				zap.Int("attempts", res.attempts),
				zap.Error(res.err))
			summary.Failed++
			summary.PerCamera[res.highwayCode] = cctv.CameraOutcome{
				Status:   cctv.FetchFailed,
				Attempts: res.attempts,
				Error:    res.err.Error(),
			}
			metrics.ObserveSnapshot(res.highwayCode, "failed", 0)
			continue
		}
		snapshots = append(snapshots, res.snapshots...)
	}

	outcomes := e.archiveAll(ctx, snapshots)
	for cameraID, outcome := range outcomes {
		summary.PerCamera[cameraID] = outcome
		switch {
		case outcome.Duplicate:
			summary.Skipped++
		case outcome.Status == cctv.FetchSucceeded:
			summary.Succeeded++
		default:
			summary.Failed++
		}
	}

	summary.FinishedAt = e.clock.Now()
	e.logger.Info("scrape cycle finished",
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)))
	return summary
}

// fetchCatalogs pulls each highway's feed through a bounded worker pool,
// retrying transient upstream failures with exponential backoff.
func (e *Engine) fetchCatalogs(ctx context.Context, highwayCodes []string) []fetchResult {
	jobs := make(chan string)
	results := make(chan fetchResult, len(highwayCodes))

	var wg sync.WaitGroup
	for i := 0; i < e.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for code := range jobs {
				snapshots, attempts, err := e.fetchWithRetry(ctx, code)
				results <- fetchResult{highwayCode: code, snapshots: snapshots, attempts: attempts, err: err}
			}
		}()
	}

	for _, code := range highwayCodes {
		jobs <- code
	}
	close(jobs)
	wg.Wait()
	close(results)

	collected := make([]fetchResult, 0, len(highwayCodes))
	for res := range results {
		collected = append(collected, res)
	}
	return collected
}

func (e *Engine) fetchWithRetry(ctx context.Context, highwayCode string) ([]cctv.CameraSnapshot, int, error) {
	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, attempt - 1, ctx.Err()
		}
		snapshots, err := e.fetcher.FetchCatalog(ctx, highwayCode)
		if err == nil {
			return snapshots, attempt, nil
		}
		lastErr = err
		e.logger.Warn("catalog fetch attempt failed",
			zap.String("highway", highwayCode),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt < e.cfg.MaxAttempts {
			if err := e.backoff(ctx, attempt); err != nil {
				return nil, attempt, err
			}
		}
	}
	return nil, e.cfg.MaxAttempts, lastErr
}

// archiveAll runs the snapshot list through a bounded worker pool. Per-key
// serialization comes from the idempotent dedupe probe, not a lock.
func (e *Engine) archiveAll(ctx context.Context, snapshots []cctv.CameraSnapshot) map[string]cctv.CameraOutcome {
	jobs := make(chan cctv.CameraSnapshot)
	var (
		mu       sync.Mutex
		outcomes = make(map[string]cctv.CameraOutcome, len(snapshots))
		wg       sync.WaitGroup
	)

	for i := 0; i < e.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for snap := range jobs {
				outcome := e.archiveSnapshot(ctx, snap)
				mu.Lock()
				outcomes[snap.CameraID] = outcome
				mu.Unlock()
			}
		}()
	}

	for _, snap := range snapshots {
		jobs <- snap
	}
	close(jobs)
	wg.Wait()
	return outcomes
}

// archiveSnapshot drives one camera through the fetch status machine,
// retrying transient store failures up to MaxAttempts.
func (e *Engine) archiveSnapshot(ctx context.Context, snap cctv.CameraSnapshot) cctv.CameraOutcome {
	outcome := cctv.CameraOutcome{Status: cctv.FetchPending}
	logger := e.logger.With(
		zap.String("camera", snap.CameraID),
		zap.String("highway", snap.HighwayCode))

	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			outcome.Status = cctv.FetchFailed
			outcome.Error = ctx.Err().Error()
			return outcome
		}

		outcome.Status = cctv.FetchAttempting
		outcome.Attempts = attempt
		start := time.Now()

		err := e.archiveOnce(ctx, snap)
		if err == nil {
			outcome.Status = cctv.FetchSucceeded
			outcome.Bytes = int64(len(snap.Image))
			logger.Info("snapshot archived",
				zap.Int("attempt", attempt),
				zap.Int64("bytes", outcome.Bytes),
				zap.Duration("elapsed", time.Since(start)))
			metrics.ObserveSnapshot(snap.HighwayCode, "succeeded", len(snap.Image))
			return outcome
		}
		if errors.Is(err, cctv.ErrDuplicateKey) {
			outcome.Status = cctv.FetchSucceeded
			outcome.Duplicate = true
			logger.Debug("snapshot already archived", zap.Int("attempt", attempt))
			metrics.ObserveSnapshot(snap.HighwayCode, "duplicate", 0)
			return outcome
		}

		outcome.Status = cctv.FetchRetrying
		outcome.Error = err.Error()
		logger.Warn("snapshot archive attempt failed",
			zap.Int("attempt", attempt),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		if attempt < e.cfg.MaxAttempts {
			if backoffErr := e.backoff(ctx, attempt); backoffErr != nil {
				outcome.Status = cctv.FetchFailed
				outcome.Error = backoffErr.Error()
				metrics.ObserveSnapshot(snap.HighwayCode, "failed", 0)
				return outcome
			}
		}
	}

	outcome.Status = cctv.FetchFailed
	metrics.ObserveSnapshot(snap.HighwayCode, "failed", 0)
	return outcome
}

// archiveOnce performs the success path for one snapshot: dedupe probe,
// image byte write, then metadata upserts. The byte write lands before
// any metadata so a failure can only orphan a file, never dangle a row.
// No cancellation check happens between the write and the upserts.
func (e *Engine) archiveOnce(ctx context.Context, snap cctv.CameraSnapshot) error {
	if len(snap.Image) == 0 {
		return fmt.Errorf("empty image payload for camera %s", snap.CameraID)
	}

	filename := storagekey.Filename(snap.HighwayCode, snap.CameraID, snap.ObservedAt)

	exists, err := e.store.HasImage(ctx, filename)
	if err != nil {
		return fmt.Errorf("dedupe probe: %w", err)
	}
	if exists {
		return cctv.ErrDuplicateKey
	}

	if err := e.images.Put(ctx, filename, snap.Image); err != nil {
		return fmt.Errorf("write image bytes: %w", err)
	}

	highway, ok := e.highways[snap.HighwayCode]
	if !ok {
		highway = cctv.Highway{Code: snap.HighwayCode, Name: snap.HighwayCode}
	}
	if err := e.store.UpsertHighway(ctx, highway); err != nil {
		return fmt.Errorf("upsert highway: %w", err)
	}
	if err := e.store.UpsertCamera(ctx, cctv.Camera{
		CameraID:    snap.CameraID,
		Name:        snap.Name,
		LocationID:  snap.CameraID,
		HighwayCode: snap.HighwayCode,
	}); err != nil {
		return fmt.Errorf("upsert camera: %w", err)
	}

	rec := cctv.ImageRecord{
		CameraID:    snap.CameraID,
		ImagePath:   filename,
		CaptureTime: snap.ObservedAt,
		FileSize:    int64(len(snap.Image)),
	}
	if err := e.store.RecordImage(ctx, rec); err != nil {
		// Duplicate here means another worker archived the same key first.
		if errors.Is(err, cctv.ErrDuplicateKey) {
			return cctv.ErrDuplicateKey
		}
		return fmt.Errorf("record image: %w", err)
	}

	if err := e.publisher.Publish(ctx, cctv.CaptureEvent{
		ID:          uuid.NewString(),
		CameraID:    snap.CameraID,
		HighwayCode: snap.HighwayCode,
		ImagePath:   filename,
		CaptureTime: snap.ObservedAt,
		FileSize:    rec.FileSize,
	}); err != nil {
		// Event loss is tolerable; the archive itself succeeded.
		e.logger.Warn("publish capture event failed",
			zap.String("camera", snap.CameraID), zap.Error(err))
	}
	return nil
}

// backoff sleeps for the attempt's exponential delay, honoring
// cancellation.
func (e *Engine) backoff(ctx context.Context, attempt int) error {
	delay := e.cfg.BackoffBase << (attempt - 1)
	if delay > e.cfg.BackoffMax {
		delay = e.cfg.BackoffMax
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}
