// Package scheduler fires scrape cycles on a fixed interval, skipping
// ticks that arrive while a cycle is still in flight.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mhzan/cctv-archiver/internal/cctv"
	"github.com/mhzan/cctv-archiver/internal/metrics"
)

// CycleRunner is the engine surface the scheduler drives.
type CycleRunner interface {
	RunCycle(ctx context.Context, highwayCodes []string) cctv.CycleSummary
}

// State is the scheduler's lifecycle state.
type State string

// Scheduler lifecycle states.
const (
	StateStopped State = "stopped"
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// Status is the snapshot returned by the scheduler handle.
type Status struct {
	State        State              `json:"state"`
	Interval     string             `json:"interval"`
	LastRun      *time.Time         `json:"last_run,omitempty"`
	LastSummary  *cctv.CycleSummary `json:"last_summary,omitempty"`
	SkippedTicks int64              `json:"skipped_ticks"`
}

// Scheduler runs at most one cycle at a time. A tick that lands during a
// running cycle is dropped and counted, never queued.
type Scheduler struct {
	runner   CycleRunner
	interval time.Duration
	highways []string
	clock    cctv.Clock
	logger   *zap.Logger

	inFlight atomic.Bool
	skipped  atomic.Int64

	mu          sync.Mutex
	started     bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	lastRun     time.Time
	lastSummary *cctv.CycleSummary
}

// New builds a stopped Scheduler.
func New(runner CycleRunner, interval time.Duration, highways []string, clock cctv.Clock, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		highways: highways,
		clock:    clock,
		logger:   logger.Named("scheduler"),
	}
}

// Start launches the tick loop and fires an immediate first cycle.
// Starting an already started scheduler is an error.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("scheduler already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.started = true
	s.cancel = cancel

	s.wg.Add(1)
	go s.loop(runCtx)

	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))
	return nil
}

// Stop cancels the tick loop and waits for any in-flight cycle.
// Stopping a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// Status reports the current lifecycle state and last cycle result.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := StateStopped
	if s.started {
		state = StateIdle
		if s.inFlight.Load() {
			state = StateRunning
		}
	}

	status := Status{
		State:        state,
		Interval:     s.interval.String(),
		SkippedTicks: s.skipped.Load(),
	}
	if !s.lastRun.IsZero() {
		lastRun := s.lastRun
		status.LastRun = &lastRun
	}
	status.LastSummary = s.lastSummary
	return status
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	s.fire(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fire(ctx)
		}
	}
}

// fire runs one cycle unless the previous one is still in flight.
func (s *Scheduler) fire(ctx context.Context) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		metrics.ObserveCycleSkipped()
		s.logger.Warn("tick skipped, previous cycle still running",
			zap.Int64("skipped_total", s.skipped.Load()))
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.inFlight.Store(false)

		started := s.clock.Now()
		summary := s.runner.RunCycle(ctx, s.highways)

		s.mu.Lock()
		s.lastRun = started
		s.lastSummary = &summary
		s.mu.Unlock()
	}()
}
