package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs a Pruner on its cron schedule. Schedules are evaluated in
// UTC so every replica prunes at the same instant, and a pass still running
// when the next one fires causes that firing to be skipped.
type Scheduler struct {
	pruner *Pruner
	cron   *cron.Cron
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	entry   cron.EntryID
	last    LastRun
}

// LastRun describes the most recent scheduled pass.
type LastRun struct {
	At     time.Time
	Result Result
	Err    error
}

// NewScheduler creates a scheduler for pruner.
func NewScheduler(pruner *Pruner) *Scheduler {
	return &Scheduler{
		pruner: pruner,
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		logger: slog.Default().With("component", "evidence.retention"),
	}
}

// Start schedules pruning using the pruner's PruneSchedule, a standard
// five-field cron expression. An empty schedule leaves the scheduler idle.
// The scheduler stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	spec := s.pruner.config.PruneSchedule
	if spec == "" {
		s.logger.Info("retention schedule empty, pruning disabled")
		return nil
	}

	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", spec, err)
	}
	s.entry = s.cron.Schedule(schedule, cron.FuncJob(func() { s.runPruning(ctx) }))
	s.cron.Start()
	s.running = true

	s.logger.Info("retention scheduler started",
		"schedule", spec,
		"retention_days", s.pruner.config.RetentionDays,
		"counter_retention", s.pruner.config.CounterRetention,
		"next", schedule.Next(time.Now().UTC()),
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Scheduler) runPruning(ctx context.Context) {
	start := time.Now()
	res, err := s.pruner.Prune(ctx)

	s.mu.Lock()
	s.last = LastRun{At: start, Result: res, Err: err}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("scheduled pruning failed", "error", err)
		return
	}
	s.logger.Info("scheduled pruning completed",
		"decisions_deleted", res.Records,
		"counters_deleted", res.Counters,
		"duration", time.Since(start),
	)
}

// Stop halts the schedule and waits for an in-flight pass.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cron.Remove(s.entry)
	s.mu.Unlock()

	// runPruning takes mu, so wait outside it.
	<-s.cron.Stop().Done()
	s.logger.Info("retention scheduler stopped")
}

// IsRunning reports whether a schedule is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled pass, or nil when idle.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	next := s.cron.Entry(s.entry).Next
	if next.IsZero() {
		return nil
	}
	return &next
}

// Last returns the most recent scheduled pass. At is zero before the first.
func (s *Scheduler) Last() LastRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
