package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/warden/pkg/evidence"
	limitstorage "mercator-hq/warden/pkg/limits/storage"
)

// Config contains configuration for the retention pruner.
type Config struct {
	// RetentionDays is the number of days to retain decisions and resolved
	// escalations. 0 keeps them forever.
	RetentionDays int

	// CounterRetention is how long rate limit counters are kept after their
	// last update. 0 disables counter cleanup.
	CounterRetention time.Duration

	// PruneSchedule is a cron expression for scheduling pruning.
	// Example: "0 3 * * *" (daily at 3 AM)
	PruneSchedule string
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() *Config {
	return &Config{
		RetentionDays:    90,
		CounterRetention: 24 * time.Hour,
		PruneSchedule:    "0 3 * * *",
	}
}

// Result summarizes one pruning pass.
type Result struct {
	Records  int64
	Counters int
}

// Pruner enforces retention on decision records and rate limit counters.
type Pruner struct {
	storage   evidence.Storage
	counters  limitstorage.CounterStore
	config    *Config
	logger    *slog.Logger
	scheduler *Scheduler
	now       func() time.Time
}

// NewPruner creates a new retention pruner. counters may be nil.
func NewPruner(storage evidence.Storage, counters limitstorage.CounterStore, config *Config) *Pruner {
	if config == nil {
		config = DefaultConfig()
	}

	pruner := &Pruner{
		storage:  storage,
		counters: counters,
		config:   config,
		logger:   slog.Default().With("component", "evidence.retention"),
		now:      time.Now,
	}
	pruner.scheduler = NewScheduler(pruner)

	return pruner
}

// Prune deletes decisions older than the retention period, then counters
// idle longer than CounterRetention. Pending escalations are never
// deleted.
func (p *Pruner) Prune(ctx context.Context) (Result, error) {
	var res Result
	now := p.now()

	if p.config.RetentionDays > 0 {
		cutoff := now.AddDate(0, 0, -p.config.RetentionDays)
		deleted, err := p.storage.DeleteBefore(ctx, cutoff)
		if err != nil {
			return res, evidence.NewRetentionError(p.config.RetentionDays, err)
		}
		res.Records = deleted
		p.logger.Info("pruned decision records",
			"deleted_count", deleted,
			"retention_days", p.config.RetentionDays,
			"cutoff_time", cutoff,
		)
	}

	if p.counters != nil && p.config.CounterRetention > 0 {
		cutoff := now.Add(-p.config.CounterRetention)
		deleted, err := p.counters.Cleanup(ctx, cutoff)
		if err != nil {
			return res, fmt.Errorf("counter cleanup failed: %w", err)
		}
		res.Counters = deleted
		p.logger.Info("pruned rate limit counters",
			"deleted_count", deleted,
			"cutoff_time", cutoff,
		)
	}

	if res.Records == 0 && res.Counters == 0 {
		p.logger.Debug("nothing pruned",
			"retention_days", p.config.RetentionDays,
			"counter_retention", p.config.CounterRetention,
		)
	}

	return res, nil
}

// Start starts the automatic pruning scheduler.
func (p *Pruner) Start(ctx context.Context) error {
	return p.scheduler.Start(ctx)
}

// Stop stops the automatic pruning scheduler.
func (p *Pruner) Stop() {
	p.scheduler.Stop()
}

// NextPruning returns the time of the next scheduled pruning.
func (p *Pruner) NextPruning() *time.Time {
	return p.scheduler.NextRun()
}
