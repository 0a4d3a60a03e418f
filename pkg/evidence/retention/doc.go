// Package retention prunes decision records and rate limit counters.
//
// The pruner deletes decisions and resolved escalations older than
// RetentionDays through evidence.Storage.DeleteBefore, then asks the
// counter store to drop windows idle for longer than CounterRetention.
// Pending escalations are kept regardless of age.
//
//	pruner := retention.NewPruner(store, counters, &retention.Config{
//	    RetentionDays:    90,
//	    CounterRetention: 24 * time.Hour,
//	    PruneSchedule:    "0 3 * * *", // daily at 3 AM
//	})
//	if err := pruner.Start(ctx); err != nil {
//	    return err
//	}
//	defer pruner.Stop()
//
// The schedule uses standard five-field cron syntax (robfig/cron). An empty
// schedule disables automatic pruning; Prune can still be called directly.
package retention
