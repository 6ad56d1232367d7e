package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// HistoryPruner deletes access history recorded before a cutoff.
type HistoryPruner interface {
	PruneAccessHistory(ctx context.Context, before time.Time) (int, error)
}

// PruneCounter receives the number of deleted entries.
type PruneCounter interface {
	AddHistoryPruned(n int)
}

// RetentionJob keeps access history to a fixed age.
type RetentionJob struct {
	pruner    HistoryPruner
	retention time.Duration
	counter   PruneCounter
	logger    *slog.Logger
	now       func() time.Time
}

// NewRetentionJob creates a job deleting history older than retention.
func NewRetentionJob(pruner HistoryPruner, retention time.Duration, counter PruneCounter, logger *slog.Logger) *RetentionJob {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RetentionJob{
		pruner:    pruner,
		retention: retention,
		counter:   counter,
		logger:    logger,
		now:       time.Now,
	}
}

// Name implements Job.
func (j *RetentionJob) Name() string { return "history-retention" }

// Run implements Job.
func (j *RetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().Add(-j.retention)
	pruned, err := j.pruner.PruneAccessHistory(ctx, cutoff)
	if j.counter != nil {
		j.counter.AddHistoryPruned(pruned)
	}
	if err != nil {
		return fmt.Errorf("prune access history: %w", err)
	}
	if pruned > 0 {
		j.logger.Info("access history pruned", "entries", pruned, "before", cutoff.Format(time.RFC3339))
	}
	return nil
}
