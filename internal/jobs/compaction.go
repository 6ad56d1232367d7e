package jobs

import "context"

// Compactor is implemented by stores that reclaim disk space on demand.
type Compactor interface {
	RunGC()
}

// CompactionJob runs value-log garbage collection on an embedded store.
type CompactionJob struct {
	store Compactor
}

// NewCompactionJob creates a compaction job for the given store.
func NewCompactionJob(store Compactor) *CompactionJob {
	return &CompactionJob{store: store}
}

// Name implements Job.
func (j *CompactionJob) Name() string { return "store-compaction" }

// Run implements Job.
func (j *CompactionJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	j.store.RunGC()
	return nil
}
