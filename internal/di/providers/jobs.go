package providers

import (
	"github.com/samber/do/v2"

	"github.com/apphub/apphub-server/internal/config"
	"github.com/apphub/apphub-server/internal/jobs"
	"github.com/apphub/apphub-server/internal/logger"
	"github.com/apphub/apphub-server/internal/metrics"
)

// SchedulerHandle wraps the job scheduler with shutdown capability.
type SchedulerHandle struct {
	*jobs.Scheduler
}

// Shutdown implements do.Shutdownable.
func (h *SchedulerHandle) Shutdown() error {
	return h.Scheduler.Shutdown()
}

// ProvideScheduler provides the background job scheduler and registers the
// access-history retention job when HISTORY_RETENTION is positive.
func ProvideScheduler(i do.Injector) (*SchedulerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	log := do.MustInvoke[*logger.Logger](i)

	jobLog := log.Component("jobs")
	scheduler := jobs.NewScheduler(jobLog, m, jobTimeout)

	if cfg.History.Retention > 0 {
		job := jobs.NewRetentionJob(storeHandle.Store, cfg.History.Retention, m, jobLog)
		if err := scheduler.Add(cfg.History.Schedule, job); err != nil {
			return nil, err
		}
	} else {
		log.Info("Access history retention disabled")
	}

	if c, ok := storeHandle.Store.(jobs.Compactor); ok {
		if err := scheduler.Add(compactionSchedule, jobs.NewCompactionJob(c)); err != nil {
			return nil, err
		}
	}

	scheduler.Start()

	return &SchedulerHandle{Scheduler: scheduler}, nil
}
