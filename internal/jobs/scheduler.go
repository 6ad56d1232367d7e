// Package jobs runs periodic maintenance on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is a unit of scheduled work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Recorder receives the outcome of each run. *metrics.Metrics implements it.
type Recorder interface {
	RecordJob(job string, duration time.Duration, success bool)
}

// Scheduler runs jobs on cron specs. Runs of the same job never overlap.
type Scheduler struct {
	cron     *cron.Cron
	logger   *slog.Logger
	recorder Recorder
	timeout  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a stopped scheduler. Each run gets timeout to finish.
func NewScheduler(logger *slog.Logger, recorder Recorder, timeout time.Duration) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cl := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:   logger,
		recorder: recorder,
		timeout:  timeout,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Add registers job under a standard cron spec or descriptor such as "@daily".
func (s *Scheduler) Add(spec string, job Job) error {
	if _, err := s.cron.AddFunc(spec, func() { s.RunNow(job) }); err != nil {
		return fmt.Errorf("schedule %s (%q): %w", job.Name(), spec, err)
	}
	s.logger.Info("job scheduled", "job", job.Name(), "spec", spec)
	return nil
}

// RunNow executes job synchronously with the scheduler's timeout.
func (s *Scheduler) RunNow(job Job) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := job.Run(ctx)
	elapsed := time.Since(start)

	if s.recorder != nil {
		s.recorder.RecordJob(job.Name(), elapsed, err == nil)
	}
	if err != nil {
		s.logger.Error("job failed", "job", job.Name(), "duration", elapsed, "error", err)
		return
	}
	s.logger.Debug("job finished", "job", job.Name(), "duration", elapsed)
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Shutdown cancels running jobs and waits for them to return.
func (s *Scheduler) Shutdown() error {
	s.cancel()
	<-s.cron.Stop().Done()
	return nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
