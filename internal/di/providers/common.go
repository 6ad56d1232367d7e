package providers

import "time"

const (
	// shutdownTimeout is the maximum time to wait for graceful shutdown of services.
	shutdownTimeout = 30 * time.Second

	// sentryFlushTimeout bounds how long buffered events are sent on exit.
	sentryFlushTimeout = 2 * time.Second

	// jobTimeout bounds a single scheduled job run.
	jobTimeout = 10 * time.Minute

	compactionSchedule = "@every 1h"
)
