package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/apphub/apphub-server/internal/store"
)

// ConnectionService probes the configured backend for the admin self-check.
type ConnectionService struct {
	store   store.Store
	backend string
	logger  *slog.Logger
}

// NewConnectionService creates a new connection service.
func NewConnectionService(store store.Store, backend string, logger *slog.Logger) *ConnectionService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ConnectionService{
		store:   store,
		backend: backend,
		logger:  logger,
	}
}

// ProbeResult is the outcome of one probe.
type ProbeResult struct {
	OK      bool   `json:"ok"`
	Latency string `json:"latency"`
	Error   string `json:"error,omitempty"`
}

// ConnectionReport is the outcome of a connection check.
type ConnectionReport struct {
	Backend   string      `json:"backend"`
	Connected bool        `json:"connected"`
	Read      ProbeResult `json:"read"`
	Write     ProbeResult `json:"write"`
	CheckedAt time.Time   `json:"checkedAt"`
}

// connectionCheckUser owns the scratch category written by the write probe.
// Real user ids never take this form.
const connectionCheckUser = "connection-check"

// Check pings the backend and reads the app config, then creates and deletes
// a scratch category under a reserved owner. No user data is touched.
// Failures are reported in the result, not returned.
func (s *ConnectionService) Check(ctx context.Context) *ConnectionReport {
	report := &ConnectionReport{
		Backend:   s.backend,
		CheckedAt: time.Now().UTC(),
	}

	start := time.Now()
	err := s.store.Ping(ctx)
	if err == nil {
		_, err = s.store.GetAppConfig(ctx)
	}
	report.Read = probeResult(start, err)
	if err != nil {
		s.logger.Warn("connection check: read failed", "backend", s.backend, "error", err)
		report.Write = ProbeResult{Error: "skipped after read failure"}
		return report
	}

	start = time.Now()
	err = s.writeScratch(ctx)
	report.Write = probeResult(start, err)
	if err != nil {
		s.logger.Warn("connection check: write failed", "backend", s.backend, "error", err)
	}

	report.Connected = report.Read.OK && report.Write.OK
	return report
}

func (s *ConnectionService) writeScratch(ctx context.Context) error {
	cat, err := s.store.CreateCategory(ctx, connectionCheckUser, "connection check")
	if err != nil {
		return err
	}
	return s.store.DeleteCategory(ctx, connectionCheckUser, cat.ID)
}

func probeResult(start time.Time, err error) ProbeResult {
	res := ProbeResult{OK: err == nil, Latency: time.Since(start).String()}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}
