package api

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// Health statuses.
const (
	statusOK        = "ok"
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health check",
		Description: "Returns server health status with component checks",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)

	huma.Register(s.api, huma.Operation{
		OperationID: "serverInfo",
		Method:      http.MethodGet,
		Path:        "/api/server-info",
		Summary:     "Server info",
		Description: "Returns runtime, backend and host information",
		Tags:        []string{"Health"},
	}, s.handleServerInfo)
}

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status" doc:"Component status: healthy, degraded, or unhealthy"`
	Latency string `json:"latency,omitempty" doc:"Response time for this component"`
	Message string `json:"message,omitempty" doc:"Additional status information"`
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status     string                     `json:"status" doc:"Overall status: ok, degraded, or unhealthy"`
	Components map[string]ComponentHealth `json:"components" doc:"Individual component statuses"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

func (s *Server) handleHealthCheck(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	components := map[string]ComponentHealth{
		"database": s.checkDatabase(ctx),
		"search":   s.checkSearchIndex(),
	}

	overall := statusOK
	for name, c := range components {
		switch {
		case c.Status == statusUnhealthy && name == "database":
			overall = statusUnhealthy
		case c.Status != statusHealthy && overall == statusOK:
			overall = statusDegraded
		}
	}

	return &HealthOutput{
		Body: HealthResponse{
			Status:     overall,
			Components: components,
		},
	}, nil
}

// checkDatabase pings the configured backend.
func (s *Server) checkDatabase(ctx context.Context) ComponentHealth {
	if s.store == nil {
		return ComponentHealth{
			Status:  statusDegraded,
			Message: "database not configured",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	err := s.store.Ping(ctx)
	latency := time.Since(start)

	if err != nil {
		s.logger.Warn("health check: database ping failed", "error", err)
		return ComponentHealth{
			Status:  statusUnhealthy,
			Latency: latency.String(),
			Message: "database unreachable",
		}
	}

	return ComponentHealth{
		Status:  statusHealthy,
		Latency: latency.String(),
	}
}

// checkSearchIndex verifies the Bleve index is accessible.
// A disabled index is degraded: search still works through the store.
func (s *Server) checkSearchIndex() ComponentHealth {
	if s.services == nil || !s.services.Search.Enabled() {
		return ComponentHealth{
			Status:  statusDegraded,
			Message: "search index disabled, using store queries",
		}
	}

	start := time.Now()
	_, err := s.services.Search.DocumentCount()
	latency := time.Since(start)

	if err != nil {
		return ComponentHealth{
			Status:  statusUnhealthy,
			Latency: latency.String(),
			Message: "search index unreachable",
		}
	}

	return ComponentHealth{
		Status:  statusHealthy,
		Latency: latency.String(),
	}
}

// HostInfo describes the machine the server runs on.
type HostInfo struct {
	OS              string  `json:"os,omitempty"`
	Platform        string  `json:"platform,omitempty"`
	PlatformVersion string  `json:"platformVersion,omitempty"`
	KernelVersion   string  `json:"kernelVersion,omitempty"`
	Arch            string  `json:"arch"`
	CPUs            int     `json:"cpus"`
	MemoryTotal     uint64  `json:"memoryTotal,omitempty" doc:"Total memory in bytes"`
	MemoryUsed      float64 `json:"memoryUsedPercent,omitempty"`
	Uptime          uint64  `json:"uptime,omitempty" doc:"Host uptime in seconds"`
}

// ServerInfoResponse contains runtime information about the server.
type ServerInfoResponse struct {
	GoVersion   string    `json:"goVersion"`
	Version     string    `json:"version"`
	Environment string    `json:"environment"`
	ServerTime  time.Time `json:"serverTime"`
	Backend     string    `json:"backend"`
	Hostname    string    `json:"hostname"`
	Uptime      float64   `json:"uptime" doc:"Server process uptime in seconds"`
	Host        HostInfo  `json:"host"`
}

// ServerInfoOutput wraps the server info response for Huma.
type ServerInfoOutput struct {
	Body ServerInfoResponse
}

func (s *Server) handleServerInfo(ctx context.Context, _ *struct{}) (*ServerInfoOutput, error) {
	hostInfo := s.hostInfo(ctx)

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	return &ServerInfoOutput{
		Body: ServerInfoResponse{
			GoVersion:   runtime.Version(),
			Version:     s.opts.Version,
			Environment: s.opts.Environment,
			ServerTime:  time.Now().UTC(),
			Backend:     s.opts.Backend,
			Hostname:    hostname,
			Uptime:      time.Since(s.startedAt).Seconds(),
			Host:        hostInfo,
		},
	}, nil
}

// hostInfo gathers what gopsutil can read. Failures leave fields empty.
func (s *Server) hostInfo(ctx context.Context) HostInfo {
	info := HostInfo{
		Arch: runtime.GOARCH,
		CPUs: runtime.NumCPU(),
	}

	if h, err := host.InfoWithContext(ctx); err == nil {
		info.OS = h.OS
		info.Platform = h.Platform
		info.PlatformVersion = h.PlatformVersion
		info.KernelVersion = h.KernelVersion
		info.Uptime = h.Uptime
	} else {
		s.logger.Debug("host info unavailable", "error", err)
	}

	if n, err := cpu.CountsWithContext(ctx, true); err == nil && n > 0 {
		info.CPUs = n
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info.MemoryTotal = vm.Total
		info.MemoryUsed = vm.UsedPercent
	}

	return info
}
