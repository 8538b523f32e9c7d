// Package health provides system health monitoring and status reporting.
package health

import (
	"sync"
	"time"

	"github.com/vietddude/shield/internal/core/domain"
	"github.com/vietddude/shield/internal/perf"
	"github.com/vietddude/shield/internal/recovery"
)

// SystemStatus represents the overall health state of the system.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// Report contains the full resilience-layer health report.
type Report struct {
	SystemStatus        SystemStatus             `json:"system_status"`
	Connectivity        domain.ConnectivityState `json:"connectivity"`
	InFlightOperations  int                      `json:"in_flight_operations"`
	FallbackRegistered  bool                     `json:"fallback_registered"`
	DegradationHandlers int                      `json:"degradation_handlers"`
	CriticalBottlenecks int                      `json:"critical_bottlenecks"`
	ErrorRate           float64                  `json:"error_rate"`
}

// ConnectivitySource exposes connectivity state for the report.
type ConnectivitySource interface {
	State() domain.ConnectivityState
}

// Monitor aggregates health status from the resilience components.
type Monitor struct {
	connectivity ConnectivitySource
	engine       *recovery.Engine
	perfMon      *perf.Monitor
	window       time.Duration

	mu         sync.RWMutex
	lastCheck  time.Time
	lastReport Report
}

// NewMonitor creates a health monitor over the given components.
func NewMonitor(
	connectivity ConnectivitySource,
	engine *recovery.Engine,
	perfMon *perf.Monitor,
) *Monitor {
	return &Monitor{
		connectivity: connectivity,
		engine:       engine,
		perfMon:      perfMon,
		window:       15 * time.Minute,
	}
}

// Check builds a health report. Results are cached briefly so scrapers
// cannot stampede the components.
func (m *Monitor) Check() Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	if time.Since(m.lastCheck) < 10*time.Second && !m.lastCheck.IsZero() {
		return m.lastReport
	}

	report := Report{SystemStatus: StatusHealthy}

	if m.connectivity != nil {
		report.Connectivity = m.connectivity.State()
	}
	if m.engine != nil {
		stats := m.engine.Stats()
		report.InFlightOperations = stats.InFlight
		report.FallbackRegistered = stats.FallbackRegistered
		report.DegradationHandlers = stats.DegradationHandlers
	}
	if m.perfMon != nil {
		summary := m.perfMon.GetPerformanceSummary(m.window)
		report.CriticalBottlenecks = summary.CriticalBottlenecks
		report.ErrorRate = summary.ErrorRate
	}

	switch {
	case !report.Connectivity.IsOnline,
		report.CriticalBottlenecks > 0:
		report.SystemStatus = StatusCritical
	case !report.Connectivity.IsServiceConnected,
		report.Connectivity.Quality == domain.QualityPoor,
		report.ErrorRate > 0.1:
		report.SystemStatus = StatusDegraded
	}

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}
