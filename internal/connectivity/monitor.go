// Package connectivity tracks online/offline state and service reachability.
//
// This package contains:
//   - Monitor: state machine with subscriber fan-out and probe orchestration
//   - Prober: HTTP and gRPC health-check implementations
//   - Reconnection loop with exponential backoff and jitter
//   - Connection error classification with troubleshooting guidance
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/shield/internal/core/domain"
	"github.com/vietddude/shield/internal/metrics"
)

// Listener receives connectivity state snapshots.
type Listener func(domain.ConnectivityState)

// Config holds monitor tuning knobs.
type Config struct {
	ProbeTimeout  time.Duration `yaml:"probe_timeout"`
	ProbeInterval time.Duration `yaml:"probe_interval"`
	BaseDelay     time.Duration `yaml:"base_delay"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	Multiplier    float64       `yaml:"multiplier"`
}

// DefaultConfig provides sensible defaults.
var DefaultConfig = Config{
	ProbeTimeout:  5 * time.Second,
	ProbeInterval: 30 * time.Second,
	BaseDelay:     1 * time.Second,
	MaxDelay:      60 * time.Second,
	Multiplier:    2.0,
}

type listenerEntry struct {
	id int
	fn Listener
}

// Monitor tracks connectivity state and publishes transitions to subscribers.
type Monitor struct {
	cfg    Config
	prober Prober
	iface  InterfaceChecker
	log    *slog.Logger

	mu          sync.RWMutex
	state       domain.ConnectivityState
	listeners   []listenerEntry
	nextID      int
	probeActive bool

	// deliverMu serializes all listener deliveries so the initial
	// Subscribe invocation always precedes any transition broadcast the
	// listener receives.
	deliverMu sync.Mutex

	reconnectMu   sync.Mutex
	reconnectStop chan struct{}
	reconnectDone chan struct{}
}

// NewMonitor creates a monitor around a prober. A nil checker falls back to
// inspecting OS network interfaces.
func NewMonitor(cfg Config, prober Prober, checker InterfaceChecker, log *slog.Logger) *Monitor {
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultConfig.ProbeTimeout
	}
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = DefaultConfig.ProbeInterval
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultConfig.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultConfig.MaxDelay
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = DefaultConfig.Multiplier
	}
	if checker == nil {
		checker = SystemInterfaceChecker{}
	}
	if log == nil {
		log = slog.Default()
	}

	return &Monitor{
		cfg:    cfg,
		prober: prober,
		iface:  checker,
		log:    log,
		state: domain.ConnectivityState{
			IsOnline: true,
			Quality:  domain.QualityOffline,
		},
	}
}

// State returns an immutable snapshot of the current connectivity state.
func (m *Monitor) State() domain.ConnectivityState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// snapshotLocked copies the state so callers never alias the live LatencyMs.
func (m *Monitor) snapshotLocked() domain.ConnectivityState {
	st := m.state
	if m.state.LatencyMs != nil {
		ms := *m.state.LatencyMs
		st.LatencyMs = &ms
	}
	return st
}

// Subscribe registers a listener. It is invoked once immediately with the
// current state, then on every transition, in registration order.
// Deliveries are serialized: the initial invocation completes before any
// transition broadcast reaches the listener. Listeners must not call
// Subscribe from inside a callback. The returned function unsubscribes.
func (m *Monitor) Subscribe(fn Listener) func() {
	m.deliverMu.Lock()
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners = append(m.listeners, listenerEntry{id: id, fn: fn})
	current := m.snapshotLocked()
	m.mu.Unlock()

	m.invoke(fn, current)
	m.deliverMu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, entry := range m.listeners {
			if entry.id == id {
				m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
				return
			}
		}
	}
}

// invoke calls a listener with panic isolation so one bad subscriber never
// blocks delivery to the rest.
func (m *Monitor) invoke(fn Listener, st domain.ConnectivityState) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Warn("Connectivity listener panicked", "panic", r)
		}
	}()
	fn(st)
}

// broadcast delivers a snapshot to every listener in registration order.
func (m *Monitor) broadcast(st domain.ConnectivityState) {
	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()

	m.mu.RLock()
	entries := make([]listenerEntry, len(m.listeners))
	copy(entries, m.listeners)
	m.mu.RUnlock()

	for _, entry := range entries {
		m.invoke(entry.fn, st)
	}
}

// CheckConnectivity probes the service and returns the resulting state.
// When the local interface flag reports offline it short-circuits without
// probing. Overlapping probes are suppressed; the overlapping caller gets
// the current snapshot. Expected failures never surface as errors.
func (m *Monitor) CheckConnectivity(ctx context.Context) domain.ConnectivityState {
	if !m.iface.Online() {
		return m.applyOffline(false)
	}

	m.mu.Lock()
	if m.probeActive {
		st := m.snapshotLocked()
		m.mu.Unlock()
		return st
	}
	m.probeActive = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.probeActive = false
		m.mu.Unlock()
	}()

	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	defer cancel()

	rtt, err := m.prober.Probe(probeCtx)
	if err != nil {
		metrics.ProbesTotal.WithLabelValues(m.prober.Name(), "failure").Inc()
		m.log.Debug("Connectivity probe failed", "prober", m.prober.Name(), "error", err)
		return m.applyOffline(true)
	}

	metrics.ProbesTotal.WithLabelValues(m.prober.Name(), "success").Inc()
	metrics.ProbeLatency.WithLabelValues(m.prober.Name()).Observe(rtt.Seconds())

	return m.applyConnected(rtt)
}

// applyConnected records a successful probe and broadcasts on transition.
func (m *Monitor) applyConnected(rtt time.Duration) domain.ConnectivityState {
	ms := rtt.Milliseconds()
	quality := domain.QualityFromLatency(rtt)

	m.mu.Lock()
	changed := !m.state.IsOnline || !m.state.IsServiceConnected || m.state.Quality != quality
	m.state.IsOnline = true
	m.state.IsServiceConnected = true
	m.state.Quality = quality
	m.state.LatencyMs = &ms
	m.state.LastConnectedAt = time.Now()
	st := m.snapshotLocked()
	m.mu.Unlock()

	metrics.ConnectionQuality.Set(qualityGaugeValue(quality))

	if changed {
		m.broadcast(st)
	}
	return st
}

// applyOffline records a failed probe (or a down interface) and broadcasts
// on transition.
func (m *Monitor) applyOffline(interfaceUp bool) domain.ConnectivityState {
	m.mu.Lock()
	changed := m.state.IsOnline != interfaceUp ||
		m.state.IsServiceConnected ||
		m.state.Quality != domain.QualityOffline
	if m.state.IsServiceConnected || m.state.LastDisconnectedAt.IsZero() {
		m.state.LastDisconnectedAt = time.Now()
	}
	m.state.IsOnline = interfaceUp
	m.state.IsServiceConnected = false
	m.state.Quality = domain.QualityOffline
	m.state.LatencyMs = nil
	st := m.snapshotLocked()
	m.mu.Unlock()

	metrics.ConnectionQuality.Set(qualityGaugeValue(domain.QualityOffline))

	if changed {
		m.broadcast(st)
	}
	return st
}

func qualityGaugeValue(q domain.ConnectionQuality) float64 {
	switch q {
	case domain.QualityExcellent:
		return 3
	case domain.QualityGood:
		return 2
	case domain.QualityPoor:
		return 1
	default:
		return 0
	}
}
