package connectivity

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/vietddude/shield/internal/metrics"
)

// StartReconnection starts the background reconnection loop. Calling it
// while a loop is already running is a no-op.
func (m *Monitor) StartReconnection() {
	m.reconnectMu.Lock()
	defer m.reconnectMu.Unlock()

	if m.reconnectStop != nil {
		return
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	m.reconnectStop = stop
	m.reconnectDone = done

	go m.reconnectLoop(stop, done)
	m.log.Info("Reconnection loop started", "interval", m.cfg.ProbeInterval)
}

// StopReconnection stops the loop and waits for it to exit. Idempotent.
func (m *Monitor) StopReconnection() {
	m.reconnectMu.Lock()
	stop := m.reconnectStop
	done := m.reconnectDone
	m.reconnectStop = nil
	m.reconnectDone = nil
	m.reconnectMu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
	m.log.Info("Reconnection loop stopped")
}

// reconnectLoop probes on a steady interval while connected and backs off
// exponentially while the service is unreachable.
func (m *Monitor) reconnectLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		<-stop
		cancel()
	}()

	for {
		st := m.CheckConnectivity(ctx)

		var wait time.Duration
		if st.IsServiceConnected {
			m.resetAttempts()
			wait = m.cfg.ProbeInterval
		} else {
			attempt := m.bumpAttempts()
			wait = m.backoffDelay(attempt - 1)
			m.log.Debug("Reconnection attempt failed",
				"attempt", attempt,
				"next_in", wait,
			)
		}

		select {
		case <-stop:
			return
		case <-time.After(wait):
		}
	}
}

// backoffDelay computes min(maxDelay, baseDelay*multiplier^attempt) plus
// uniform jitter up to 25% of the computed delay.
func (m *Monitor) backoffDelay(attempt int) time.Duration {
	delay := float64(m.cfg.BaseDelay) * math.Pow(m.cfg.Multiplier, float64(attempt))
	if delay > float64(m.cfg.MaxDelay) {
		delay = float64(m.cfg.MaxDelay)
	}

	jitter := rand.Int63n(int64(delay)/4 + 1)
	return time.Duration(delay) + time.Duration(jitter)
}

func (m *Monitor) bumpAttempts() int {
	m.mu.Lock()
	m.state.ReconnectAttempts++
	attempts := m.state.ReconnectAttempts
	m.mu.Unlock()

	metrics.ReconnectAttempts.Set(float64(attempts))
	return attempts
}

func (m *Monitor) resetAttempts() {
	m.mu.Lock()
	changed := m.state.ReconnectAttempts != 0
	m.state.ReconnectAttempts = 0
	m.mu.Unlock()

	if changed {
		metrics.ReconnectAttempts.Set(0)
	}
}

// ResetReconnection zeroes the attempt counter and restarts the loop if it
// was running. Used by user-initiated reset actions.
func (m *Monitor) ResetReconnection() {
	m.reconnectMu.Lock()
	running := m.reconnectStop != nil
	m.reconnectMu.Unlock()

	if running {
		m.StopReconnection()
	}
	m.resetAttempts()
	if running {
		m.StartReconnection()
	}
}
