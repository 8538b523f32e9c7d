package connectivity

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/vietddude/shield/internal/core/domain"
)

type fakeProber struct {
	rtt   time.Duration
	err   error
	calls int
}

func (p *fakeProber) Name() string { return "fake" }

func (p *fakeProber) Probe(ctx context.Context) (time.Duration, error) {
	p.calls++
	return p.rtt, p.err
}

func online(v bool) InterfaceChecker {
	return InterfaceCheckerFunc(func() bool { return v })
}

func TestQualityFromLatency(t *testing.T) {
	tests := []struct {
		rtt    time.Duration
		expect domain.ConnectionQuality
	}{
		{50 * time.Millisecond, domain.QualityExcellent},
		{150 * time.Millisecond, domain.QualityExcellent}, // boundary goes to the better bucket
		{151 * time.Millisecond, domain.QualityGood},
		{500 * time.Millisecond, domain.QualityGood},
		{501 * time.Millisecond, domain.QualityPoor},
		{2000 * time.Millisecond, domain.QualityPoor},
		{2001 * time.Millisecond, domain.QualityOffline},
	}

	for _, tt := range tests {
		if got := domain.QualityFromLatency(tt.rtt); got != tt.expect {
			t.Errorf("QualityFromLatency(%v) = %v, want %v", tt.rtt, got, tt.expect)
		}
	}
}

func TestCheckConnectivityOfflineShortCircuit(t *testing.T) {
	prober := &fakeProber{rtt: 10 * time.Millisecond}
	m := NewMonitor(DefaultConfig, prober, online(false), nil)

	st := m.CheckConnectivity(context.Background())

	if st.IsOnline {
		t.Error("expected IsOnline=false")
	}
	if st.IsServiceConnected {
		t.Error("expected IsServiceConnected=false")
	}
	if st.Quality != domain.QualityOffline {
		t.Errorf("expected offline quality, got %v", st.Quality)
	}
	if prober.calls != 0 {
		t.Errorf("expected no probe when interface is down, got %d calls", prober.calls)
	}
}

func TestCheckConnectivitySuccess(t *testing.T) {
	prober := &fakeProber{rtt: 40 * time.Millisecond}
	m := NewMonitor(DefaultConfig, prober, online(true), nil)

	st := m.CheckConnectivity(context.Background())

	if !st.IsOnline || !st.IsServiceConnected {
		t.Errorf("expected connected state, got %+v", st)
	}
	if st.Quality != domain.QualityExcellent {
		t.Errorf("expected excellent quality, got %v", st.Quality)
	}
	if st.LatencyMs == nil || *st.LatencyMs != 40 {
		t.Errorf("expected latency 40ms, got %v", st.LatencyMs)
	}
	if st.LastConnectedAt.IsZero() {
		t.Error("expected LastConnectedAt to be set")
	}
}

func TestCheckConnectivityProbeFailure(t *testing.T) {
	prober := &fakeProber{err: domain.Errorf(domain.ErrKindNetwork, "connection refused")}
	m := NewMonitor(DefaultConfig, prober, online(true), nil)

	st := m.CheckConnectivity(context.Background())

	if !st.IsOnline {
		t.Error("interface is up, expected IsOnline=true")
	}
	if st.IsServiceConnected {
		t.Error("expected IsServiceConnected=false")
	}
	if st.Quality != domain.QualityOffline {
		t.Errorf("expected offline quality, got %v", st.Quality)
	}
	if st.LatencyMs != nil {
		t.Error("expected no latency on failed probe")
	}
}

func TestStateIdempotent(t *testing.T) {
	prober := &fakeProber{rtt: 20 * time.Millisecond}
	m := NewMonitor(DefaultConfig, prober, online(true), nil)
	m.CheckConnectivity(context.Background())

	a := m.State()
	b := m.State()

	if !reflect.DeepEqual(a, b) {
		t.Errorf("State() not idempotent: %+v vs %+v", a, b)
	}
	if a.LatencyMs == b.LatencyMs {
		t.Error("snapshots should not alias the same LatencyMs pointer")
	}
}

func TestSubscribeImmediateAndTransitions(t *testing.T) {
	prober := &fakeProber{rtt: 20 * time.Millisecond}
	m := NewMonitor(DefaultConfig, prober, online(true), nil)

	var got []domain.ConnectivityState
	unsub := m.Subscribe(func(st domain.ConnectivityState) {
		got = append(got, st)
	})

	if len(got) != 1 {
		t.Fatalf("expected immediate invocation, got %d calls", len(got))
	}

	m.CheckConnectivity(context.Background()) // offline -> excellent transition
	if len(got) != 2 {
		t.Fatalf("expected transition delivery, got %d calls", len(got))
	}
	if !got[1].IsServiceConnected {
		t.Error("expected connected state in transition")
	}

	// Same quality again: no transition, no delivery.
	m.CheckConnectivity(context.Background())
	if len(got) != 2 {
		t.Errorf("expected no delivery without transition, got %d calls", len(got))
	}

	unsub()
	prober.err = errors.New("down")
	m.CheckConnectivity(context.Background())
	if len(got) != 2 {
		t.Errorf("expected no delivery after unsubscribe, got %d calls", len(got))
	}
}

func TestSubscribeListenerIsolationAndOrder(t *testing.T) {
	prober := &fakeProber{rtt: 20 * time.Millisecond}
	m := NewMonitor(DefaultConfig, prober, online(true), nil)

	var order []string
	m.Subscribe(func(st domain.ConnectivityState) {
		order = append(order, "panicky")
		panic("listener bug")
	})
	m.Subscribe(func(st domain.ConnectivityState) {
		order = append(order, "second")
	})

	order = order[:0]
	m.CheckConnectivity(context.Background())

	if len(order) != 2 || order[0] != "panicky" || order[1] != "second" {
		t.Errorf("expected delivery in registration order despite panic, got %v", order)
	}
}

func TestSubscribeWaitsForInFlightBroadcast(t *testing.T) {
	prober := &fakeProber{rtt: 20 * time.Millisecond}
	m := NewMonitor(DefaultConfig, prober, online(true), nil)

	immediate := true
	entered := make(chan struct{})
	release := make(chan struct{})
	m.Subscribe(func(st domain.ConnectivityState) {
		if immediate {
			immediate = false
			return
		}
		entered <- struct{}{}
		<-release
	})

	// Transition offline -> connected; the broadcast parks in the listener.
	go m.CheckConnectivity(context.Background())
	<-entered

	delivered := make(chan domain.ConnectivityState, 1)
	go func() {
		m.Subscribe(func(st domain.ConnectivityState) {
			select {
			case delivered <- st:
			default:
			}
		})
	}()

	select {
	case <-delivered:
		t.Fatal("initial delivery ran while a broadcast was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)

	select {
	case st := <-delivered:
		if !st.IsServiceConnected {
			t.Errorf("initial snapshot = %+v, want the post-transition state", st)
		}
	case <-time.After(time.Second):
		t.Fatal("initial delivery never arrived after the broadcast finished")
	}
}

func TestReconnectionIdempotentStartStop(t *testing.T) {
	prober := &fakeProber{err: errors.New("down")}
	cfg := DefaultConfig
	cfg.BaseDelay = 5 * time.Millisecond
	cfg.MaxDelay = 10 * time.Millisecond
	m := NewMonitor(cfg, prober, online(true), nil)

	m.StartReconnection()
	m.StartReconnection() // no-op

	time.Sleep(50 * time.Millisecond)

	if m.State().ReconnectAttempts == 0 {
		t.Error("expected reconnect attempts to accumulate while down")
	}

	m.StopReconnection()
	m.StopReconnection() // no-op
}

func TestBackoffDelayCapped(t *testing.T) {
	cfg := DefaultConfig
	cfg.BaseDelay = 1 * time.Second
	cfg.MaxDelay = 8 * time.Second
	cfg.Multiplier = 2.0
	m := NewMonitor(cfg, &fakeProber{}, online(true), nil)

	// attempt 10 would be 1024s uncapped; jitter adds at most 25%.
	d := m.backoffDelay(10)
	if d < 8*time.Second || d > 10*time.Second {
		t.Errorf("expected capped delay in [8s,10s], got %v", d)
	}
}

func TestGenerateConnectionError(t *testing.T) {
	tests := []struct {
		err    error
		expect ConnectionErrorKind
	}{
		{domain.Errorf(domain.ErrKindTimeout, "deadline"), ConnErrTimeout},
		{domain.Errorf(domain.ErrKindNetwork, "refused"), ConnErrNetwork},
		{domain.Errorf(domain.ErrKindServiceUnavailable, "503"), ConnErrService},
		{errors.New("weird"), ConnErrUnknown},
		{nil, ConnErrUnknown},
	}

	for _, tt := range tests {
		got := GenerateConnectionError(tt.err)
		if got.Kind != tt.expect {
			t.Errorf("GenerateConnectionError(%v).Kind = %v, want %v", tt.err, got.Kind, tt.expect)
		}
		if !got.CanRetry {
			t.Errorf("GenerateConnectionError(%v).CanRetry = false", tt.err)
		}
		if len(got.TroubleshootingSteps) == 0 {
			t.Errorf("GenerateConnectionError(%v) has no troubleshooting steps", tt.err)
		}
	}
}
