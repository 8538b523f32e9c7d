package perf

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/shield/internal/core/domain"
)

// stepClock advances manually so span durations are deterministic.
type stepClock struct {
	t time.Time
}

func (c *stepClock) Now() time.Time          { return c.t }
func (c *stepClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestMonitor(cfg Config) (*Monitor, *stepClock) {
	m := NewMonitor(cfg, nil)
	clock := &stepClock{t: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
	m.now = clock.Now
	return m, clock
}

func TestEndMeasurementRecordsDuration(t *testing.T) {
	m, clock := newTestMonitor(DefaultConfig)

	id := m.StartMeasurement("login", "auth", map[string]any{"attempt": 1}, []string{"auth"})
	clock.Advance(120 * time.Millisecond)
	m.EndMeasurement(id, map[string]any{"result": "ok"})

	summary := m.GetPerformanceSummary(time.Hour)
	if summary.MeasurementCount != 1 {
		t.Fatalf("MeasurementCount = %d, want 1", summary.MeasurementCount)
	}
	if summary.SlowestSpan == nil || summary.SlowestSpan.Duration != 120*time.Millisecond {
		t.Errorf("SlowestSpan = %+v", summary.SlowestSpan)
	}
	if summary.SlowestSpan.Metadata["result"] != "ok" {
		t.Error("extra metadata not merged into the span")
	}
}

func TestEndMeasurementUnknownIDIsNoOp(t *testing.T) {
	m, _ := newTestMonitor(DefaultConfig)

	m.EndMeasurement("nope", nil)

	if got := m.GetPerformanceSummary(time.Hour).MeasurementCount; got != 0 {
		t.Errorf("MeasurementCount = %d, want 0", got)
	}
}

func TestThresholdSeverity(t *testing.T) {
	tests := []struct {
		name       string
		category   string
		duration   time.Duration
		bottleneck bool
		severity   domain.Severity
	}{
		{"under threshold", "database", 1500 * time.Millisecond, false, ""},
		{"at threshold", "database", 2000 * time.Millisecond, false, ""},
		{"low", "database", 2500 * time.Millisecond, true, domain.SeverityLow},
		{"medium", "database", 3500 * time.Millisecond, true, domain.SeverityMedium},
		{"high", "database", 4500 * time.Millisecond, true, domain.SeverityHigh},
		{"critical", "database", 6500 * time.Millisecond, true, domain.SeverityCritical},
		{"ui threshold", "ui", 180 * time.Millisecond, true, domain.SeverityMedium},
		{"uncategorized", "misc", time.Hour, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, clock := newTestMonitor(DefaultConfig)

			id := m.StartMeasurement("op", tt.category, nil, nil)
			clock.Advance(tt.duration)
			m.EndMeasurement(id, nil)

			got := m.Bottlenecks()
			if !tt.bottleneck {
				if len(got) != 0 {
					t.Fatalf("unexpected bottleneck %+v", got)
				}
				return
			}
			if len(got) != 1 {
				t.Fatalf("got %d bottlenecks, want 1", len(got))
			}
			if got[0].Severity != tt.severity {
				t.Errorf("Severity = %v, want %v", got[0].Severity, tt.severity)
			}
			if got[0].Type != "slow_"+tt.category {
				t.Errorf("Type = %q", got[0].Type)
			}
		})
	}
}

func TestMeasureFunctionRecordsError(t *testing.T) {
	m, _ := newTestMonitor(DefaultConfig)

	wantErr := errors.New("boom")
	_, err := m.MeasureFunction(context.Background(), "op", "database",
		func(ctx context.Context) (any, error) { return nil, wantErr }, nil)

	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want boom", err)
	}

	summary := m.GetPerformanceSummary(time.Hour)
	if summary.MeasurementCount != 1 {
		t.Fatalf("MeasurementCount = %d, want 1", summary.MeasurementCount)
	}
	if summary.SlowestSpan.Metadata["error"] != "boom" {
		t.Errorf("span metadata = %v, want recorded error", summary.SlowestSpan.Metadata)
	}
}

func TestMeasureFunctionFinalizesOnPanic(t *testing.T) {
	m, _ := newTestMonitor(DefaultConfig)

	func() {
		defer func() {
			if recover() == nil {
				t.Error("panic must propagate")
			}
		}()
		m.MeasureFunction(context.Background(), "op", "ui",
			func(ctx context.Context) (any, error) { panic("kaboom") }, nil)
	}()

	summary := m.GetPerformanceSummary(time.Hour)
	if summary.MeasurementCount != 1 {
		t.Fatalf("MeasurementCount = %d, want span finalized despite panic", summary.MeasurementCount)
	}
	if summary.SlowestSpan.Metadata["panic"] != "kaboom" {
		t.Errorf("span metadata = %v, want recorded panic", summary.SlowestSpan.Metadata)
	}
}

func TestLogStoreError(t *testing.T) {
	m, _ := newTestMonitor(DefaultConfig)

	m.LogStoreError(
		"SELECT * FROM users WHERE password='hunter2'",
		errors.New("connection reset"),
		QueryContext{Operation: "select_users", Table: "users", Duration: 5 * time.Second},
	)

	summary := m.GetPerformanceSummary(time.Hour)
	if summary.ErrorRate != 1 {
		t.Errorf("ErrorRate = %v, want 1 with errors and no measurements", summary.ErrorRate)
	}

	// 5s against the 2s database threshold is a 2.5x high-severity bottleneck.
	got := m.Bottlenecks()
	if len(got) != 1 || got[0].Severity != domain.SeverityHigh {
		t.Errorf("bottlenecks = %+v, want one high", got)
	}
}

func TestErrorRateAgainstMeasurements(t *testing.T) {
	m, clock := newTestMonitor(DefaultConfig)

	for i := 0; i < 4; i++ {
		id := m.StartMeasurement("op", "database", nil, nil)
		clock.Advance(10 * time.Millisecond)
		m.EndMeasurement(id, nil)
	}
	m.LogStoreError("SELECT 1", errors.New("timeout"), QueryContext{Operation: "select"})

	summary := m.GetPerformanceSummary(time.Hour)
	if summary.ErrorRate != 0.25 {
		t.Errorf("ErrorRate = %v, want 0.25", summary.ErrorRate)
	}
}

func TestSummaryWindowExcludesOldSpans(t *testing.T) {
	m, clock := newTestMonitor(DefaultConfig)

	id := m.StartMeasurement("old", "database", nil, nil)
	clock.Advance(10 * time.Millisecond)
	m.EndMeasurement(id, nil)

	clock.Advance(2 * time.Hour)

	id = m.StartMeasurement("recent", "database", nil, nil)
	clock.Advance(20 * time.Millisecond)
	m.EndMeasurement(id, nil)

	summary := m.GetPerformanceSummary(time.Hour)
	if summary.MeasurementCount != 1 {
		t.Fatalf("MeasurementCount = %d, want only the recent span", summary.MeasurementCount)
	}
	if summary.SlowestSpan.Name != "recent" {
		t.Errorf("SlowestSpan = %q, want recent", summary.SlowestSpan.Name)
	}
}

func TestMaxEntriesCapOnInsert(t *testing.T) {
	cfg := DefaultConfig
	cfg.MaxEntries = 3
	m, clock := newTestMonitor(cfg)

	for i := 0; i < 5; i++ {
		id := m.StartMeasurement("op", "database", nil, nil)
		clock.Advance(time.Millisecond)
		m.EndMeasurement(id, nil)
	}

	if got := m.GetPerformanceSummary(time.Hour).MeasurementCount; got != 3 {
		t.Errorf("MeasurementCount = %d, want capped at 3", got)
	}
}

func TestPurgeAged(t *testing.T) {
	m, clock := newTestMonitor(DefaultConfig)

	id := m.StartMeasurement("stale", "database", nil, nil)
	clock.Advance(10 * time.Millisecond)
	m.EndMeasurement(id, nil)
	m.LogStoreError("SELECT 1", errors.New("old failure"), QueryContext{})

	clock.Advance(25 * time.Hour)
	m.purgeAged()

	summary := m.GetPerformanceSummary(48 * time.Hour)
	if summary.MeasurementCount != 0 {
		t.Errorf("MeasurementCount = %d, want aged spans purged", summary.MeasurementCount)
	}
	if summary.ErrorRate != 0 {
		t.Errorf("ErrorRate = %v, want aged errors purged", summary.ErrorRate)
	}
}

func TestJanitorStartStopIdempotent(t *testing.T) {
	cfg := DefaultConfig
	cfg.PurgeInterval = time.Millisecond
	m := NewMonitor(cfg, nil)

	m.StartJanitor()
	m.StartJanitor()
	time.Sleep(5 * time.Millisecond)
	m.StopJanitor()
	m.StopJanitor()
}
