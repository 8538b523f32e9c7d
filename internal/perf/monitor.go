// Package perf provides timing spans, store-error logging, and
// threshold-based bottleneck detection. Instrumentation failures never
// propagate into the measured operation.
package perf

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/shield/internal/core/domain"
	"github.com/vietddude/shield/internal/metrics"
)

// Span is a single timing measurement. Finalized on EndMeasurement.
type Span struct {
	ID        string
	Name      string
	Category  string
	StartedAt time.Time
	EndedAt   time.Time
	Duration  time.Duration
	Metadata  map[string]any
	Tags      []string
}

// QueryContext carries what the caller knows about a failed store query.
type QueryContext struct {
	Operation string
	Table     string
	Duration  time.Duration
}

// StoreError is a recorded data-store failure with the query redacted.
type StoreError struct {
	Query     string
	Message   string
	Context   QueryContext
	Timestamp time.Time
}

// Summary aggregates activity within a trailing window.
type Summary struct {
	MeasurementCount    int
	AverageDuration     time.Duration
	SlowestSpan         *Span
	ErrorRate           float64
	CriticalBottlenecks int
}

// Config tunes retention. Both policies are active simultaneously: a
// max-count cap applied on every insert and a periodic age purge.
type Config struct {
	MaxEntries    int           `yaml:"max_entries"`
	MaxAge        time.Duration `yaml:"max_age"`
	PurgeInterval time.Duration `yaml:"purge_interval"`
}

// DefaultConfig provides sensible defaults.
var DefaultConfig = Config{
	MaxEntries:    500,
	MaxAge:        24 * time.Hour,
	PurgeInterval: 5 * time.Minute,
}

// Monitor records spans, store errors, and bottlenecks.
type Monitor struct {
	cfg Config
	log *slog.Logger
	now func() time.Time

	mu          sync.Mutex
	active      map[string]*Span
	completed   []Span
	storeErrors []StoreError
	bottlenecks []domain.Bottleneck

	janitorStop chan struct{}
	janitorDone chan struct{}
}

// NewMonitor creates a performance monitor.
func NewMonitor(cfg Config, log *slog.Logger) *Monitor {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultConfig.MaxEntries
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultConfig.MaxAge
	}
	if cfg.PurgeInterval <= 0 {
		cfg.PurgeInterval = DefaultConfig.PurgeInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Monitor{
		cfg:    cfg,
		log:    log,
		now:    time.Now,
		active: make(map[string]*Span),
	}
}

// StartMeasurement opens a span and returns its id.
func (m *Monitor) StartMeasurement(
	name, category string,
	metadata map[string]any,
	tags []string,
) string {
	span := &Span{
		ID:        uuid.NewString(),
		Name:      name,
		Category:  category,
		StartedAt: m.now(),
		Metadata:  metadata,
		Tags:      tags,
	}

	m.mu.Lock()
	m.active[span.ID] = span
	m.mu.Unlock()

	return span.ID
}

// EndMeasurement finalizes a span, evaluates the category threshold, and
// records a bottleneck when exceeded. Unknown ids are ignored.
func (m *Monitor) EndMeasurement(id string, extra map[string]any) {
	end := m.now()

	m.mu.Lock()
	span, ok := m.active[id]
	if !ok {
		m.mu.Unlock()
		m.log.Debug("EndMeasurement for unknown span", "id", id)
		return
	}
	delete(m.active, id)

	span.EndedAt = end
	span.Duration = end.Sub(span.StartedAt)
	if len(extra) > 0 {
		if span.Metadata == nil {
			span.Metadata = make(map[string]any, len(extra))
		}
		for k, v := range extra {
			span.Metadata[k] = v
		}
	}

	m.completed = append(m.completed, *span)
	m.capLocked(&m.completed)
	m.mu.Unlock()

	metrics.SpanDuration.WithLabelValues(span.Category).Observe(span.Duration.Seconds())

	m.evaluateThreshold(span.Name, span.Category, span.Duration)
}

// MeasureFunction runs fn inside a span. The span is always finalized,
// even when fn panics, before the panic is re-raised.
func (m *Monitor) MeasureFunction(
	ctx context.Context,
	name, category string,
	fn func(ctx context.Context) (any, error),
	metadata map[string]any,
) (data any, err error) {
	id := m.StartMeasurement(name, category, metadata, nil)

	defer func() {
		extra := map[string]any{}
		if r := recover(); r != nil {
			extra["panic"] = fmt.Sprint(r)
			m.EndMeasurement(id, extra)
			panic(r)
		}
		if err != nil {
			extra["error"] = err.Error()
		}
		m.EndMeasurement(id, extra)
	}()

	data, err = fn(ctx)
	return data, err
}

// LogStoreError records a data-store failure. Credential-like substrings
// are redacted from the query before storage. When the reported duration
// exceeds the database threshold a bottleneck is emitted as well.
func (m *Monitor) LogStoreError(query string, storeErr error, qctx QueryContext) {
	entry := StoreError{
		Query:     RedactQuery(query),
		Context:   qctx,
		Timestamp: m.now(),
	}
	if storeErr != nil {
		entry.Message = storeErr.Error()
	}

	m.mu.Lock()
	m.storeErrors = append(m.storeErrors, entry)
	m.capStoreErrorsLocked()
	m.mu.Unlock()

	metrics.StoreErrorsTotal.Inc()
	m.log.Warn("Store error recorded",
		"operation", qctx.Operation,
		"table", qctx.Table,
		"duration", qctx.Duration,
	)

	if qctx.Duration > 0 {
		m.evaluateThreshold(qctx.Operation, "database", qctx.Duration)
	}
}

// evaluateThreshold emits a bottleneck when duration exceeds the category
// threshold.
func (m *Monitor) evaluateThreshold(name, category string, duration time.Duration) {
	threshold := thresholdFor(category)
	if threshold <= 0 || duration <= threshold {
		return
	}

	ratio := float64(duration) / float64(threshold)
	severity := domain.SeverityFromRatio(ratio)

	b := domain.Bottleneck{
		Type:     "slow_" + category,
		Severity: severity,
		Description: fmt.Sprintf(
			"%s took %s, %.1fx the %s threshold of %s",
			name, duration, ratio, category, threshold,
		),
		Metrics: map[string]any{
			"duration_ms":  duration.Milliseconds(),
			"threshold_ms": threshold.Milliseconds(),
			"ratio":        ratio,
		},
		AffectedOperations: []string{name},
		Recommendations:    recommendationsFor(category),
		Timestamp:          m.now(),
	}

	m.mu.Lock()
	m.bottlenecks = append(m.bottlenecks, b)
	m.capBottlenecksLocked()
	m.mu.Unlock()

	metrics.BottlenecksTotal.WithLabelValues(category, string(severity)).Inc()
	m.log.Warn("Bottleneck detected",
		"operation", name,
		"category", category,
		"severity", severity,
		"duration", duration,
	)
}

// GetPerformanceSummary aggregates spans, errors, and bottlenecks within
// the trailing window.
func (m *Monitor) GetPerformanceSummary(window time.Duration) Summary {
	cutoff := m.now().Add(-window)

	m.mu.Lock()
	defer m.mu.Unlock()

	var summary Summary
	var total time.Duration
	var slowest *Span

	for i := range m.completed {
		span := &m.completed[i]
		if span.EndedAt.Before(cutoff) {
			continue
		}
		summary.MeasurementCount++
		total += span.Duration
		if slowest == nil || span.Duration > slowest.Duration {
			slowest = span
		}
	}

	if summary.MeasurementCount > 0 {
		summary.AverageDuration = total / time.Duration(summary.MeasurementCount)
		copySlowest := *slowest
		summary.SlowestSpan = &copySlowest
	}

	errorCount := 0
	for _, e := range m.storeErrors {
		if !e.Timestamp.Before(cutoff) {
			errorCount++
		}
	}
	if summary.MeasurementCount > 0 {
		summary.ErrorRate = float64(errorCount) / float64(summary.MeasurementCount)
	} else if errorCount > 0 {
		summary.ErrorRate = 1
	}

	for _, b := range m.bottlenecks {
		if !b.Timestamp.Before(cutoff) && b.Severity == domain.SeverityCritical {
			summary.CriticalBottlenecks++
		}
	}

	return summary
}

// Bottlenecks returns a copy of the retained bottlenecks, newest last.
func (m *Monitor) Bottlenecks() []domain.Bottleneck {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Bottleneck, len(m.bottlenecks))
	copy(out, m.bottlenecks)
	return out
}

// StartJanitor begins the periodic age purge. Idempotent.
func (m *Monitor) StartJanitor() {
	m.mu.Lock()
	if m.janitorStop != nil {
		m.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	m.janitorStop = stop
	m.janitorDone = done
	m.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(m.cfg.PurgeInterval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				m.purgeAged()
			}
		}
	}()
}

// StopJanitor stops the periodic purge. Idempotent.
func (m *Monitor) StopJanitor() {
	m.mu.Lock()
	stop := m.janitorStop
	done := m.janitorDone
	m.janitorStop = nil
	m.janitorDone = nil
	m.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// purgeAged drops entries older than MaxAge from every collection.
func (m *Monitor) purgeAged() {
	cutoff := m.now().Add(-m.cfg.MaxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.completed[:0]
	for _, span := range m.completed {
		if !span.EndedAt.Before(cutoff) {
			kept = append(kept, span)
		}
	}
	m.completed = kept

	keptErrs := m.storeErrors[:0]
	for _, e := range m.storeErrors {
		if !e.Timestamp.Before(cutoff) {
			keptErrs = append(keptErrs, e)
		}
	}
	m.storeErrors = keptErrs

	keptBn := m.bottlenecks[:0]
	for _, b := range m.bottlenecks {
		if !b.Timestamp.Before(cutoff) {
			keptBn = append(keptBn, b)
		}
	}
	m.bottlenecks = keptBn
}

// capLocked trims the oldest completed spans past the max-count cap.
func (m *Monitor) capLocked(spans *[]Span) {
	if excess := len(*spans) - m.cfg.MaxEntries; excess > 0 {
		*spans = (*spans)[excess:]
	}
}

func (m *Monitor) capStoreErrorsLocked() {
	if excess := len(m.storeErrors) - m.cfg.MaxEntries; excess > 0 {
		m.storeErrors = m.storeErrors[excess:]
	}
}

func (m *Monitor) capBottlenecksLocked() {
	if excess := len(m.bottlenecks) - m.cfg.MaxEntries; excess > 0 {
		m.bottlenecks = m.bottlenecks[excess:]
	}
}
