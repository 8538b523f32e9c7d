// Package recovery orchestrates operations through layered resilience:
// retry with typed-error eligibility, a registered fallback, the cached
// auth snapshot, and per-category graceful degradation.
package recovery

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/shield/internal/core/domain"
	"github.com/vietddude/shield/internal/metrics"
)

// Operation is the unit of work passed through the engine.
type Operation func(ctx context.Context) (any, error)

// FallbackFunc is the single registered fallback method.
type FallbackFunc func(ctx context.Context) (any, error)

// DegradationHandler produces a reduced-functionality result for one
// operation type.
type DegradationHandler func(ctx context.Context, opCtx domain.OperationContext) (any, error)

// ConnectivitySource exposes the connectivity state the engine consults
// for retry eligibility.
type ConnectivitySource interface {
	State() domain.ConnectivityState
	CheckConnectivity(ctx context.Context) domain.ConnectivityState
	ResetReconnection()
}

// SnapshotSource exposes the cached principal snapshot for the cached
// layer and user cache actions.
type SnapshotSource interface {
	Get() (domain.CachedPrincipalSnapshot, bool)
	Clear()
}

// Instrumentor receives timing spans for executed operations.
type Instrumentor interface {
	StartMeasurement(name, category string, metadata map[string]any, tags []string) string
	EndMeasurement(id string, extra map[string]any)
}

// Options wires the engine's collaborators. Every field is optional; a nil
// collaborator simply disables the layer that needs it.
type Options struct {
	Monitor   ConnectivitySource
	Snapshots SnapshotSource
	Perf      Instrumentor
	Logout    func(ctx context.Context) error
	Log       *slog.Logger
}

// Engine runs operations through the recovery layers. Construct one per
// composition root; tests build isolated instances.
type Engine struct {
	monitor   ConnectivitySource
	snapshots SnapshotSource
	perf      Instrumentor
	logout    func(ctx context.Context) error
	log       *slog.Logger

	mu          sync.RWMutex
	fallback    FallbackFunc
	degradation map[domain.OperationType]DegradationHandler
	inflight    map[string]*cancelToken
}

// NewEngine creates a recovery engine.
func NewEngine(opts Options) *Engine {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		monitor:     opts.Monitor,
		snapshots:   opts.Snapshots,
		perf:        opts.Perf,
		logout:      opts.Logout,
		log:         log,
		degradation: make(map[domain.OperationType]DegradationHandler),
		inflight:    make(map[string]*cancelToken),
	}
}

// RegisterFallbackAuthMethod keeps exactly one fallback slot; the last
// registration wins.
func (e *Engine) RegisterFallbackAuthMethod(fn FallbackFunc) {
	e.mu.Lock()
	e.fallback = fn
	e.mu.Unlock()
}

// RegisterDegradationHandler keeps one handler per operation type,
// overwriting any previous registration.
func (e *Engine) RegisterDegradationHandler(t domain.OperationType, fn DegradationHandler) {
	e.mu.Lock()
	e.degradation[t] = fn
	e.mu.Unlock()
}

// AbortOperation trips the cancellation token for an in-flight operation.
// The next checkpoint inside the retry loop observes it and resolves early.
// Returns whether an active operation existed; repeat calls are harmless.
func (e *Engine) AbortOperation(operationID string) bool {
	e.mu.RLock()
	token, ok := e.inflight[operationID]
	e.mu.RUnlock()

	if !ok {
		return false
	}
	token.cancel()
	metrics.OperationsAborted.Inc()
	return true
}

// RecoveryStats summarizes engine registrations and in-flight work.
type RecoveryStats struct {
	InFlight            int
	FallbackRegistered  bool
	DegradationHandlers int
}

// Stats returns current engine statistics.
func (e *Engine) Stats() RecoveryStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return RecoveryStats{
		InFlight:            len(e.inflight),
		FallbackRegistered:  e.fallback != nil,
		DegradationHandlers: len(e.degradation),
	}
}

// ExecuteWithRecovery runs op through the recovery layers in order; the
// first layer to produce a result wins. Expected failures come back inside
// the RecoveryResult, never as a panic or error return.
func (e *Engine) ExecuteWithRecovery(
	ctx context.Context,
	op Operation,
	opCtx domain.OperationContext,
	opts ...Option,
) domain.RecoveryResult {
	cfg := callConfig{flags: AllLayers}
	for _, o := range opts {
		o(&cfg)
	}
	if !cfg.policySet {
		cfg.policy = DefaultPolicyFor(opCtx.Type)
	}
	if opCtx.ID == "" {
		opCtx.ID = uuid.NewString()
	}

	token := e.register(opCtx.ID)
	defer e.release(opCtx.ID)

	var spanID string
	if e.perf != nil {
		spanID = e.perf.StartMeasurement(
			"recovery."+string(opCtx.Type),
			string(opCtx.Type),
			opCtx.Metadata,
			[]string{"recovery"},
		)
	}

	result := e.run(ctx, op, opCtx, cfg.policy, cfg.flags, token)

	if e.perf != nil {
		extra := map[string]any{
			"method":   string(result.Method),
			"attempts": result.AttemptsUsed,
			"success":  result.Success,
		}
		if result.Err != nil {
			extra["error"] = result.Err.Error()
		}
		e.perf.EndMeasurement(spanID, extra)
	}

	metrics.RecoveryOutcomes.WithLabelValues(
		string(opCtx.Type),
		string(result.Method),
		strconv.FormatBool(result.Success),
	).Inc()
	metrics.RetryAttempts.WithLabelValues(string(opCtx.Type)).
		Observe(float64(result.AttemptsUsed))

	return result
}

// run executes the layer ladder: retry, fallback, cached, degraded.
func (e *Engine) run(
	ctx context.Context,
	op Operation,
	opCtx domain.OperationContext,
	policy domain.RetryPolicy,
	flags LayerFlags,
	token *cancelToken,
) domain.RecoveryResult {
	var lastErr error
	attemptsUsed := 0

	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		// Checkpoint: pre-attempt.
		if token.cancelled() || ctx.Err() != nil {
			return e.cancelled(opCtx, attemptsUsed)
		}

		attemptsUsed = attempt
		data, err := op(ctx)
		if err == nil {
			method := domain.MethodNone
			if attempt > 1 {
				method = domain.MethodRetry
			}
			return domain.RecoveryResult{
				Success:      true,
				Data:         data,
				Method:       method,
				AttemptsUsed: attemptsUsed,
			}
		}

		lastErr = err
		kind := domain.KindOf(err)
		if kind == domain.ErrKindCancelled {
			return e.cancelled(opCtx, attemptsUsed)
		}

		if !flags.Retry || !policy.Retryable(kind) {
			break
		}
		if attempt == maxAttempts {
			break
		}
		// Retrying against a dead link just burns the backoff budget.
		if e.monitor != nil && !e.monitor.State().IsOnline {
			e.log.Debug("Skipping further retries while offline",
				"operation", opCtx.ID,
				"type", opCtx.Type,
			)
			break
		}

		// Checkpoint: pre-wait.
		delay := backoffDelay(attempt-1, policy)
		select {
		case <-token.ch:
			return e.cancelled(opCtx, attemptsUsed)
		case <-ctx.Done():
			return e.cancelled(opCtx, attemptsUsed)
		case <-time.After(delay):
		}
	}

	if flags.Fallback {
		e.mu.RLock()
		fb := e.fallback
		e.mu.RUnlock()

		if fb != nil {
			data, err := fb(ctx)
			if err == nil {
				return domain.RecoveryResult{
					Success:      true,
					Data:         data,
					Method:       domain.MethodFallback,
					AttemptsUsed: attemptsUsed,
					FallbackUsed: true,
				}
			}
			lastErr = err
		}
	}

	if flags.Cached && opCtx.Type == domain.OpTypeAuth && e.snapshots != nil {
		if snap, ok := e.snapshots.Get(); ok {
			return domain.RecoveryResult{
				Success:      true,
				Data:         snap,
				Method:       domain.MethodCached,
				AttemptsUsed: attemptsUsed,
				OfflineMode:  true,
			}
		}
	}

	if flags.Degraded {
		e.mu.RLock()
		handler := e.degradation[opCtx.Type]
		e.mu.RUnlock()

		if handler != nil {
			data, err := handler(ctx, opCtx)
			if err == nil {
				return domain.RecoveryResult{
					Success:      true,
					Data:         data,
					Method:       domain.MethodDegraded,
					AttemptsUsed: attemptsUsed,
				}
			}
			lastErr = err
		}
	}

	return domain.RecoveryResult{
		Success:      false,
		Err:          lastErr,
		Method:       domain.MethodNone,
		AttemptsUsed: attemptsUsed,
	}
}

func (e *Engine) cancelled(opCtx domain.OperationContext, attemptsUsed int) domain.RecoveryResult {
	e.log.Debug("Operation cancelled", "operation", opCtx.ID, "type", opCtx.Type)
	return domain.RecoveryResult{
		Success:      false,
		Err:          domain.Errorf(domain.ErrKindCancelled, "operation %s cancelled", opCtx.ID),
		Method:       domain.MethodNone,
		AttemptsUsed: attemptsUsed,
	}
}
