package domain

import "time"

// OperationType categorizes an operation passed through the recovery engine.
type OperationType string

const (
	OpTypeAuth     OperationType = "auth"
	OpTypeDatabase OperationType = "database"
	OpTypeNetwork  OperationType = "network"
	OpTypeUI       OperationType = "ui"
	OpTypeSystem   OperationType = "system"
)

// OperationContext identifies a single invocation. Created per call,
// discarded on completion.
type OperationContext struct {
	ID       string
	Type     OperationType
	Metadata map[string]any
}

// RetryPolicy controls the retry layer. Immutable per call.
type RetryPolicy struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	RetryableKinds    []ErrorKind
}

// Retryable reports whether an error kind is eligible for retry under
// this policy.
func (p RetryPolicy) Retryable(kind ErrorKind) bool {
	for _, k := range p.RetryableKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// RecoveryMethod names the resilience layer that produced a result.
type RecoveryMethod string

const (
	MethodNone          RecoveryMethod = "none"
	MethodRetry         RecoveryMethod = "retry"
	MethodFallback      RecoveryMethod = "fallback"
	MethodCached        RecoveryMethod = "cached"
	MethodDegraded      RecoveryMethod = "degraded"
	MethodUserInitiated RecoveryMethod = "user_initiated"
)

// RecoveryAction is a user-initiated recovery request from the presentation
// layer.
type RecoveryAction string

const (
	ActionRetry       RecoveryAction = "retry"
	ActionRefresh     RecoveryAction = "refresh"
	ActionReset       RecoveryAction = "reset"
	ActionClearCache  RecoveryAction = "clear_cache"
	ActionForceLogout RecoveryAction = "force_logout"
)

// RecoveryResult is the structured outcome of ExecuteWithRecovery.
type RecoveryResult struct {
	Success      bool
	Data         any
	Err          error
	Method       RecoveryMethod
	AttemptsUsed int
	FallbackUsed bool
	OfflineMode  bool
}
