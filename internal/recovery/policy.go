package recovery

import (
	"math"
	"time"

	"github.com/vietddude/shield/internal/core/domain"
)

// transientKinds are the error kinds worth retrying for store-facing
// operation types.
var transientKinds = []domain.ErrorKind{
	domain.ErrKindNetwork,
	domain.ErrKindTimeout,
	domain.ErrKindServiceUnavailable,
}

// defaultPolicies maps each operation type to its default retry policy.
// UI operations never retry: a stale interface update is worse than a
// missing one.
var defaultPolicies = map[domain.OperationType]domain.RetryPolicy{
	domain.OpTypeAuth: {
		MaxAttempts:       3,
		BaseDelay:         1 * time.Second,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2.0,
		RetryableKinds:    transientKinds,
	},
	domain.OpTypeDatabase: {
		MaxAttempts:       3,
		BaseDelay:         500 * time.Millisecond,
		MaxDelay:          5 * time.Second,
		BackoffMultiplier: 2.0,
		RetryableKinds:    transientKinds,
	},
	domain.OpTypeNetwork: {
		MaxAttempts:       5,
		BaseDelay:         1 * time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
		RetryableKinds:    transientKinds,
	},
	domain.OpTypeUI: {
		MaxAttempts:       1,
		BaseDelay:         0,
		MaxDelay:          0,
		BackoffMultiplier: 1.0,
	},
	domain.OpTypeSystem: {
		MaxAttempts:       2,
		BaseDelay:         1 * time.Second,
		MaxDelay:          5 * time.Second,
		BackoffMultiplier: 2.0,
		RetryableKinds:    []domain.ErrorKind{domain.ErrKindNetwork, domain.ErrKindTimeout},
	},
}

// DefaultPolicyFor returns the default retry policy for an operation type.
func DefaultPolicyFor(t domain.OperationType) domain.RetryPolicy {
	if p, ok := defaultPolicies[t]; ok {
		return p
	}
	return defaultPolicies[domain.OpTypeSystem]
}

// backoffDelay computes min(maxDelay, baseDelay*multiplier^attempt).
func backoffDelay(attempt int, p domain.RetryPolicy) time.Duration {
	delay := float64(p.BaseDelay) * math.Pow(p.BackoffMultiplier, float64(attempt))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	return time.Duration(delay)
}

// LayerFlags enables or disables individual recovery layers for one call.
type LayerFlags struct {
	Retry    bool
	Fallback bool
	Cached   bool
	Degraded bool
}

// AllLayers enables every recovery layer.
var AllLayers = LayerFlags{Retry: true, Fallback: true, Cached: true, Degraded: true}

// Option customizes a single ExecuteWithRecovery call.
type Option func(*callConfig)

type callConfig struct {
	policy    domain.RetryPolicy
	policySet bool
	flags     LayerFlags
}

// WithRetryPolicy overrides the default policy for the operation type.
func WithRetryPolicy(p domain.RetryPolicy) Option {
	return func(c *callConfig) {
		c.policy = p
		c.policySet = true
	}
}

// WithLayers overrides which recovery layers may run.
func WithLayers(flags LayerFlags) Option {
	return func(c *callConfig) {
		c.flags = flags
	}
}
