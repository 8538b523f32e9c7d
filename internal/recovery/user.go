package recovery

import (
	"context"

	"github.com/vietddude/shield/internal/core/domain"
)

// InitiateUserRecovery maps a user-initiated action from the presentation
// layer onto a recovery step. The result always carries the user_initiated
// method so the UI can distinguish it from automatic recovery.
func (e *Engine) InitiateUserRecovery(
	ctx context.Context,
	opType domain.OperationType,
	action domain.RecoveryAction,
) domain.RecoveryResult {
	result := domain.RecoveryResult{
		Success: true,
		Method:  domain.MethodUserInitiated,
	}

	switch action {
	case domain.ActionRetry:
		if e.monitor == nil {
			return e.userFailure("no connectivity monitor configured")
		}
		st := e.monitor.CheckConnectivity(ctx)
		result.Success = st.IsServiceConnected
		result.Data = st
		if !st.IsServiceConnected {
			result.Err = domain.Errorf(domain.ErrKindServiceUnavailable, "service still unreachable")
		}

	case domain.ActionRefresh:
		if e.monitor == nil {
			return e.userFailure("no connectivity monitor configured")
		}
		result.Data = e.monitor.State()

	case domain.ActionReset:
		if e.monitor != nil {
			e.monitor.ResetReconnection()
		}

	case domain.ActionClearCache:
		if e.snapshots != nil {
			e.snapshots.Clear()
		}

	case domain.ActionForceLogout:
		if e.snapshots != nil {
			e.snapshots.Clear()
		}
		if e.logout != nil {
			if err := e.logout(ctx); err != nil {
				result.Success = false
				result.Err = err
			}
		}

	default:
		return e.userFailure("unknown recovery action: " + string(action))
	}

	e.log.Info("User recovery action handled",
		"action", action,
		"operation_type", opType,
		"success", result.Success,
	)
	return result
}

func (e *Engine) userFailure(msg string) domain.RecoveryResult {
	return domain.RecoveryResult{
		Success: false,
		Err:     domain.Errorf(domain.ErrKindValidation, "%s", msg),
		Method:  domain.MethodUserInitiated,
	}
}
