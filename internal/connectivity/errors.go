package connectivity

import (
	"time"

	"github.com/vietddude/shield/internal/core/domain"
)

// ConnectionErrorKind classifies a probe failure for user-facing guidance.
type ConnectionErrorKind string

const (
	ConnErrNetwork ConnectionErrorKind = "network"
	ConnErrTimeout ConnectionErrorKind = "timeout"
	ConnErrService ConnectionErrorKind = "service"
	ConnErrUnknown ConnectionErrorKind = "unknown"
)

// ConnectionError is a user-presentable classification of a raw connection
// failure, including fixed troubleshooting steps and retry guidance.
type ConnectionError struct {
	Kind                 ConnectionErrorKind
	Message              string
	TroubleshootingSteps []string
	CanRetry             bool
	RetryDelay           time.Duration
}

// GenerateConnectionError classifies a raw error into a ConnectionError.
// It never fails; unrecognized causes map to the unknown kind.
func GenerateConnectionError(err error) ConnectionError {
	kind := ConnErrUnknown
	if err != nil {
		switch domain.KindOf(err) {
		case domain.ErrKindTimeout:
			kind = ConnErrTimeout
		case domain.ErrKindNetwork:
			kind = ConnErrNetwork
		case domain.ErrKindServiceUnavailable:
			kind = ConnErrService
		}
	}

	switch kind {
	case ConnErrTimeout:
		return ConnectionError{
			Kind:    ConnErrTimeout,
			Message: "The connection timed out.",
			TroubleshootingSteps: []string{
				"Check your internet connection speed",
				"Move closer to your router if on Wi-Fi",
				"Try again in a few seconds",
			},
			CanRetry:   true,
			RetryDelay: 2 * time.Second,
		}
	case ConnErrNetwork:
		return ConnectionError{
			Kind:    ConnErrNetwork,
			Message: "A network error prevented the connection.",
			TroubleshootingSteps: []string{
				"Check that your device is connected to a network",
				"Disable VPN or proxy software and retry",
				"Restart your router if the problem persists",
			},
			CanRetry:   true,
			RetryDelay: 5 * time.Second,
		}
	case ConnErrService:
		return ConnectionError{
			Kind:    ConnErrService,
			Message: "The service is currently unavailable.",
			TroubleshootingSteps: []string{
				"The service may be under maintenance",
				"Wait a few minutes before retrying",
				"Check the service status page",
			},
			CanRetry:   true,
			RetryDelay: 10 * time.Second,
		}
	default:
		return ConnectionError{
			Kind:    ConnErrUnknown,
			Message: "An unexpected connection problem occurred.",
			TroubleshootingSteps: []string{
				"Retry the operation",
				"Restart the application if the problem persists",
			},
			CanRetry:   true,
			RetryDelay: 5 * time.Second,
		}
	}
}
