package domain

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorKind is the typed failure taxonomy. Adapters attach a kind at the
// boundary so the core never inspects free-text error messages.
type ErrorKind string

const (
	ErrKindNetwork            ErrorKind = "network"
	ErrKindTimeout            ErrorKind = "timeout"
	ErrKindServiceUnavailable ErrorKind = "service_unavailable"
	ErrKindValidation         ErrorKind = "validation"
	ErrKindPermissionDenied   ErrorKind = "permission_denied"
	ErrKindCancelled          ErrorKind = "cancelled"
	ErrKindUnknown            ErrorKind = "unknown"
)

// ClassifiedError wraps an error with its kind. Store and identity adapters
// produce these; the recovery engine only ever reads Kind.
type ClassifiedError struct {
	Kind ErrorKind
	Err  error
}

func (e *ClassifiedError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ClassifiedError) Unwrap() error { return e.Err }

// NewError wraps err with an explicit kind.
func NewError(kind ErrorKind, err error) *ClassifiedError {
	return &ClassifiedError{Kind: kind, Err: err}
}

// Errorf builds a classified error from a format string.
func Errorf(kind ErrorKind, format string, args ...any) *ClassifiedError {
	return &ClassifiedError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the kind from err. Errors without an attached kind are
// classified from well-known typed causes; anything else is unknown.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ErrKindUnknown
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Kind
	}

	if errors.Is(err, context.Canceled) {
		return ErrKindCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrKindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrKindTimeout
		}
		return ErrKindNetwork
	}

	if st, ok := status.FromError(err); ok && st.Code() != codes.OK {
		switch st.Code() {
		case codes.DeadlineExceeded:
			return ErrKindTimeout
		case codes.Unavailable:
			return ErrKindServiceUnavailable
		case codes.PermissionDenied, codes.Unauthenticated:
			return ErrKindPermissionDenied
		case codes.InvalidArgument:
			return ErrKindValidation
		case codes.Canceled:
			return ErrKindCancelled
		}
	}

	return ErrKindUnknown
}
