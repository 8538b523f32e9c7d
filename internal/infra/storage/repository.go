// Package storage defines the repository contracts the resilience layer
// expects from the authorization store. Implementations live in the
// postgres and memory subpackages.
package storage

import (
	"context"
	"errors"

	"github.com/vietddude/shield/internal/core/domain"
)

// ErrNotFound is returned when a record doesn't exist. Callers must be
// able to tell "absent" apart from a store failure.
var ErrNotFound = errors.New("record not found")

// RoleRepository handles role assignment storage
type RoleRepository interface {
	// Get retrieves the role record for a principal, or ErrNotFound
	Get(ctx context.Context, principalID string) (*domain.RoleRecord, error)

	// Upsert inserts or overwrites the principal's role
	Upsert(ctx context.Context, principalID string, role domain.Role) error
}
