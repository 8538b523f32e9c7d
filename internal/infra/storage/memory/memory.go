// Package memory provides in-memory authorization-store implementations
// for tests and storage-less deployments.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/shield/internal/core/domain"
	"github.com/vietddude/shield/internal/infra/storage"
)

type MemoryStorage struct {
	roles     map[string]*domain.RoleRecord
	principal *domain.Principal
	mu        sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		roles: make(map[string]*domain.RoleRecord),
	}
}

// SetPrincipal sets the currently authenticated principal.
func (s *MemoryStorage) SetPrincipal(p domain.Principal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.principal = &p
}

// ClearPrincipal removes the current session (logout).
func (s *MemoryStorage) ClearPrincipal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.principal = nil
}

// Current implements auth.PrincipalResolver.
func (s *MemoryStorage) Current(ctx context.Context) (domain.Principal, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.principal == nil {
		return domain.Principal{}, false, nil
	}
	return *s.principal, true, nil
}

// -----------------------------------------------------------------------------
// Role Repository
// -----------------------------------------------------------------------------

type RoleRepo struct {
	store *MemoryStorage
}

func NewRoleRepo(store *MemoryStorage) *RoleRepo {
	return &RoleRepo{store: store}
}

func (r *RoleRepo) Get(ctx context.Context, principalID string) (*domain.RoleRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	record, ok := r.store.roles[principalID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *record
	return &copied, nil
}

func (r *RoleRepo) Upsert(ctx context.Context, principalID string, role domain.Role) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.roles[principalID] = &domain.RoleRecord{
		PrincipalID: principalID,
		Role:        role,
		UpdatedAt:   time.Now(),
	}
	return nil
}
