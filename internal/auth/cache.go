package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/shield/internal/core/domain"
)

// DefaultSnapshotTTL bounds how long a verified snapshot may serve offline.
const DefaultSnapshotTTL = time.Hour

// SnapshotStore optionally persists the snapshot slot across restarts.
// The in-process slot stays the source of truth; persistence is
// best-effort.
type SnapshotStore interface {
	Save(ctx context.Context, snap domain.CachedPrincipalSnapshot) error
	Load(ctx context.Context) (domain.CachedPrincipalSnapshot, bool, error)
	Delete(ctx context.Context) error
}

// StateCache holds the last verified identity/permission snapshot in a
// single slot. Writes overwrite; reads past the TTL report absent, which
// is indistinguishable from never having cached.
type StateCache struct {
	ttl   time.Duration
	now   func() time.Time
	store SnapshotStore
	log   *slog.Logger

	mu     sync.RWMutex
	slot   *domain.CachedPrincipalSnapshot
	warmed bool
}

// StateCacheOption customizes a StateCache.
type StateCacheOption func(*StateCache)

// WithTTL overrides the default one-hour TTL.
func WithTTL(ttl time.Duration) StateCacheOption {
	return func(c *StateCache) { c.ttl = ttl }
}

// WithClock injects a clock for tests.
func WithClock(now func() time.Time) StateCacheOption {
	return func(c *StateCache) { c.now = now }
}

// WithSnapshotStore attaches a persistence backend.
func WithSnapshotStore(store SnapshotStore) StateCacheOption {
	return func(c *StateCache) { c.store = store }
}

// NewStateCache creates an empty cache.
func NewStateCache(log *slog.Logger, opts ...StateCacheOption) *StateCache {
	if log == nil {
		log = slog.Default()
	}
	c := &StateCache{
		ttl: DefaultSnapshotTTL,
		now: time.Now,
		log: log,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Cache stores the verified tuple with VerifiedAt=now and
// ExpiresAt=now+TTL. Value and TTL are written in one critical section.
func (c *StateCache) Cache(
	principal domain.Principal,
	role domain.Role,
	perms []domain.Permission,
) {
	now := c.now()
	snap := domain.CachedPrincipalSnapshot{
		Principal:   principal,
		Role:        role,
		Permissions: perms,
		VerifiedAt:  now,
		ExpiresAt:   now.Add(c.ttl),
	}

	c.mu.Lock()
	c.slot = &snap
	c.warmed = true
	c.mu.Unlock()

	if c.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := c.store.Save(ctx, snap); err != nil {
			c.log.Warn("Failed to persist auth snapshot", "error", err)
		}
	}
}

// Get returns the snapshot iff unexpired.
func (c *StateCache) Get() (domain.CachedPrincipalSnapshot, bool) {
	c.mu.RLock()
	slot := c.slot
	warmed := c.warmed
	c.mu.RUnlock()

	if slot == nil && !warmed && c.store != nil {
		slot = c.warmFromStore()
	}

	if slot == nil || slot.Expired(c.now()) {
		return domain.CachedPrincipalSnapshot{}, false
	}
	return *slot, true
}

// warmFromStore loads the persisted slot once after a cold start.
func (c *StateCache) warmFromStore() *domain.CachedPrincipalSnapshot {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	snap, found, err := c.store.Load(ctx)
	if err != nil {
		c.log.Warn("Failed to load persisted auth snapshot", "error", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.warmed = true
	if c.slot != nil {
		// A live verification won the race; keep it.
		return c.slot
	}
	if found && err == nil {
		c.slot = &snap
	}
	return c.slot
}

// Clear explicitly invalidates the slot (logout, security events).
func (c *StateCache) Clear() {
	c.mu.Lock()
	c.slot = nil
	c.warmed = true
	c.mu.Unlock()

	if c.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := c.store.Delete(ctx); err != nil {
			c.log.Warn("Failed to delete persisted auth snapshot", "error", err)
		}
	}
}
