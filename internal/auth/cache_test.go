package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/shield/internal/core/domain"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fakeSnapshotStore struct {
	snap    *domain.CachedPrincipalSnapshot
	saveErr error
	loadErr error
	saves   int
	deletes int
	loads   int
}

func (s *fakeSnapshotStore) Save(ctx context.Context, snap domain.CachedPrincipalSnapshot) error {
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.snap = &snap
	return nil
}

func (s *fakeSnapshotStore) Load(ctx context.Context) (domain.CachedPrincipalSnapshot, bool, error) {
	s.loads++
	if s.loadErr != nil {
		return domain.CachedPrincipalSnapshot{}, false, s.loadErr
	}
	if s.snap == nil {
		return domain.CachedPrincipalSnapshot{}, false, nil
	}
	return *s.snap, true, nil
}

func (s *fakeSnapshotStore) Delete(ctx context.Context) error {
	s.deletes++
	s.snap = nil
	return nil
}

func TestStateCacheRoundTrip(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
	c := NewStateCache(nil, WithClock(clock.Now))

	if _, ok := c.Get(); ok {
		t.Fatal("empty cache must report absent")
	}

	principal := domain.Principal{ID: "u-1", Email: "u1@example.com"}
	c.Cache(principal, domain.RoleAdmin, PermissionsFor(domain.RoleAdmin))

	snap, ok := c.Get()
	if !ok {
		t.Fatal("expected cached snapshot")
	}
	if snap.Principal != principal || snap.Role != domain.RoleAdmin {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.VerifiedAt != clock.t {
		t.Errorf("VerifiedAt = %v, want %v", snap.VerifiedAt, clock.t)
	}
	if got := snap.ExpiresAt.Sub(snap.VerifiedAt); got != DefaultSnapshotTTL {
		t.Errorf("TTL = %v, want %v", got, DefaultSnapshotTTL)
	}
}

func TestStateCacheExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
	c := NewStateCache(nil, WithClock(clock.Now), WithTTL(time.Hour))

	c.Cache(domain.Principal{ID: "u-1"}, domain.RoleMember, PermissionsFor(domain.RoleMember))

	clock.Advance(time.Hour - time.Nanosecond)
	if _, ok := c.Get(); !ok {
		t.Error("snapshot must still serve just before the TTL boundary")
	}

	clock.Advance(time.Nanosecond) // now == ExpiresAt
	if _, ok := c.Get(); ok {
		t.Error("snapshot at exactly ExpiresAt must be treated as expired")
	}
}

func TestStateCacheOverwrite(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	c := NewStateCache(nil, WithClock(clock.Now))

	c.Cache(domain.Principal{ID: "u-1"}, domain.RoleMember, PermissionsFor(domain.RoleMember))
	c.Cache(domain.Principal{ID: "u-2"}, domain.RoleAdmin, PermissionsFor(domain.RoleAdmin))

	snap, ok := c.Get()
	if !ok || snap.Principal.ID != "u-2" {
		t.Errorf("expected u-2 after overwrite, got %+v ok=%v", snap, ok)
	}
}

func TestStateCacheClear(t *testing.T) {
	store := &fakeSnapshotStore{}
	c := NewStateCache(nil, WithSnapshotStore(store))

	c.Cache(domain.Principal{ID: "u-1"}, domain.RoleMember, PermissionsFor(domain.RoleMember))
	c.Clear()

	if _, ok := c.Get(); ok {
		t.Error("cleared cache must report absent")
	}
	if store.deletes != 1 {
		t.Errorf("deletes = %d, want 1", store.deletes)
	}
}

func TestStateCacheWarmsFromStoreOnce(t *testing.T) {
	now := time.Now()
	store := &fakeSnapshotStore{
		snap: &domain.CachedPrincipalSnapshot{
			Principal:  domain.Principal{ID: "u-persisted"},
			Role:       domain.RoleModerator,
			VerifiedAt: now,
			ExpiresAt:  now.Add(time.Hour),
		},
	}
	c := NewStateCache(nil, WithSnapshotStore(store))

	snap, ok := c.Get()
	if !ok || snap.Principal.ID != "u-persisted" {
		t.Fatalf("expected persisted snapshot, got %+v ok=%v", snap, ok)
	}

	c.Get()
	if store.loads != 1 {
		t.Errorf("loads = %d, want a single cold-start load", store.loads)
	}
}

func TestStateCacheSurvivesStoreFailures(t *testing.T) {
	store := &fakeSnapshotStore{saveErr: errors.New("redis down")}
	c := NewStateCache(nil, WithSnapshotStore(store))

	c.Cache(domain.Principal{ID: "u-1"}, domain.RoleMember, PermissionsFor(domain.RoleMember))

	if _, ok := c.Get(); !ok {
		t.Error("in-process slot must serve even when persistence fails")
	}
}
