package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vietddude/shield/internal/core/domain"
	"github.com/vietddude/shield/internal/infra/storage"
	"github.com/vietddude/shield/internal/metrics"
)

// Fixed user-facing denial errors. They deliberately carry no detail about
// the authorization internals.
var (
	ErrPermissionDenied        = domain.Errorf(domain.ErrKindPermissionDenied, "permission denied")
	ErrInsufficientPermissions = domain.Errorf(domain.ErrKindPermissionDenied, "insufficient permissions")
)

// PrincipalResolver yields the currently authenticated principal, if any.
type PrincipalResolver interface {
	Current(ctx context.Context) (domain.Principal, bool, error)
}

// Verifier resolves roles and permissions with deterministic fallback:
// resolution never errors out, it degrades to the base role.
type Verifier struct {
	resolver PrincipalResolver
	roles    storage.RoleRepository
	cache    *StateCache
	log      *slog.Logger

	// OnRoleChanged is an extension point fired after any successful role
	// update. Other live sessions are NOT notified automatically; wiring a
	// push mechanism here is the integrator's call. Nil by default.
	OnRoleChanged func(targetID string, newRole domain.Role)
}

// NewVerifier creates a verifier. It validates the permission hierarchy
// once; a cyclic table is a configuration-contract violation.
func NewVerifier(
	resolver PrincipalResolver,
	roles storage.RoleRepository,
	cache *StateCache,
	log *slog.Logger,
) (*Verifier, error) {
	if err := ValidateHierarchy(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Verifier{
		resolver: resolver,
		roles:    roles,
		cache:    cache,
		log:      log,
	}, nil
}

// VerifyUserRole resolves a principal's role and permission set.
// principalID may be empty, meaning the current principal.
//
//   - record absent: base role, FallbackApplied=true, IsVerified=true
//   - store error:   base role, FallbackApplied=true, IsVerified=false, Err set
//   - success:       assigned role with its static permission set
func (v *Verifier) VerifyUserRole(ctx context.Context, principalID string) domain.RoleVerification {
	principal, ok, err := v.resolvePrincipal(ctx, principalID)
	if err != nil {
		metrics.RoleVerifications.WithLabelValues("fallback_error").Inc()
		return v.fallback(principal, false, err)
	}
	if !ok {
		// No authenticated session behaves like an absent record.
		metrics.RoleVerifications.WithLabelValues("fallback_absent").Inc()
		return v.fallback(principal, true, nil)
	}

	record, err := v.roles.Get(ctx, principal.ID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		metrics.RoleVerifications.WithLabelValues("fallback_absent").Inc()
		return v.fallback(principal, true, nil)
	case err != nil:
		v.log.Warn("Role lookup failed, applying base role",
			"principal", principal.ID,
			"error", err,
		)
		metrics.RoleVerifications.WithLabelValues("fallback_error").Inc()
		return v.fallback(principal, false, domain.NewError(domain.KindOf(err), err))
	}

	perms := PermissionsFor(record.Role)
	verification := domain.RoleVerification{
		Principal:   principal,
		Role:        record.Role,
		Permissions: perms,
		IsVerified:  true,
	}

	// The snapshot slot belongs to the current session. Admin lookups of
	// other principals must never overwrite it, or the cached recovery
	// layer would later serve someone else's identity as the session's.
	if v.cache != nil && v.sessionPrincipal(ctx, principalID, principal.ID) {
		v.cache.Cache(principal, record.Role, perms)
	}

	metrics.RoleVerifications.WithLabelValues("verified").Inc()
	return verification
}

// CheckPermission reports whether the permission is directly granted or
// implied by one hierarchy hop from a granted permission. Default deny.
func (v *Verifier) CheckPermission(
	ctx context.Context,
	perm domain.Permission,
	principalID string,
) bool {
	verification := v.VerifyUserRole(ctx, principalID)
	return Granted(verification.Permissions, perm)
}

// ReVerifyAdminPermissions bypasses any cached state and forces a fresh
// store read before answering the permission check. Fallback semantics
// match VerifyUserRole.
func (v *Verifier) ReVerifyAdminPermissions(
	ctx context.Context,
	perm domain.Permission,
) (bool, domain.RoleVerification) {
	verification := v.VerifyUserRole(ctx, "")
	return Granted(verification.Permissions, perm), verification
}

// UpdateUserRoleDynamic changes a principal's role. The acting principal
// must hold manage_admins; denial returns a fixed error without mutating
// state. onUpdated fires only when the acting principal updated itself.
func (v *Verifier) UpdateUserRoleDynamic(
	ctx context.Context,
	targetID string,
	newRole domain.Role,
	onUpdated func(domain.RoleVerification),
) (domain.RoleVerification, error) {
	allowed, actor := v.ReVerifyAdminPermissions(ctx, domain.PermManageAdmins)
	if !allowed {
		return domain.RoleVerification{}, ErrPermissionDenied
	}

	if targetID == "" {
		return domain.RoleVerification{}, domain.Errorf(
			domain.ErrKindValidation, "target principal id is required",
		)
	}
	if !KnownRole(newRole) {
		return domain.RoleVerification{}, domain.Errorf(
			domain.ErrKindValidation, "unknown role %q", newRole,
		)
	}

	if err := v.roles.Upsert(ctx, targetID, newRole); err != nil {
		return domain.RoleVerification{}, fmt.Errorf("failed to update role: %w",
			domain.NewError(domain.KindOf(err), err))
	}

	v.log.Info("Role updated", "target", targetID, "role", newRole)

	verification := v.VerifyUserRole(ctx, targetID)

	if onUpdated != nil && actor.Principal.ID == targetID {
		onUpdated(verification)
	}
	if v.OnRoleChanged != nil {
		v.OnRoleChanged(targetID, newRole)
	}

	return verification, nil
}

// BatchVerifyRoles resolves many principals concurrently. The acting
// principal must hold manage_members; on denial every id gets the base
// role plus the fixed insufficient-permissions error, with no partial
// results. Individual lookup failures are isolated per id.
func (v *Verifier) BatchVerifyRoles(
	ctx context.Context,
	principalIDs []string,
) map[string]domain.RoleVerification {
	results := make(map[string]domain.RoleVerification, len(principalIDs))

	if allowed, _ := v.ReVerifyAdminPermissions(ctx, domain.PermManageMembers); !allowed {
		for _, id := range principalIDs {
			results[id] = domain.RoleVerification{
				Principal:       domain.Principal{ID: id},
				Role:            BaseRole,
				Permissions:     PermissionsFor(BaseRole),
				IsVerified:      false,
				FallbackApplied: true,
				Err:             ErrInsufficientPermissions,
			}
		}
		return results
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, id := range principalIDs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			verification := v.VerifyUserRole(ctx, id)
			mu.Lock()
			results[id] = verification
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	return results
}

// sessionPrincipal reports whether a verification targets the current
// session: either the id was left empty, or it matches the resolver's
// current principal.
func (v *Verifier) sessionPrincipal(ctx context.Context, requestedID, resolvedID string) bool {
	if requestedID == "" {
		return true
	}
	if v.resolver == nil {
		return false
	}
	current, ok, err := v.resolver.Current(ctx)
	return err == nil && ok && current.ID == resolvedID
}

// resolvePrincipal returns the explicit principal, or the current one when
// the id is empty.
func (v *Verifier) resolvePrincipal(
	ctx context.Context,
	principalID string,
) (domain.Principal, bool, error) {
	if principalID != "" {
		return domain.Principal{ID: principalID}, true, nil
	}
	if v.resolver == nil {
		return domain.Principal{}, false, nil
	}
	return v.resolver.Current(ctx)
}

// fallback builds the degraded base-role verification.
func (v *Verifier) fallback(
	principal domain.Principal,
	verified bool,
	err error,
) domain.RoleVerification {
	return domain.RoleVerification{
		Principal:       principal,
		Role:            BaseRole,
		Permissions:     PermissionsFor(BaseRole),
		IsVerified:      verified,
		FallbackApplied: true,
		Err:             err,
	}
}
