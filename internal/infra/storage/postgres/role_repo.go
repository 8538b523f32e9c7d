package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/shield/internal/core/domain"
	"github.com/vietddude/shield/internal/infra/storage"
)

// RoleRepo implements storage.RoleRepository using PostgreSQL.
type RoleRepo struct {
	db *DB
}

// NewRoleRepo creates a new PostgreSQL role repository.
func NewRoleRepo(db *DB) *RoleRepo {
	return &RoleRepo{db: db}
}

type roleRow struct {
	PrincipalID string    `db:"principal_id"`
	Role        string    `db:"role"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Get retrieves the role record for a principal.
func (r *RoleRepo) Get(ctx context.Context, principalID string) (*domain.RoleRecord, error) {
	var row roleRow
	err := r.db.GetContext(ctx, &row,
		`SELECT principal_id, role, updated_at FROM user_roles WHERE principal_id = $1`,
		principalID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, domain.NewError(domain.ErrKindServiceUnavailable,
			fmt.Errorf("failed to get role: %w", err))
	}

	return &domain.RoleRecord{
		PrincipalID: row.PrincipalID,
		Role:        domain.Role(row.Role),
		UpdatedAt:   row.UpdatedAt,
	}, nil
}

// Upsert inserts or overwrites the principal's role.
func (r *RoleRepo) Upsert(ctx context.Context, principalID string, role domain.Role) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_roles (principal_id, role, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (principal_id)
		 DO UPDATE SET role = EXCLUDED.role, updated_at = NOW()`,
		principalID, string(role),
	)
	if err != nil {
		return domain.NewError(domain.ErrKindServiceUnavailable,
			fmt.Errorf("failed to upsert role: %w", err))
	}
	return nil
}
