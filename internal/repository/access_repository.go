package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type accessRepository struct {
	pool      *pgxpool.Pool
	adminRole string
}

// NewAccessRepository wires role and membership lookups. adminRole is the
// user_roles value that grants import rights.
func NewAccessRepository(pool *pgxpool.Pool, adminRole string) AccessRepository {
	if adminRole == "" {
		adminRole = "admin"
	}
	return &accessRepository{pool: pool, adminRole: adminRole}
}

func (r *accessRepository) IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	var admin bool
	err := r.pool.QueryRow(
		ctx,
		`SELECT EXISTS (SELECT 1 FROM user_roles WHERE user_id = $1 AND role = $2)`,
		userID,
		r.adminRole,
	).Scan(&admin)
	if err != nil {
		return false, fmt.Errorf("check admin role: %w", err)
	}
	return admin, nil
}

func (r *accessRepository) HasCompanyAccess(ctx context.Context, userID uuid.UUID, companyID uuid.UUID) (bool, error) {
	var member bool
	err := r.pool.QueryRow(
		ctx,
		`SELECT EXISTS (SELECT 1 FROM company_members WHERE user_id = $1 AND company_id = $2)`,
		userID,
		companyID,
	).Scan(&member)
	if err != nil {
		return false, fmt.Errorf("check company access: %w", err)
	}
	return member, nil
}
