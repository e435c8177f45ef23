package repository

import (
	"context"
	"fmt"

	"github.com/Garzer09/biz-data-guide-sub001/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type companyRepository struct {
	pool *pgxpool.Pool
}

// NewCompanyRepository wires a repository backed by pgxpool.
func NewCompanyRepository(pool *pgxpool.Pool) CompanyRepository {
	return &companyRepository{pool: pool}
}

func (r *companyRepository) CodeIndex(ctx context.Context) (map[string]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code FROM companies WHERE code IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("list company codes: %w", err)
	}
	defer rows.Close()

	index := make(map[string]uuid.UUID)
	for rows.Next() {
		var (
			id   uuid.UUID
			code string
		)
		if err := rows.Scan(&id, &code); err != nil {
			return nil, fmt.Errorf("scan company code: %w", err)
		}
		index[domain.NormalizeCompanyCode(code)] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate company codes: %w", err)
	}
	return index, nil
}

func (r *companyRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM companies WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check company: %w", err)
	}
	return exists, nil
}
