package repository

import (
	"context"
	"fmt"

	"github.com/Garzer09/biz-data-guide-sub001/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type importLogRepository struct {
	pool *pgxpool.Pool
}

// NewImportLogRepository wires a repository backed by pgxpool.
func NewImportLogRepository(pool *pgxpool.Pool) ImportLogRepository {
	return &importLogRepository{pool: pool}
}

func (r *importLogRepository) Record(ctx context.Context, entry domain.ImportLogEntry) error {
	if r.pool == nil {
		return fmt.Errorf("import log repository not initialized")
	}

	return insertImportLog(ctx, r.pool, entry)
}

func insertImportLog(ctx context.Context, q execer, entry domain.ImportLogEntry) error {
	var rowNumber any
	if entry.RowNumber != nil {
		rowNumber = *entry.RowNumber
	}

	_, err := q.Exec(
		ctx,
		`INSERT INTO import_job_errors (job_id, company_id, row_number, kind, column_name, error_message)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.JobID,
		entry.CompanyID,
		rowNumber,
		entry.Kind,
		entry.Column,
		entry.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to record import log: %w", err)
	}

	return nil
}

const importLogColumns = `id, job_id, company_id, row_number, kind, column_name, error_message, created_at`

func (r *importLogRepository) ListByJob(ctx context.Context, jobID uuid.UUID, limit int, offset int) ([]domain.ImportLogEntry, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("import log repository not initialized")
	}

	if limit <= 0 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT `+importLogColumns+`
		 FROM import_job_errors
		 WHERE job_id = $1
		 ORDER BY row_number NULLS FIRST, created_at
		 LIMIT $2 OFFSET $3`,
		jobID,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list import logs: %w", err)
	}
	defer rows.Close()

	logs := []domain.ImportLogEntry{}
	for rows.Next() {
		entry, scanErr := scanImportLog(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan import log: %w", scanErr)
		}
		logs = append(logs, entry)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate import logs: %w", rowsErr)
	}

	return logs, nil
}

func (r *importLogRepository) ListByJobs(ctx context.Context, jobIDs []uuid.UUID, perJob int) (map[uuid.UUID][]domain.ImportLogEntry, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("import log repository not initialized")
	}
	out := make(map[uuid.UUID][]domain.ImportLogEntry, len(jobIDs))
	if len(jobIDs) == 0 {
		return out, nil
	}
	if perJob <= 0 {
		perJob = 10
	}

	ids := make([]string, len(jobIDs))
	for i, id := range jobIDs {
		ids[i] = id.String()
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT `+importLogColumns+`
		 FROM (
		     SELECT *, row_number() OVER (PARTITION BY job_id ORDER BY row_number NULLS FIRST, created_at) AS entry_rank
		     FROM import_job_errors
		     WHERE job_id = ANY($1::uuid[])
		 ) ranked
		 WHERE entry_rank <= $2
		 ORDER BY job_id, entry_rank`,
		ids,
		perJob,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list import logs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		entry, scanErr := scanImportLog(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan import log: %w", scanErr)
		}
		out[entry.JobID] = append(out[entry.JobID], entry)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate import logs: %w", rowsErr)
	}
	return out, nil
}

func scanImportLog(row pgx.Row) (domain.ImportLogEntry, error) {
	var (
		entry     domain.ImportLogEntry
		rowNumber pgtype.Int4
		createdAt pgtype.Timestamptz
	)
	if err := row.Scan(
		&entry.ID,
		&entry.JobID,
		&entry.CompanyID,
		&rowNumber,
		&entry.Kind,
		&entry.Column,
		&entry.ErrorMessage,
		&createdAt,
	); err != nil {
		return domain.ImportLogEntry{}, err
	}

	if rowNumber.Valid {
		value := int(rowNumber.Int32)
		entry.RowNumber = &value
	}
	if createdAt.Valid {
		entry.CreatedAt = createdAt.Time
	}
	return entry, nil
}
