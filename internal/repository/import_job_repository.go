package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Garzer09/biz-data-guide-sub001/internal/db"
	"github.com/Garzer09/biz-data-guide-sub001/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const importJobColumns = `id, company_id, declared_type, storage_path, status, total_rows, ok_rows, error_rows,
	summary, created_by, created_at, updated_at, started_at, finished_at`

type importJobRepository struct {
	conn *db.Connection
	pool *pgxpool.Pool
}

// NewImportJobRepository wires the ledger to the connection pool. Fail runs
// in a transaction on the same connection.
func NewImportJobRepository(conn *db.Connection) ImportJobRepository {
	return &importJobRepository{conn: conn, pool: conn.Pool}
}

func (r *importJobRepository) Create(ctx context.Context, job domain.ImportJob) (domain.ImportJob, error) {
	row := r.pool.QueryRow(
		ctx,
		`INSERT INTO import_jobs (company_id, declared_type, storage_path, created_by)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+importJobColumns,
		job.CompanyID,
		string(job.DeclaredType),
		job.StoragePath,
		job.CreatedBy,
	)
	created, err := scanImportJob(row)
	if err != nil {
		return domain.ImportJob{}, fmt.Errorf("create import job: %w", err)
	}
	return created, nil
}

func (r *importJobRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.ImportJob, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+importJobColumns+` FROM import_jobs WHERE id = $1`, id)
	job, err := scanImportJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ImportJob{}, ErrJobNotFound
		}
		return domain.ImportJob{}, fmt.Errorf("get import job: %w", err)
	}
	return job, nil
}

func (r *importJobRepository) ListByCompany(ctx context.Context, companyID uuid.UUID, limit int, offset int) ([]domain.ImportJob, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT `+importJobColumns+`
		 FROM import_jobs
		 WHERE company_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		companyID,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list import jobs: %w", err)
	}
	defer rows.Close()

	jobs := []domain.ImportJob{}
	for rows.Next() {
		job, scanErr := scanImportJob(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan import job: %w", scanErr)
		}
		jobs = append(jobs, job)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate import jobs: %w", rowsErr)
	}
	return jobs, nil
}

func (r *importJobRepository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(
		ctx,
		`UPDATE import_jobs
		 SET status = 'processing', started_at = now(), updated_at = now()
		 WHERE id = $1 AND status = 'pending'`,
		id,
	)
	if err != nil {
		return fmt.Errorf("mark import job processing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobStatusConflict
	}
	return nil
}

func (r *importJobRepository) UpdateProgress(ctx context.Context, id uuid.UUID, totalRows int, okRows int, errorRows int) error {
	tag, err := r.pool.Exec(
		ctx,
		`UPDATE import_jobs
		 SET total_rows = $2, ok_rows = $3, error_rows = $4, updated_at = now()
		 WHERE id = $1 AND status = 'processing'`,
		id,
		totalRows,
		okRows,
		errorRows,
	)
	if err != nil {
		return fmt.Errorf("update import progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobStatusConflict
	}
	return nil
}

func (r *importJobRepository) Finish(ctx context.Context, id uuid.UUID, status domain.ImportStatus, summary domain.ImportSummary) error {
	return finishJob(ctx, r.pool, id, status, summary)
}

func (r *importJobRepository) Fail(ctx context.Context, id uuid.UUID, summary domain.ImportSummary, entry domain.ImportLogEntry) error {
	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if err := finishJob(ctx, tx, id, domain.ImportStatusFailed, summary); err != nil {
			return err
		}
		return insertImportLog(ctx, tx, entry)
	})
}

func finishJob(ctx context.Context, q execer, id uuid.UUID, status domain.ImportStatus, summary domain.ImportSummary) error {
	if !status.IsTerminal() {
		return fmt.Errorf("finish import job: %s is not a terminal status", status)
	}
	tag, err := q.Exec(
		ctx,
		`UPDATE import_jobs
		 SET status = $2, summary = $3, total_rows = $4, ok_rows = $5, error_rows = $6,
		     finished_at = now(), updated_at = now()
		 WHERE id = $1 AND status = 'processing'`,
		id,
		string(status),
		summary,
		summary.TotalRows,
		summary.OKRows,
		summary.ErrorRows,
	)
	if err != nil {
		return fmt.Errorf("finish import job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobStatusConflict
	}
	return nil
}

func (r *importJobRepository) FailStale(ctx context.Context, before time.Time, reason string) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(
		ctx,
		`UPDATE import_jobs
		 SET status = 'failed',
		     summary = jsonb_build_object(
		         'total_rows', total_rows,
		         'ok_rows', ok_rows,
		         'error_rows', error_rows,
		         'warnings', '[]'::jsonb,
		         'errors', '[]'::jsonb,
		         'fatal', $2::text,
		         'duration_ms', (extract(epoch FROM now() - COALESCE(started_at, created_at)) * 1000)::bigint
		     ),
		     finished_at = now(),
		     updated_at = now()
		 WHERE status = 'processing' AND updated_at < $1
		 RETURNING id`,
		before,
		reason,
	)
	if err != nil {
		return nil, fmt.Errorf("fail stale import jobs: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("collect stale import jobs: %w", err)
	}
	return ids, nil
}

func scanImportJob(row pgx.Row) (domain.ImportJob, error) {
	var (
		job          domain.ImportJob
		declaredType string
		status       string
		createdBy    pgtype.UUID
		startedAt    pgtype.Timestamptz
		finishedAt   pgtype.Timestamptz
	)
	if err := row.Scan(
		&job.ID,
		&job.CompanyID,
		&declaredType,
		&job.StoragePath,
		&status,
		&job.TotalRows,
		&job.OKRows,
		&job.ErrorRows,
		&job.Summary,
		&createdBy,
		&job.CreatedAt,
		&job.UpdatedAt,
		&startedAt,
		&finishedAt,
	); err != nil {
		return domain.ImportJob{}, err
	}

	job.DeclaredType = domain.RecordType(declaredType)
	job.Status = domain.ImportStatus(status)
	if createdBy.Valid {
		id := uuid.UUID(createdBy.Bytes)
		job.CreatedBy = &id
	}
	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		job.FinishedAt = &t
	}
	return job, nil
}
