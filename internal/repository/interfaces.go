package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Garzer09/biz-data-guide-sub001/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrJobNotFound is returned when no import job has the requested id.
	ErrJobNotFound = errors.New("import job not found")
	// ErrJobStatusConflict indicates that a job cannot transition to the requested state.
	ErrJobStatusConflict = errors.New("import job status conflict")
)

// ImportJobRepository is the job ledger. Status transitions are conditional on
// the current status so they can never move a job backwards.
type ImportJobRepository interface {
	Create(ctx context.Context, job domain.ImportJob) (domain.ImportJob, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.ImportJob, error)
	ListByCompany(ctx context.Context, companyID uuid.UUID, limit int, offset int) ([]domain.ImportJob, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	UpdateProgress(ctx context.Context, id uuid.UUID, totalRows int, okRows int, errorRows int) error
	Finish(ctx context.Context, id uuid.UUID, status domain.ImportStatus, summary domain.ImportSummary) error
	// Fail moves a processing job to failed and records its job level error
	// atomically; neither write happens without the other.
	Fail(ctx context.Context, id uuid.UUID, summary domain.ImportSummary, entry domain.ImportLogEntry) error
	FailStale(ctx context.Context, before time.Time, reason string) ([]uuid.UUID, error)
}

// ImportLogRepository stores rejected rows and job level failures.
type ImportLogRepository interface {
	Record(ctx context.Context, entry domain.ImportLogEntry) error
	ListByJob(ctx context.Context, jobID uuid.UUID, limit int, offset int) ([]domain.ImportLogEntry, error)
	// ListByJobs returns up to perJob entries for each job, keyed by job id.
	ListByJobs(ctx context.Context, jobIDs []uuid.UUID, perJob int) (map[uuid.UUID][]domain.ImportLogEntry, error)
}

// CompanyRepository reads the company directory.
type CompanyRepository interface {
	// CodeIndex maps normalized company codes to company ids.
	CodeIndex(ctx context.Context) (map[string]uuid.UUID, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// AccessRepository answers role and membership questions for the authorizer.
type AccessRepository interface {
	IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error)
	HasCompanyAccess(ctx context.Context, userID uuid.UUID, companyID uuid.UUID) (bool, error)
}

// FactRepository is the upsert sink for normalized records.
type FactRepository interface {
	Upsert(ctx context.Context, desc domain.RecordDescriptor, jobID uuid.UUID, rec domain.NormalizedRecord) error
}

// execer is satisfied by both the pool and a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}
