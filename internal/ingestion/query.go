package ingestion

import (
	"context"
	"errors"
	"fmt"

	"github.com/Garzer09/biz-data-guide-sub001/internal/auth"
	"github.com/Garzer09/biz-data-guide-sub001/internal/domain"
	"github.com/Garzer09/biz-data-guide-sub001/internal/logloader"
	"github.com/Garzer09/biz-data-guide-sub001/internal/repository"

	"github.com/google/uuid"
)

// GetJob returns a ledger entry to callers with access to its company.
func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (domain.ImportJob, error) {
	if _, ok := auth.CallerFromContext(ctx); !ok {
		return domain.ImportJob{}, newJobError(KindUnauthenticated, "authentication required", nil)
	}
	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return domain.ImportJob{}, newJobError(KindJobNotFound, fmt.Sprintf("import job %s not found", id), err)
		}
		return domain.ImportJob{}, newJobError(KindInternal, "failed to load import job", err)
	}
	if err := s.authorize(ctx, auth.ActionReadImports, job.CompanyID); err != nil {
		return domain.ImportJob{}, err
	}
	return job, nil
}

// ListJobErrors pages through the rejected rows of a job.
func (s *Service) ListJobErrors(ctx context.Context, id uuid.UUID, limit, offset int) ([]domain.ImportLogEntry, error) {
	if _, err := s.GetJob(ctx, id); err != nil {
		return nil, err
	}
	entries, err := s.logs.ListByJob(ctx, id, limit, offset)
	if err != nil {
		return nil, newJobError(KindInternal, "failed to list import errors", err)
	}
	return entries, nil
}

// ListCompanyJobs returns a company's import history, newest first.
func (s *Service) ListCompanyJobs(ctx context.Context, companyID uuid.UUID, limit, offset int) ([]domain.ImportJob, error) {
	if companyID == uuid.Nil {
		return nil, newJobError(KindBadInput, "company id is required", nil)
	}
	if err := s.authorize(ctx, auth.ActionReadImports, companyID); err != nil {
		return nil, err
	}
	jobs, err := s.jobs.ListByCompany(ctx, companyID, limit, offset)
	if err != nil {
		return nil, newJobError(KindInternal, "failed to list import jobs", err)
	}
	return jobs, nil
}

// JobWithErrors is a ledger entry with the first of its logged errors.
type JobWithErrors struct {
	domain.ImportJob
	Errors []domain.ImportLogEntry `json:"errors"`
}

// ListCompanyJobsWithErrors is ListCompanyJobs plus each job's first logged
// errors, read through the request's log loader in one batch.
func (s *Service) ListCompanyJobsWithErrors(ctx context.Context, companyID uuid.UUID, limit, offset int) ([]JobWithErrors, error) {
	jobs, err := s.ListCompanyJobs(ctx, companyID, limit, offset)
	if err != nil {
		return nil, err
	}

	loader := logloader.FromContext(ctx)
	if loader == nil {
		loader = logloader.NewLogLoader(s.logs, s.limits.SampleErrors)
	}
	ids := make([]uuid.UUID, len(jobs))
	for i, job := range jobs {
		ids[i] = job.ID
	}
	logs, err := loader.LoadMany(ctx, ids)
	if err != nil {
		return nil, newJobError(KindInternal, "failed to list import errors", err)
	}

	out := make([]JobWithErrors, len(jobs))
	for i, job := range jobs {
		out[i] = JobWithErrors{ImportJob: job, Errors: logs[i]}
	}
	return out, nil
}

// SubmitRequest registers an already uploaded file as a pending job.
type SubmitRequest struct {
	CompanyID   uuid.UUID
	RecordType  domain.RecordType
	StoragePath string
}

// Submit creates a pending job. Uploading the file itself is the client's job.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (domain.ImportJob, error) {
	if err := s.authorize(ctx, auth.ActionRunImport, req.CompanyID); err != nil {
		return domain.ImportJob{}, err
	}
	if req.CompanyID == uuid.Nil || req.StoragePath == "" {
		return domain.ImportJob{}, newJobError(KindBadInput, "company id and storage path are required", nil)
	}
	if _, ok := domain.LookupDescriptor(req.RecordType); !ok {
		return domain.ImportJob{}, newJobError(KindBadInput, fmt.Sprintf("unknown record type %q", req.RecordType), nil)
	}
	exists, err := s.companies.Exists(ctx, req.CompanyID)
	if err != nil {
		return domain.ImportJob{}, newJobError(KindInternal, "failed to look up company", err)
	}
	if !exists {
		return domain.ImportJob{}, newJobError(KindBadInput, fmt.Sprintf("company %s does not exist", req.CompanyID), nil)
	}

	job := domain.ImportJob{
		CompanyID:    req.CompanyID,
		DeclaredType: req.RecordType,
		StoragePath:  req.StoragePath,
		Status:       domain.ImportStatusPending,
	}
	if caller, ok := auth.CallerFromContext(ctx); ok && !caller.System {
		job.CreatedBy = &caller.UserID
	}
	created, err := s.jobs.Create(ctx, job)
	if err != nil {
		return domain.ImportJob{}, newJobError(KindInternal, "failed to create import job", err)
	}
	return created, nil
}
