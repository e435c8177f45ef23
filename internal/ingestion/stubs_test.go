package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Garzer09/biz-data-guide-sub001/internal/auth"
	"github.com/Garzer09/biz-data-guide-sub001/internal/domain"
	"github.com/Garzer09/biz-data-guide-sub001/internal/repository"
	"github.com/Garzer09/biz-data-guide-sub001/internal/storage"

	"github.com/google/uuid"
)

type stubJobRepo struct {
	jobs        map[uuid.UUID]*domain.ImportJob
	getCalls    int
	finishCalls int
	finishErrs  []error
	progress    [][3]int

	// logs receives the entries written by Fail.
	logs *stubLogRepo

	// blockFinish makes the next n Finish calls wait for their deadline.
	blockFinish   int
	finishCtxErrs []error
}

func newStubJobRepo() *stubJobRepo {
	return &stubJobRepo{jobs: map[uuid.UUID]*domain.ImportJob{}}
}

func (s *stubJobRepo) add(companyID uuid.UUID, declared domain.RecordType, path string) *domain.ImportJob {
	job := &domain.ImportJob{
		ID:           uuid.New(),
		CompanyID:    companyID,
		DeclaredType: declared,
		StoragePath:  path,
		Status:       domain.ImportStatusPending,
	}
	s.jobs[job.ID] = job
	return job
}

func (s *stubJobRepo) Create(ctx context.Context, job domain.ImportJob) (domain.ImportJob, error) {
	job.ID = uuid.New()
	job.Status = domain.ImportStatusPending
	s.jobs[job.ID] = &job
	return job, nil
}

func (s *stubJobRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.ImportJob, error) {
	s.getCalls++
	job, ok := s.jobs[id]
	if !ok {
		return domain.ImportJob{}, repository.ErrJobNotFound
	}
	return *job, nil
}

func (s *stubJobRepo) ListByCompany(ctx context.Context, companyID uuid.UUID, limit int, offset int) ([]domain.ImportJob, error) {
	var out []domain.ImportJob
	for _, job := range s.jobs {
		if job.CompanyID == companyID {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (s *stubJobRepo) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	job, ok := s.jobs[id]
	if !ok || job.Status != domain.ImportStatusPending {
		return repository.ErrJobStatusConflict
	}
	job.Status = domain.ImportStatusProcessing
	return nil
}

func (s *stubJobRepo) UpdateProgress(ctx context.Context, id uuid.UUID, totalRows int, okRows int, errorRows int) error {
	s.progress = append(s.progress, [3]int{totalRows, okRows, errorRows})
	return nil
}

func (s *stubJobRepo) Finish(ctx context.Context, id uuid.UUID, status domain.ImportStatus, summary domain.ImportSummary) error {
	s.finishCalls++
	s.finishCtxErrs = append(s.finishCtxErrs, ctx.Err())
	if s.blockFinish > 0 {
		s.blockFinish--
		<-ctx.Done()
		return ctx.Err()
	}
	if len(s.finishErrs) > 0 {
		err := s.finishErrs[0]
		s.finishErrs = s.finishErrs[1:]
		if err != nil {
			return err
		}
	}
	job, ok := s.jobs[id]
	if !ok || job.Status != domain.ImportStatusProcessing {
		return repository.ErrJobStatusConflict
	}
	job.Status = status
	job.Summary = &summary
	job.TotalRows, job.OKRows, job.ErrorRows = summary.TotalRows, summary.OKRows, summary.ErrorRows
	return nil
}

func (s *stubJobRepo) Fail(ctx context.Context, id uuid.UUID, summary domain.ImportSummary, entry domain.ImportLogEntry) error {
	if err := s.Finish(ctx, id, domain.ImportStatusFailed, summary); err != nil {
		return err
	}
	if s.logs != nil {
		s.logs.entries = append(s.logs.entries, entry)
	}
	return nil
}

func (s *stubJobRepo) FailStale(ctx context.Context, before time.Time, reason string) ([]uuid.UUID, error) {
	return nil, nil
}

type stubLogRepo struct {
	entries    []domain.ImportLogEntry
	batchCalls [][]uuid.UUID
}

func (s *stubLogRepo) Record(ctx context.Context, entry domain.ImportLogEntry) error {
	s.entries = append(s.entries, entry)
	return nil
}

func (s *stubLogRepo) ListByJob(ctx context.Context, jobID uuid.UUID, limit int, offset int) ([]domain.ImportLogEntry, error) {
	var out []domain.ImportLogEntry
	for _, entry := range s.entries {
		if entry.JobID == jobID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (s *stubLogRepo) ListByJobs(ctx context.Context, jobIDs []uuid.UUID, perJob int) (map[uuid.UUID][]domain.ImportLogEntry, error) {
	s.batchCalls = append(s.batchCalls, jobIDs)
	out := map[uuid.UUID][]domain.ImportLogEntry{}
	for _, id := range jobIDs {
		for _, entry := range s.entries {
			if entry.JobID == id && len(out[id]) < perJob {
				out[id] = append(out[id], entry)
			}
		}
	}
	return out, nil
}

type stubCompanyRepo struct {
	index     map[string]uuid.UUID
	calls     int
	companies map[uuid.UUID]bool
}

func (s *stubCompanyRepo) CodeIndex(ctx context.Context) (map[string]uuid.UUID, error) {
	s.calls++
	return s.index, nil
}

func (s *stubCompanyRepo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.companies[id], nil
}

type storedFact struct {
	jobID  uuid.UUID
	record domain.NormalizedRecord
}

type stubFactRepo struct {
	rows    map[string]storedFact
	upserts int
	// failPeriods makes upserts for these periods fail like a constraint violation.
	failPeriods map[string]bool
}

func newStubFactRepo() *stubFactRepo {
	return &stubFactRepo{rows: map[string]storedFact{}, failPeriods: map[string]bool{}}
}

func factKey(table string, companyID uuid.UUID, period, dimension string) string {
	return fmt.Sprintf("%s|%s|%s|%s", table, companyID, period, dimension)
}

func (s *stubFactRepo) Upsert(ctx context.Context, desc domain.RecordDescriptor, jobID uuid.UUID, rec domain.NormalizedRecord) error {
	s.upserts++
	if s.failPeriods[rec.Period] {
		return errors.New(`upsert into ` + desc.Table + `: ERROR: value violates check constraint (SQLSTATE 23514)`)
	}
	s.rows[factKey(desc.Table, rec.CompanyID, rec.Period, rec.Dimension)] = storedFact{jobID: jobID, record: rec}
	return nil
}

type stubDownloader struct {
	files map[string][]byte
	err   error
}

func (s *stubDownloader) Download(ctx context.Context, path string, maxBytes int64) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	data, ok := s.files[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrObjectNotFound, path)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, storage.ErrObjectTooLarge
	}
	return data, nil
}

type stubAuthorizer struct {
	deny     bool
	requests []auth.Request
}

func (s *stubAuthorizer) Authorize(ctx context.Context, req auth.Request) (bool, error) {
	s.requests = append(s.requests, req)
	return !s.deny, nil
}

type fixture struct {
	service    *Service
	jobs       *stubJobRepo
	logs       *stubLogRepo
	companies  *stubCompanyRepo
	facts      *stubFactRepo
	downloader *stubDownloader
	authorizer *stubAuthorizer
}

func newFixture(opts ...Option) *fixture {
	f := &fixture{
		jobs:       newStubJobRepo(),
		logs:       &stubLogRepo{},
		companies:  &stubCompanyRepo{index: map[string]uuid.UUID{}, companies: map[uuid.UUID]bool{}},
		facts:      newStubFactRepo(),
		downloader: &stubDownloader{files: map[string][]byte{}},
		authorizer: &stubAuthorizer{},
	}
	f.jobs.logs = f.logs
	f.service = NewService(Repositories{
		Jobs:      f.jobs,
		Logs:      f.logs,
		Companies: f.companies,
		Facts:     f.facts,
	}, f.downloader, f.authorizer, opts...)
	return f
}

// upload registers file contents and a pending job pointing at them.
func (f *fixture) upload(companyID uuid.UUID, declared domain.RecordType, path string, contents string) *domain.ImportJob {
	f.downloader.files[path] = []byte(contents)
	return f.jobs.add(companyID, declared, path)
}

func adminContext() context.Context {
	return auth.ContextWithCaller(context.Background(), auth.Caller{UserID: uuid.New()})
}

var _ repository.ImportJobRepository = (*stubJobRepo)(nil)
var _ repository.ImportLogRepository = (*stubLogRepo)(nil)
var _ repository.CompanyRepository = (*stubCompanyRepo)(nil)
var _ repository.FactRepository = (*stubFactRepo)(nil)
var _ storage.Downloader = (*stubDownloader)(nil)
var _ auth.Authorizer = (*stubAuthorizer)(nil)
