package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Garzer09/biz-data-guide-sub001/internal/auth"
	"github.com/Garzer09/biz-data-guide-sub001/internal/domain"
	"github.com/Garzer09/biz-data-guide-sub001/internal/metrics"
	"github.com/Garzer09/biz-data-guide-sub001/internal/repository"
	"github.com/Garzer09/biz-data-guide-sub001/internal/schema/validator"
	"github.com/Garzer09/biz-data-guide-sub001/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultFinishTimeout = 10 * time.Second

// Limits bounds a single import.
type Limits struct {
	MaxBytes      int64
	MaxRows       int
	SampleErrors  int
	ProgressEvery int
}

// DefaultLimits matches the documented upload contract.
func DefaultLimits() Limits {
	return Limits{
		MaxBytes:      10 << 20,
		MaxRows:       10000,
		SampleErrors:  10,
		ProgressEvery: 500,
	}
}

// Repositories groups the stores the pipeline reads and writes.
type Repositories struct {
	Jobs      repository.ImportJobRepository
	Logs      repository.ImportLogRepository
	Companies repository.CompanyRepository
	Facts     repository.FactRepository
}

// Service runs import jobs: it downloads the job's file, validates and
// normalizes every row and upserts the accepted ones.
type Service struct {
	jobs       repository.ImportJobRepository
	logs       repository.ImportLogRepository
	companies  repository.CompanyRepository
	facts      repository.FactRepository
	downloader storage.Downloader
	authorizer auth.Authorizer
	logger     *zap.Logger
	limits     Limits
	now        func() time.Time

	// finishTimeout bounds each terminal ledger write.
	finishTimeout time.Duration
}

// Option customizes the service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLimits overrides the default limits; zero fields keep their defaults.
func WithLimits(limits Limits) Option {
	return func(s *Service) {
		if limits.MaxBytes > 0 {
			s.limits.MaxBytes = limits.MaxBytes
		}
		if limits.MaxRows > 0 {
			s.limits.MaxRows = limits.MaxRows
		}
		if limits.SampleErrors > 0 {
			s.limits.SampleErrors = limits.SampleErrors
		}
		if limits.ProgressEvery > 0 {
			s.limits.ProgressEvery = limits.ProgressEvery
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a new import service.
func NewService(repos Repositories, downloader storage.Downloader, authorizer auth.Authorizer, opts ...Option) *Service {
	s := &Service{
		jobs:       repos.Jobs,
		logs:       repos.Logs,
		companies:  repos.Companies,
		facts:      repos.Facts,
		downloader: downloader,
		authorizer: authorizer,
		logger:     zap.NewNop(),
		limits:     DefaultLimits(),
		now:        time.Now,

		finishTimeout: defaultFinishTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunRequest identifies the job to process. Family and Tipo are optional and
// must agree with the job's declared type when set.
type RunRequest struct {
	JobID  uuid.UUID
	Family string
	Tipo   string
}

// RunResult is returned for every invocation that got past the job lookup.
type RunResult struct {
	JobID   uuid.UUID            `json:"job_id"`
	Status  domain.ImportStatus  `json:"status"`
	Summary domain.ImportSummary `json:"summary"`
}

// Run processes one pending job end to end. The returned error is a *JobError
// for every expected failure; when the job itself was failed the result still
// carries the terminal status and summary.
func (s *Service) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	started := s.now()

	if err := s.authorize(ctx, auth.ActionRunImport, uuid.Nil); err != nil {
		return RunResult{}, err
	}
	if req.JobID == uuid.Nil {
		return RunResult{}, newJobError(KindBadInput, "job_id is required", nil)
	}

	job, err := s.jobs.GetByID(ctx, req.JobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return RunResult{}, newJobError(KindJobNotFound, fmt.Sprintf("import job %s not found", req.JobID), err)
		}
		return RunResult{}, newJobError(KindInternal, "failed to load import job", err)
	}

	desc, err := domain.ResolveDescriptor(job.DeclaredType, req.Family, req.Tipo)
	if err != nil {
		return RunResult{}, newJobError(KindBadInput, fmt.Sprintf("import job %s", job.ID), err)
	}

	if err := s.jobs.MarkProcessing(ctx, job.ID); err != nil {
		if errors.Is(err, repository.ErrJobStatusConflict) {
			return RunResult{}, newJobError(KindJobNotPending, fmt.Sprintf("import job %s is %s, not pending", job.ID, job.Status), err)
		}
		return RunResult{}, newJobError(KindInternal, "failed to mark import job processing", err)
	}

	log := s.logger.With(
		zap.String("job_id", job.ID.String()),
		zap.String("company_id", job.CompanyID.String()),
		zap.String("record_type", string(desc.Type)),
	)
	log.Info("import started", zap.String("storage_path", job.StoragePath))

	summary, runErr := s.process(ctx, job, desc, log)
	summary.DurationMS = s.now().Sub(started).Milliseconds()

	status := summary.TerminalStatus()
	var fatal *domain.ImportLogEntry
	if runErr != nil {
		status = domain.ImportStatusFailed
		summary.Fatal = runErr.Error()
		entry := logEntry(job, nil, KindOf(runErr), "", runErr.Error())
		fatal = &entry
	}

	if err := s.finish(ctx, job.ID, status, summary, fatal, log); err != nil {
		return RunResult{}, newJobError(KindInternal, fmt.Sprintf("import job %s could not be completed", job.ID), err)
	}
	metrics.ObserveJob(string(desc.Type), string(status), summary.OKRows, summary.ErrorRows, s.now().Sub(started))

	result := RunResult{JobID: job.ID, Status: status, Summary: summary}
	if runErr != nil {
		log.Warn("import failed", zap.String("kind", string(KindOf(runErr))), zap.Error(runErr))
		return result, runErr
	}
	log.Info("import finished",
		zap.String("status", string(status)),
		zap.Int("total_rows", summary.TotalRows),
		zap.Int("ok_rows", summary.OKRows),
		zap.Int("error_rows", summary.ErrorRows),
	)
	return result, nil
}

// process runs the file through the pipeline. Any returned error fails the job.
func (s *Service) process(ctx context.Context, job domain.ImportJob, desc domain.RecordDescriptor, log *zap.Logger) (domain.ImportSummary, error) {
	summary := domain.NewImportSummary()

	payload, err := s.downloader.Download(ctx, job.StoragePath, s.limits.MaxBytes)
	if err != nil {
		if errors.Is(err, storage.ErrObjectTooLarge) {
			return summary, newJobError(KindInputLimitExceeded, fmt.Sprintf("file exceeds the %d byte limit", s.limits.MaxBytes), err)
		}
		return summary, newJobError(KindDownloadFailed, fmt.Sprintf("failed to download %s", job.StoragePath), err)
	}
	digest := sha256.Sum256(payload)
	summary.FileSHA256 = hex.EncodeToString(digest[:])

	table, warnings, err := s.prepare(job.StoragePath, payload, desc)
	summary.Format = string(table.Format)
	summary.Warnings = append(summary.Warnings, warnings...)
	if err != nil {
		return summary, err
	}
	summary.TotalRows = len(table.Rows)

	companies, err := s.companyIndex(ctx, desc)
	if err != nil {
		return summary, err
	}
	normalizer := NewNormalizer(desc, table, job.CompanyID, companies)

	for idx, row := range table.Rows {
		if err := ctx.Err(); err != nil {
			return summary, newJobError(KindInterrupted, fmt.Sprintf("import interrupted after %d of %d rows", idx, len(table.Rows)), err)
		}

		rec, rowErr := normalizer.Normalize(row)
		if rowErr == nil {
			if err := s.facts.Upsert(ctx, desc, job.ID, rec); err != nil {
				if ctx.Err() != nil {
					return summary, newJobError(KindInterrupted, fmt.Sprintf("import interrupted after %d of %d rows", idx, len(table.Rows)), ctx.Err())
				}
				rowErr = &RowError{Line: row.Line, Kind: KindRowWriteConflict, Message: err.Error()}
			}
		}

		if rowErr != nil {
			summary.ErrorRows++
			s.rejectRow(ctx, job, &summary, rowErr)
		} else {
			summary.OKRows++
		}

		if s.limits.ProgressEvery > 0 && (idx+1)%s.limits.ProgressEvery == 0 && idx+1 < len(table.Rows) {
			if err := s.jobs.UpdateProgress(ctx, job.ID, summary.TotalRows, summary.OKRows, summary.ErrorRows); err != nil {
				log.Warn("failed to record import progress", zap.Error(err))
			}
		}
	}
	return summary, nil
}

// prepare parses and schema-checks a payload. It is shared with Preview.
func (s *Service) prepare(fileName string, payload []byte, desc domain.RecordDescriptor) (Table, []string, error) {
	format, err := DetectFormat(fileName, payload)
	if err != nil {
		return Table{}, nil, newJobError(KindUnsupportedFormat, fmt.Sprintf("cannot import %s", fileName), err)
	}

	table, err := Parse(payload, format)
	if err != nil {
		return Table{Format: format}, nil, err
	}
	warnings := append([]string{}, table.Warnings...)

	if s.limits.MaxRows > 0 && len(table.Rows) > s.limits.MaxRows {
		return table, warnings, newJobError(KindInputLimitExceeded, fmt.Sprintf("file has %d data rows; the limit is %d", len(table.Rows), s.limits.MaxRows), nil)
	}

	unknown, err := validator.ValidateHeaders(table.Headers, desc)
	if err != nil {
		return table, warnings, newJobError(KindMissingRequiredColumns, "header validation failed", err)
	}
	if len(unknown) > 0 {
		warnings = append(warnings, fmt.Sprintf("ignored unknown columns: %s", strings.Join(unknown, ", ")))
	}
	return table, warnings, nil
}

func (s *Service) companyIndex(ctx context.Context, desc domain.RecordDescriptor) (map[string]uuid.UUID, error) {
	if desc.KeySource != domain.KeyFromCompanyCode {
		return nil, nil
	}
	index, err := s.companies.CodeIndex(ctx)
	if err != nil {
		return nil, newJobError(KindInternal, "failed to load company directory", err)
	}
	return index, nil
}

func (s *Service) rejectRow(ctx context.Context, job domain.ImportJob, summary *domain.ImportSummary, rowErr *RowError) {
	metrics.ObserveRejection(string(rowErr.Kind))
	if len(summary.Errors) < s.limits.SampleErrors {
		summary.Errors = append(summary.Errors, domain.RowErrorSample{
			Row:     rowErr.Line,
			Kind:    string(rowErr.Kind),
			Column:  rowErr.Column,
			Message: rowErr.Error(),
		})
	}
	line := rowErr.Line
	s.recordLog(ctx, job, &line, rowErr.Kind, rowErr.Column, rowErr.Error())
}

func (s *Service) recordLog(ctx context.Context, job domain.ImportJob, rowNumber *int, kind ErrorKind, column, message string) {
	if s.logs == nil {
		return
	}
	if err := s.logs.Record(context.WithoutCancel(ctx), logEntry(job, rowNumber, kind, column, message)); err != nil {
		s.logger.Warn("failed to record import log entry", zap.String("job_id", job.ID.String()), zap.Error(err))
	}
}

func logEntry(job domain.ImportJob, rowNumber *int, kind ErrorKind, column, message string) domain.ImportLogEntry {
	return domain.ImportLogEntry{
		JobID:        job.ID,
		CompanyID:    job.CompanyID,
		RowNumber:    rowNumber,
		Kind:         string(kind),
		Column:       column,
		ErrorMessage: message,
	}
}

// finish writes the terminal status. A job-fatal error is written together
// with its log entry. If the write fails, one best-effort failed write
// without the entry follows.
func (s *Service) finish(ctx context.Context, id uuid.UUID, status domain.ImportStatus, summary domain.ImportSummary, fatal *domain.ImportLogEntry, log *zap.Logger) error {
	err := s.writeTerminal(ctx, id, status, summary, fatal)
	if err == nil {
		return nil
	}
	log.Error("failed to record terminal status", zap.String("status", string(status)), zap.Error(err))
	if errors.Is(err, repository.ErrJobStatusConflict) || (status == domain.ImportStatusFailed && fatal == nil) {
		return err
	}

	summary.Fatal = fmt.Sprintf("could not record final status %s: %v", status, err)
	if retryErr := s.writeTerminal(ctx, id, domain.ImportStatusFailed, summary, nil); retryErr != nil {
		log.Error("failed to record fallback failed status; job left processing", zap.Error(retryErr))
	}
	return err
}

// writeTerminal runs on a context detached from the request, so a
// disconnecting client cannot strand the job, with its own deadline per attempt.
func (s *Service) writeTerminal(ctx context.Context, id uuid.UUID, status domain.ImportStatus, summary domain.ImportSummary, fatal *domain.ImportLogEntry) error {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.finishTimeout)
	defer cancel()
	if fatal != nil {
		return s.jobs.Fail(writeCtx, id, summary, *fatal)
	}
	return s.jobs.Finish(writeCtx, id, status, summary)
}

func (s *Service) authorize(ctx context.Context, action auth.Action, companyID uuid.UUID) error {
	caller, ok := auth.CallerFromContext(ctx)
	if !ok {
		return newJobError(KindUnauthenticated, "authentication required", nil)
	}
	allowed, err := s.authorizer.Authorize(ctx, auth.Request{Caller: caller, Action: action, CompanyID: companyID})
	if err != nil {
		return newJobError(KindInternal, "authorization check failed", err)
	}
	if !allowed {
		return newJobError(KindUnauthorized, "caller is not allowed to perform this action", nil)
	}
	return nil
}
