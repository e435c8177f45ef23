package domain

import (
	"time"

	"github.com/google/uuid"
)

// ImportStatus tracks the lifecycle of an import job.
type ImportStatus string

const (
	ImportStatusPending    ImportStatus = "pending"
	ImportStatusProcessing ImportStatus = "processing"
	ImportStatusDone       ImportStatus = "done"
	ImportStatusFailed     ImportStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s ImportStatus) IsTerminal() bool {
	return s == ImportStatusDone || s == ImportStatusFailed
}

// ImportJob is the ledger row for a single uploaded file.
type ImportJob struct {
	ID           uuid.UUID      `json:"id"`
	CompanyID    uuid.UUID      `json:"company_id"`
	DeclaredType RecordType     `json:"declared_type"`
	StoragePath  string         `json:"storage_path"`
	Status       ImportStatus   `json:"status"`
	TotalRows    int            `json:"total_rows"`
	OKRows       int            `json:"ok_rows"`
	ErrorRows    int            `json:"error_rows"`
	Summary      *ImportSummary `json:"summary,omitempty"`
	CreatedBy    *uuid.UUID     `json:"created_by,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	FinishedAt   *time.Time     `json:"finished_at,omitempty"`
}

// RowErrorSample is the condensed form of a rejected row kept in the job summary.
type RowErrorSample struct {
	Row     int    `json:"row"`
	Kind    string `json:"kind"`
	Column  string `json:"column,omitempty"`
	Message string `json:"message"`
}

// ImportSummary is persisted with the terminal job status and returned to callers.
type ImportSummary struct {
	TotalRows  int              `json:"total_rows"`
	OKRows     int              `json:"ok_rows"`
	ErrorRows  int              `json:"error_rows"`
	Warnings   []string         `json:"warnings"`
	Errors     []RowErrorSample `json:"errors"`
	Fatal      string           `json:"fatal,omitempty"`
	Format     string           `json:"format,omitempty"`
	FileSHA256 string           `json:"file_sha256,omitempty"`
	DurationMS int64            `json:"duration_ms"`
}

// NewImportSummary returns a summary with non-nil collections so it encodes as arrays.
func NewImportSummary() ImportSummary {
	return ImportSummary{
		Warnings: []string{},
		Errors:   []RowErrorSample{},
	}
}

// TerminalStatus applies the completion policy: a job fails only when every
// parsed row was rejected.
func (s ImportSummary) TerminalStatus() ImportStatus {
	if s.OKRows == 0 && s.TotalRows > 0 {
		return ImportStatusFailed
	}
	return ImportStatusDone
}
