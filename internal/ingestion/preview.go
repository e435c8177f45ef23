package ingestion

import (
	"context"
	"fmt"
	"io"

	"github.com/Garzer09/biz-data-guide-sub001/internal/auth"
	"github.com/Garzer09/biz-data-guide-sub001/internal/domain"

	"github.com/google/uuid"
)

const defaultPreviewLimit = 20

// PreviewRequest describes a dry run over an uploaded file.
type PreviewRequest struct {
	RecordType domain.RecordType
	CompanyID  uuid.UUID
	FileName   string
	Data       io.Reader
	Limit      int
}

// PreviewRecord is a normalized row as it would be stored.
type PreviewRecord struct {
	Row       int                `json:"row"`
	CompanyID uuid.UUID          `json:"company_id"`
	Period    string             `json:"periodo"`
	Dimension string             `json:"dimension,omitempty"`
	Measures  map[string]string  `json:"measures"`
	Texts     map[string]string  `json:"texts,omitempty"`
	Dates     map[string]*string `json:"dates,omitempty"`
}

// PreviewResult reports what Run would do with the file, without writing.
type PreviewResult struct {
	RecordType domain.RecordType       `json:"record_type"`
	Format     string                  `json:"format"`
	Headers    []string                `json:"headers"`
	TotalRows  int                     `json:"total_rows"`
	OKRows     int                     `json:"ok_rows"`
	ErrorRows  int                     `json:"error_rows"`
	Warnings   []string                `json:"warnings"`
	Errors     []domain.RowErrorSample `json:"errors"`
	Records    []PreviewRecord         `json:"records"`
}

// Preview parses, validates and normalizes a file without touching the ledger
// or fact tables. Rows keyed by the job company use CompanyID.
func (s *Service) Preview(ctx context.Context, req PreviewRequest) (PreviewResult, error) {
	if err := s.authorize(ctx, auth.ActionRunImport, req.CompanyID); err != nil {
		return PreviewResult{}, err
	}

	desc, ok := domain.LookupDescriptor(req.RecordType)
	if !ok {
		return PreviewResult{}, newJobError(KindBadInput, fmt.Sprintf("unknown record type %q", req.RecordType), nil)
	}
	if desc.KeySource == domain.KeyFromJob && req.CompanyID == uuid.Nil {
		return PreviewResult{}, newJobError(KindBadInput, fmt.Sprintf("company_id is required to preview %s", desc.Type), nil)
	}
	if req.Data == nil {
		return PreviewResult{}, newJobError(KindBadInput, "file is required", nil)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultPreviewLimit
	}

	var reader io.Reader = req.Data
	if s.limits.MaxBytes > 0 {
		reader = io.LimitReader(req.Data, s.limits.MaxBytes+1)
	}
	payload, err := io.ReadAll(reader)
	if err != nil {
		return PreviewResult{}, newJobError(KindBadInput, "failed to read upload", err)
	}
	if s.limits.MaxBytes > 0 && int64(len(payload)) > s.limits.MaxBytes {
		return PreviewResult{}, newJobError(KindInputLimitExceeded, fmt.Sprintf("file exceeds the %d byte limit", s.limits.MaxBytes), nil)
	}

	table, warnings, err := s.prepare(req.FileName, payload, desc)
	if err != nil {
		return PreviewResult{}, err
	}

	companies, err := s.companyIndex(ctx, desc)
	if err != nil {
		return PreviewResult{}, err
	}
	normalizer := NewNormalizer(desc, table, req.CompanyID, companies)

	result := PreviewResult{
		RecordType: desc.Type,
		Format:     string(table.Format),
		Headers:    table.Headers,
		TotalRows:  len(table.Rows),
		Warnings:   warnings,
		Errors:     []domain.RowErrorSample{},
		Records:    []PreviewRecord{},
	}
	if result.Warnings == nil {
		result.Warnings = []string{}
	}

	for _, row := range table.Rows {
		rec, rowErr := normalizer.Normalize(row)
		if rowErr != nil {
			result.ErrorRows++
			if len(result.Errors) < limit {
				result.Errors = append(result.Errors, domain.RowErrorSample{
					Row:     rowErr.Line,
					Kind:    string(rowErr.Kind),
					Column:  rowErr.Column,
					Message: rowErr.Error(),
				})
			}
			continue
		}
		result.OKRows++
		if len(result.Records) < limit {
			result.Records = append(result.Records, previewRecord(rec))
		}
	}
	return result, nil
}

func previewRecord(rec domain.NormalizedRecord) PreviewRecord {
	out := PreviewRecord{
		Row:       rec.Line,
		CompanyID: rec.CompanyID,
		Period:    rec.Period,
		Dimension: rec.Dimension,
		Measures:  make(map[string]string, len(rec.Measures)+len(rec.Derived)),
		Texts:     rec.Texts,
		Dates:     make(map[string]*string, len(rec.Dates)),
	}
	for name, value := range rec.Measures {
		out.Measures[name] = value.String()
	}
	for name, value := range rec.Derived {
		if value.Valid {
			out.Measures[name] = value.Decimal.String()
		}
	}
	for name, value := range rec.Dates {
		if value == nil {
			out.Dates[name] = nil
			continue
		}
		formatted := value.Format("2006-01-02")
		out.Dates[name] = &formatted
	}
	return out
}
