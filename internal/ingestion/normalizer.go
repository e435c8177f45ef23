package ingestion

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Garzer09/biz-data-guide-sub001/internal/domain"
	"github.com/Garzer09/biz-data-guide-sub001/pkg/validator"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Normalizer turns parsed rows into records for one descriptor and job.
type Normalizer struct {
	desc        domain.RecordDescriptor
	jobCompany  uuid.UUID
	companies   map[string]uuid.UUID
	headerCount int
	spreadsheet bool
}

// NewNormalizer builds a normalizer. companies maps normalized company codes to
// ids and is only consulted for descriptors keyed by company code.
func NewNormalizer(desc domain.RecordDescriptor, table Table, jobCompany uuid.UUID, companies map[string]uuid.UUID) *Normalizer {
	return &Normalizer{
		desc:        desc,
		jobCompany:  jobCompany,
		companies:   companies,
		headerCount: len(table.Headers),
		spreadsheet: table.Format == FormatXLSX || table.Format == FormatXLS,
	}
}

// Normalize validates one row. Checks run in a fixed order (shape, company,
// period, numbers, remaining fields) and the first failure rejects the row.
func (n *Normalizer) Normalize(row ParsedRow) (domain.NormalizedRecord, *RowError) {
	rec := domain.NewNormalizedRecord(row.Line)

	if row.Malformed {
		return rec, &RowError{Line: row.Line, Kind: KindColumnCountMismatch, Message: "malformed quoting; row could not be split into columns"}
	}
	if row.Mismatch {
		return rec, &RowError{
			Line:    row.Line,
			Kind:    KindColumnCountMismatch,
			Message: fmt.Sprintf("row has %d fields but the header has %d", row.FieldCount, n.headerCount),
		}
	}

	if rowErr := n.resolveCompany(row, &rec); rowErr != nil {
		return rec, rowErr
	}

	for _, field := range n.desc.Fields {
		if field.Kind != domain.FieldPeriod {
			continue
		}
		period, err := validator.Period(field.Name, n.calendarValue(row.Values[field.Name], "2006-01"))
		if err != nil {
			return rec, rowErrorFrom(row.Line, field.Name, err)
		}
		rec.Period = period
	}

	for _, field := range n.desc.Fields {
		if field.Kind != domain.FieldMeasure {
			continue
		}
		raw := strings.TrimSpace(row.Values[field.Name])
		if raw == "" {
			if field.Required {
				return rec, &RowError{Line: row.Line, Kind: KindInvalidNumber, Column: field.Name, Message: "value is required"}
			}
			rec.Measures[field.Name] = decimal.Zero
			continue
		}
		amount, err := validator.Amount(field.Name, raw)
		if err != nil {
			return rec, rowErrorFrom(row.Line, field.Name, err)
		}
		rec.Measures[field.Name] = amount
	}

	for _, field := range n.desc.Fields {
		raw := strings.TrimSpace(row.Values[field.Name])
		switch field.Kind {
		case domain.FieldDate:
			if raw == "" {
				if field.Required {
					return rec, &RowError{Line: row.Line, Kind: KindInvalidPeriodFormat, Column: field.Name, Message: "date is required"}
				}
				rec.Dates[field.Name] = nil
				continue
			}
			date, err := validator.Date(field.Name, n.calendarValue(raw, "2006-01-02"))
			if err != nil {
				return rec, rowErrorFrom(row.Line, field.Name, err)
			}
			rec.Dates[field.Name] = &date
		case domain.FieldText:
			if field.Lower {
				raw = strings.ToLower(raw)
			}
			rec.Texts[field.Name] = raw
		case domain.FieldDimension:
			if raw == "" {
				if field.Default == "" {
					return rec, &RowError{Line: row.Line, Kind: KindMissingValue, Column: field.Name, Message: "value is required"}
				}
				raw = field.Default
			}
			if field.Lower {
				raw = strings.ToLower(raw)
			}
			rec.Dimension = raw
		}
	}
	if n.desc.Fixed != nil {
		rec.Dimension = n.desc.Fixed.Value
	}

	if n.desc.Derive != nil {
		n.desc.Derive(&rec)
	}
	return rec, nil
}

func (n *Normalizer) resolveCompany(row ParsedRow, rec *domain.NormalizedRecord) *RowError {
	if n.desc.KeySource == domain.KeyFromJob {
		rec.CompanyID = n.jobCompany
		return nil
	}

	raw := row.Values["company_code"]
	code := domain.NormalizeCompanyCode(raw)
	if code == "" {
		return &RowError{Line: row.Line, Kind: KindCompanyNotFound, Column: "company_code", Message: "company code is empty"}
	}
	id, ok := n.companies[code]
	if !ok {
		return &RowError{Line: row.Line, Kind: KindCompanyNotFound, Column: "company_code", Message: fmt.Sprintf("company code %q not found", strings.TrimSpace(raw))}
	}
	rec.CompanyID = id
	return nil
}

// calendarValue converts spreadsheet date serials (read as raw numbers) into
// the textual layout; anything else is returned unchanged for validation.
func (n *Normalizer) calendarValue(raw, layout string) string {
	raw = strings.TrimSpace(raw)
	if !n.spreadsheet || raw == "" || strings.Contains(raw, "-") {
		return raw
	}
	serial, err := strconv.ParseFloat(raw, 64)
	if err != nil || serial <= 0 {
		return raw
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil || t.Year() < 1900 || t.Year() > 2200 {
		return raw
	}
	return t.Format(layout)
}

func rowErrorFrom(line int, column string, err error) *RowError {
	var verr *validator.ValidationError
	if !errors.As(err, &verr) {
		return &RowError{Line: line, Kind: KindInvalidNumber, Column: column, Message: err.Error()}
	}
	kind := KindInvalidNumber
	switch verr.Code {
	case validator.CodeInvalidPeriod, validator.CodeInvalidDate:
		kind = KindInvalidPeriodFormat
	case validator.CodeOutOfRange:
		kind = KindOutOfRange
	}
	return &RowError{Line: line, Kind: kind, Column: column, Message: verr.Message}
}
