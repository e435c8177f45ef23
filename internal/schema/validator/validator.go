package validator

import (
	"fmt"
	"strings"

	"github.com/Garzer09/biz-data-guide-sub001/internal/domain"
)

// MissingColumnsError lists every required column absent from a header row.
type MissingColumnsError struct {
	RecordType domain.RecordType
	Columns    []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required columns for %s: %s", e.RecordType, strings.Join(e.Columns, ", "))
}

// ValidateHeaders checks a sanitized header row against the descriptor. It returns
// the header columns the descriptor does not know about, which callers surface
// as warnings.
func ValidateHeaders(headers []string, desc domain.RecordDescriptor) ([]string, error) {
	present := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		present[h] = struct{}{}
	}

	var missing []string
	for _, name := range desc.RequiredColumns() {
		if _, ok := present[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{RecordType: desc.Type, Columns: missing}
	}

	var unknown []string
	for _, h := range headers {
		if _, ok := desc.Field(h); !ok {
			unknown = append(unknown, h)
		}
	}
	return unknown, nil
}

// ValidateDescriptor ensures a descriptor can drive the pipeline: a target table,
// unique column names, a required period and a key column matching its key source.
func ValidateDescriptor(desc domain.RecordDescriptor) error {
	if strings.TrimSpace(desc.Table) == "" {
		return fmt.Errorf("descriptor %s has no target table", desc.Type)
	}

	seen := make(map[string]struct{}, len(desc.Fields))
	periods := 0
	dimensions := 0
	hasCompanyCode := false
	for _, field := range desc.Fields {
		if strings.TrimSpace(field.Name) == "" {
			return fmt.Errorf("descriptor %s declares a field without a name", desc.Type)
		}
		if _, dup := seen[field.Name]; dup {
			return fmt.Errorf("descriptor %s declares field %s twice", desc.Type, field.Name)
		}
		seen[field.Name] = struct{}{}

		switch field.Kind {
		case domain.FieldPeriod:
			if !field.Required {
				return fmt.Errorf("descriptor %s period field %s must be required", desc.Type, field.Name)
			}
			periods++
		case domain.FieldDimension:
			if !field.Required && field.Default == "" {
				return fmt.Errorf("descriptor %s dimension %s must be required or carry a default", desc.Type, field.Name)
			}
			dimensions++
		case domain.FieldCompanyCode:
			if !field.Required {
				return fmt.Errorf("descriptor %s company code field must be required", desc.Type)
			}
			hasCompanyCode = true
		}
	}

	if periods != 1 {
		return fmt.Errorf("descriptor %s must declare exactly one period field, found %d", desc.Type, periods)
	}
	if dimensions > 1 || (dimensions == 1 && desc.Fixed != nil) {
		return fmt.Errorf("descriptor %s declares more than one key dimension", desc.Type)
	}
	if desc.KeySource == domain.KeyFromCompanyCode && !hasCompanyCode {
		return fmt.Errorf("descriptor %s resolves companies by code but has no company_code column", desc.Type)
	}
	if desc.KeySource == domain.KeyFromJob && hasCompanyCode {
		return fmt.Errorf("descriptor %s takes its company from the job but declares company_code", desc.Type)
	}
	if len(desc.Derived) > 0 && desc.Derive == nil {
		return fmt.Errorf("descriptor %s lists derived columns without a derive function", desc.Type)
	}
	return nil
}
