package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RecordType is the declared data domain of an upload.
type RecordType string

const (
	RecordBalanceOperating  RecordType = "balance-operating"
	RecordBalanceFinancial  RecordType = "balance-financial"
	RecordCashflowOperating RecordType = "cashflow-operating"
	RecordCashflowInvesting RecordType = "cashflow-investing"
	RecordCashflowFinancing RecordType = "cashflow-financing"
	RecordDebt              RecordType = "debt"
	RecordDebtService       RecordType = "debt-service"
	RecordRatios            RecordType = "ratios"
)

// KeySource says where a record's company comes from.
type KeySource int

const (
	// KeyFromJob uses the company the job was created for.
	KeyFromJob KeySource = iota
	// KeyFromCompanyCode resolves the company_code column against the company directory.
	KeyFromCompanyCode
)

// FieldKind drives how a raw cell is normalized.
type FieldKind int

const (
	FieldCompanyCode FieldKind = iota
	FieldPeriod
	FieldMeasure
	FieldDate
	FieldText
	FieldDimension
)

func (k FieldKind) String() string {
	switch k {
	case FieldCompanyCode:
		return "company_code"
	case FieldPeriod:
		return "period"
	case FieldMeasure:
		return "measure"
	case FieldDate:
		return "date"
	case FieldText:
		return "text"
	case FieldDimension:
		return "dimension"
	default:
		return fmt.Sprintf("FieldKind(%d)", int(k))
	}
}

// FieldSpec declares one input column.
type FieldSpec struct {
	Name     string
	Kind     FieldKind
	Required bool
	// Default applies to an absent dimension; dimensions are key parts and never empty.
	Default string
	// Lower folds the value to lower case (dimension and text only).
	Lower bool
}

// FixedDimension is a key column whose value comes from the descriptor instead of the file.
type FixedDimension struct {
	Column string
	Value  string
}

// RecordDescriptor parameterizes the import pipeline for one data domain.
type RecordDescriptor struct {
	Type      RecordType
	Family    string
	Tipo      string
	Table     string
	KeySource KeySource
	Fields    []FieldSpec
	Fixed     *FixedDimension
	// Derived lists computed measure columns filled by Derive.
	Derived []string
	Derive  func(rec *NormalizedRecord)
}

// RequiredColumns returns required column names in declaration order.
func (d RecordDescriptor) RequiredColumns() []string {
	var names []string
	for _, f := range d.Fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// Field looks up a field by column name.
func (d RecordDescriptor) Field(name string) (FieldSpec, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// DimensionColumn returns the key column beyond (company_id, periodo), if any.
func (d RecordDescriptor) DimensionColumn() string {
	if d.Fixed != nil {
		return d.Fixed.Column
	}
	for _, f := range d.Fields {
		if f.Kind == FieldDimension {
			return f.Name
		}
	}
	return ""
}

// ConflictColumns is the natural key used by the upsert.
func (d RecordDescriptor) ConflictColumns() []string {
	cols := []string{"company_id", "periodo"}
	if dim := d.DimensionColumn(); dim != "" {
		cols = append(cols, dim)
	}
	return cols
}

// FieldsOfKind returns the column names of the given kind in declaration order.
func (d RecordDescriptor) FieldsOfKind(kind FieldKind) []string {
	var names []string
	for _, f := range d.Fields {
		if f.Kind == kind {
			names = append(names, f.Name)
		}
	}
	return names
}

// NormalizedRecord is a validated row ready for the upsert sink.
type NormalizedRecord struct {
	Line      int
	CompanyID uuid.UUID
	Period    string
	Dimension string
	Measures  map[string]decimal.Decimal
	Derived   map[string]decimal.NullDecimal
	Dates     map[string]*time.Time
	Texts     map[string]string
}

// NewNormalizedRecord allocates the value maps.
func NewNormalizedRecord(line int) NormalizedRecord {
	return NormalizedRecord{
		Line:     line,
		Measures: map[string]decimal.Decimal{},
		Derived:  map[string]decimal.NullDecimal{},
		Dates:    map[string]*time.Time{},
		Texts:    map[string]string{},
	}
}

// NormalizeCompanyCode is the canonical form used for company directory lookups.
func NormalizeCompanyCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
