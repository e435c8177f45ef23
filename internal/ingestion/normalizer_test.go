package ingestion

import (
	"testing"

	"github.com/Garzer09/biz-data-guide-sub001/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func normalizerFor(t *testing.T, recordType domain.RecordType, format Format, headers []string, companies map[string]uuid.UUID) (*Normalizer, uuid.UUID) {
	t.Helper()
	desc, ok := domain.LookupDescriptor(recordType)
	require.True(t, ok)
	jobCompany := uuid.New()
	return NewNormalizer(desc, Table{Format: format, Headers: headers}, jobCompany, companies), jobCompany
}

func TestNormalizeDebtRow(t *testing.T) {
	headers := []string{"periodo", "entidad", "capital_pendiente", "tipo_interes", "proximo_vencimiento", "descripcion"}
	n, company := normalizerFor(t, domain.RecordDebt, FormatCSV, headers, nil)

	rec, rowErr := n.Normalize(ParsedRow{Line: 2, Values: map[string]string{
		"periodo":             "2024-03",
		"entidad":             "Banco Uno",
		"capital_pendiente":   "125000.50",
		"tipo_interes":        "3.25",
		"proximo_vencimiento": "2025-06-30",
		"descripcion":         "Préstamo ICO",
	}})
	require.Nil(t, rowErr)
	assert.Equal(t, company, rec.CompanyID)
	assert.Equal(t, "2024-03", rec.Period)
	assert.Equal(t, "Banco Uno", rec.Dimension)
	assert.Equal(t, "125000.5", rec.Measures["capital_pendiente"].String())
	assert.True(t, rec.Measures["cuota_mensual"].IsZero())
	require.NotNil(t, rec.Dates["proximo_vencimiento"])
	assert.Equal(t, "2025-06-30", rec.Dates["proximo_vencimiento"].Format("2006-01-02"))
	assert.Equal(t, "Préstamo ICO", rec.Texts["descripcion"])
}

func TestNormalizeRejections(t *testing.T) {
	headers := []string{"periodo", "entidad", "capital_pendiente", "tipo_interes", "cuota_mensual", "proximo_vencimiento"}
	valid := func() map[string]string {
		return map[string]string{
			"periodo":           "2024-03",
			"entidad":           "Banco Uno",
			"capital_pendiente": "100",
			"tipo_interes":      "3",
		}
	}

	tests := []struct {
		name   string
		mutate func(map[string]string)
		kind   ErrorKind
		column string
	}{
		{"bad period", func(v map[string]string) { v["periodo"] = "2024-3" }, KindInvalidPeriodFormat, "periodo"},
		{"empty required measure", func(v map[string]string) { v["tipo_interes"] = "" }, KindInvalidNumber, "tipo_interes"},
		{"grouped thousands", func(v map[string]string) { v["capital_pendiente"] = "1,000" }, KindInvalidNumber, "capital_pendiente"},
		{"bad optional measure", func(v map[string]string) { v["cuota_mensual"] = "n/a" }, KindInvalidNumber, "cuota_mensual"},
		{"too large", func(v map[string]string) { v["capital_pendiente"] = "1000000000000.01" }, KindOutOfRange, "capital_pendiente"},
		{"bad date", func(v map[string]string) { v["proximo_vencimiento"] = "2025-02-30" }, KindInvalidPeriodFormat, "proximo_vencimiento"},
		{"missing dimension", func(v map[string]string) { v["entidad"] = "" }, KindMissingValue, "entidad"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, _ := normalizerFor(t, domain.RecordDebt, FormatCSV, headers, nil)
			values := valid()
			tt.mutate(values)

			_, rowErr := n.Normalize(ParsedRow{Line: 7, Values: values})
			require.NotNil(t, rowErr)
			assert.Equal(t, tt.kind, rowErr.Kind)
			assert.Equal(t, tt.column, rowErr.Column)
			assert.Equal(t, 7, rowErr.Line)
		})
	}
}

func TestNormalizeChecksShapeFirst(t *testing.T) {
	n, _ := normalizerFor(t, domain.RecordBalanceOperating, FormatCSV, []string{"periodo", "clientes", "inventario", "proveedores"}, nil)

	_, rowErr := n.Normalize(ParsedRow{Line: 3, Values: map[string]string{"periodo": "bad"}, Mismatch: true, FieldCount: 1})
	require.NotNil(t, rowErr)
	assert.Equal(t, KindColumnCountMismatch, rowErr.Kind)
	assert.Equal(t, "row 3: row has 1 fields but the header has 4", rowErr.Error())
}

func TestNormalizeCompanyCodes(t *testing.T) {
	acme := uuid.New()
	headers := []string{"company_code", "periodo", "ratio", "valor", "unidad"}
	n, _ := normalizerFor(t, domain.RecordRatios, FormatCSV, headers, map[string]uuid.UUID{"ACME": acme})

	rec, rowErr := n.Normalize(ParsedRow{Line: 2, Values: map[string]string{
		"company_code": " acme ",
		"periodo":      "2024-12",
		"ratio":        "Liquidez",
		"valor":        "1.35",
		"unidad":       "x",
	}})
	require.Nil(t, rowErr)
	assert.Equal(t, acme, rec.CompanyID)
	assert.Equal(t, "liquidez", rec.Dimension)
	assert.True(t, rec.Measures["benchmark"].IsZero())

	_, rowErr = n.Normalize(ParsedRow{Line: 3, Values: map[string]string{
		"company_code": "OTHER",
		"periodo":      "2024-12",
		"ratio":        "liquidez",
		"valor":        "1",
	}})
	require.NotNil(t, rowErr)
	assert.Equal(t, KindCompanyNotFound, rowErr.Kind)
}

func TestNormalizeDebtServiceDerivesCoverage(t *testing.T) {
	acme := uuid.New()
	headers := []string{"company_code", "periodo", "principal", "intereses", "flujo_operativo", "escenario"}
	n, _ := normalizerFor(t, domain.RecordDebtService, FormatCSV, headers, map[string]uuid.UUID{"ACME": acme})

	rec, rowErr := n.Normalize(ParsedRow{Line: 2, Values: map[string]string{
		"company_code": "ACME", "periodo": "2024-01", "principal": "0", "intereses": "0", "flujo_operativo": "500", "escenario": "Estres",
	}})
	require.Nil(t, rowErr)
	assert.Equal(t, "estres", rec.Dimension)
	assert.False(t, rec.Derived["dscr"].Valid, "coverage is undefined without debt service")

	rec, rowErr = n.Normalize(ParsedRow{Line: 3, Values: map[string]string{
		"company_code": "ACME", "periodo": "2024-02", "principal": "300", "intereses": "100", "flujo_operativo": "500",
	}})
	require.Nil(t, rowErr)
	assert.Equal(t, domain.DefaultScenario, rec.Dimension)
	assert.Equal(t, "1.25", rec.Derived["dscr"].Decimal.String())
}

func TestNormalizeCashflowFixedKind(t *testing.T) {
	n, company := normalizerFor(t, domain.RecordCashflowFinancing, FormatCSV, []string{"periodo", "entradas", "salidas"}, nil)

	rec, rowErr := n.Normalize(ParsedRow{Line: 2, Values: map[string]string{"periodo": "2024-06", "entradas": "10.5", "salidas": "20"}})
	require.Nil(t, rowErr)
	assert.Equal(t, company, rec.CompanyID)
	assert.Equal(t, "financiacion", rec.Dimension)
	assert.Equal(t, "-9.5", rec.Derived["flujo_neto"].Decimal.String())
}

func TestNormalizeSpreadsheetSerialDates(t *testing.T) {
	headers := []string{"periodo", "entidad", "capital_pendiente", "tipo_interes", "proximo_vencimiento"}
	n, _ := normalizerFor(t, domain.RecordDebt, FormatXLSX, headers, nil)

	rec, rowErr := n.Normalize(ParsedRow{Line: 2, Values: map[string]string{
		"periodo":             "45292",
		"entidad":             "Banco",
		"capital_pendiente":   "1",
		"tipo_interes":        "1",
		"proximo_vencimiento": "45838",
	}})
	require.Nil(t, rowErr)
	assert.Equal(t, "2024-01", rec.Period)
	assert.Equal(t, "2025-06-30", rec.Dates["proximo_vencimiento"].Format("2006-01-02"))

	_, rowErr = n.Normalize(ParsedRow{Line: 3, Values: map[string]string{
		"periodo": "202401", "entidad": "Banco", "capital_pendiente": "1", "tipo_interes": "1",
	}})
	require.NotNil(t, rowErr)
	assert.Equal(t, KindInvalidPeriodFormat, rowErr.Kind)
}

func TestNormalizeCSVDoesNotConvertSerials(t *testing.T) {
	n, _ := normalizerFor(t, domain.RecordBalanceOperating, FormatCSV, []string{"periodo", "clientes", "inventario", "proveedores"}, nil)

	_, rowErr := n.Normalize(ParsedRow{Line: 2, Values: map[string]string{"periodo": "45292", "clientes": "1", "inventario": "1", "proveedores": "1"}})
	require.NotNil(t, rowErr)
	assert.Equal(t, KindInvalidPeriodFormat, rowErr.Kind)
}
