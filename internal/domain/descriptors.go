package domain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	FamilyBalance     = "balance"
	FamilyCashflow    = "cashflow"
	FamilyDebt        = "debt"
	FamilyDebtService = "debt-service"
	FamilyRatios      = "ratios"
)

// DefaultScenario is stored when a debt service row names no scenario.
const DefaultScenario = "base"

func required(name string, kind FieldKind) FieldSpec {
	return FieldSpec{Name: name, Kind: kind, Required: true}
}

func optional(name string, kind FieldKind) FieldSpec {
	return FieldSpec{Name: name, Kind: kind}
}

func cashflowDescriptor(t RecordType, tipo string) RecordDescriptor {
	return RecordDescriptor{
		Type:      t,
		Family:    FamilyCashflow,
		Tipo:      tipo,
		Table:     "cashflows",
		KeySource: KeyFromJob,
		Fields: []FieldSpec{
			required("periodo", FieldPeriod),
			required("entradas", FieldMeasure),
			required("salidas", FieldMeasure),
			optional("saldo_inicial", FieldMeasure),
			optional("saldo_final", FieldMeasure),
		},
		Fixed:   &FixedDimension{Column: "kind", Value: tipo},
		Derived: []string{"flujo_neto"},
		Derive: func(rec *NormalizedRecord) {
			net := rec.Measures["entradas"].Sub(rec.Measures["salidas"])
			rec.Derived["flujo_neto"] = decimal.NewNullDecimal(net)
		},
	}
}

var descriptors = map[RecordType]RecordDescriptor{
	RecordBalanceOperating: {
		Type:      RecordBalanceOperating,
		Family:    FamilyBalance,
		Tipo:      "operativo",
		Table:     "operating_balances",
		KeySource: KeyFromJob,
		Fields: []FieldSpec{
			required("periodo", FieldPeriod),
			required("clientes", FieldMeasure),
			required("inventario", FieldMeasure),
			required("proveedores", FieldMeasure),
			optional("otros_deudores", FieldMeasure),
			optional("otros_acreedores", FieldMeasure),
			optional("anticipos_clientes", FieldMeasure),
		},
	},
	RecordBalanceFinancial: {
		Type:      RecordBalanceFinancial,
		Family:    FamilyBalance,
		Tipo:      "financiero",
		Table:     "financial_balances",
		KeySource: KeyFromJob,
		Fields: []FieldSpec{
			required("periodo", FieldPeriod),
			required("activo_corriente", FieldMeasure),
			required("activo_no_corriente", FieldMeasure),
			required("pasivo_corriente", FieldMeasure),
			required("pasivo_no_corriente", FieldMeasure),
			required("patrimonio_neto", FieldMeasure),
			optional("tesoreria", FieldMeasure),
			optional("deuda_financiera_cp", FieldMeasure),
			optional("deuda_financiera_lp", FieldMeasure),
		},
	},
	RecordCashflowOperating: cashflowDescriptor(RecordCashflowOperating, "operativo"),
	RecordCashflowInvesting: cashflowDescriptor(RecordCashflowInvesting, "inversion"),
	RecordCashflowFinancing: cashflowDescriptor(RecordCashflowFinancing, "financiacion"),
	RecordDebt: {
		Type:      RecordDebt,
		Family:    FamilyDebt,
		Table:     "debts",
		KeySource: KeyFromJob,
		Fields: []FieldSpec{
			required("periodo", FieldPeriod),
			required("entidad", FieldDimension),
			required("capital_pendiente", FieldMeasure),
			required("tipo_interes", FieldMeasure),
			optional("cuota_mensual", FieldMeasure),
			optional("proximo_vencimiento", FieldDate),
			optional("descripcion", FieldText),
		},
	},
	RecordDebtService: {
		Type:      RecordDebtService,
		Family:    FamilyDebtService,
		Table:     "debt_service",
		KeySource: KeyFromCompanyCode,
		Fields: []FieldSpec{
			required("company_code", FieldCompanyCode),
			required("periodo", FieldPeriod),
			required("principal", FieldMeasure),
			required("intereses", FieldMeasure),
			required("flujo_operativo", FieldMeasure),
			{Name: "escenario", Kind: FieldDimension, Default: DefaultScenario, Lower: true},
		},
		Derived: []string{"dscr"},
		Derive: func(rec *NormalizedRecord) {
			service := rec.Measures["principal"].Add(rec.Measures["intereses"])
			if service.IsZero() {
				rec.Derived["dscr"] = decimal.NullDecimal{}
				return
			}
			rec.Derived["dscr"] = decimal.NewNullDecimal(rec.Measures["flujo_operativo"].DivRound(service, 4))
		},
	},
	RecordRatios: {
		Type:      RecordRatios,
		Family:    FamilyRatios,
		Table:     "financial_ratios",
		KeySource: KeyFromCompanyCode,
		Fields: []FieldSpec{
			required("company_code", FieldCompanyCode),
			required("periodo", FieldPeriod),
			{Name: "ratio", Kind: FieldDimension, Required: true, Lower: true},
			required("valor", FieldMeasure),
			optional("benchmark", FieldMeasure),
			optional("unidad", FieldText),
		},
	},
}

var tipoAliases = map[string]string{
	"inversión":    "inversion",
	"financiación": "financiacion",
	"operating":    "operativo",
	"financial":    "financiero",
	"investing":    "inversion",
	"financing":    "financiacion",
}

// LookupDescriptor returns the descriptor registered for t.
func LookupDescriptor(t RecordType) (RecordDescriptor, bool) {
	d, ok := descriptors[t]
	return d, ok
}

// Descriptors returns every registered descriptor ordered by type name.
func Descriptors() []RecordDescriptor {
	out := make([]RecordDescriptor, 0, len(descriptors))
	for _, d := range descriptors {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// ParseRecordType validates a declared type string.
func ParseRecordType(raw string) (RecordType, error) {
	t := RecordType(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := descriptors[t]; !ok {
		return "", fmt.Errorf("unknown record type %q", raw)
	}
	return t, nil
}

// NormalizeTipo folds accents and english aliases onto the canonical tipo.
func NormalizeTipo(tipo string) string {
	tipo = strings.ToLower(strings.TrimSpace(tipo))
	if alias, ok := tipoAliases[tipo]; ok {
		return alias
	}
	return tipo
}

// ResolveDescriptor checks a request's family and tipo against the job's declared
// type. Empty family or tipo defer to the declared type.
func ResolveDescriptor(declared RecordType, family, tipo string) (RecordDescriptor, error) {
	desc, ok := descriptors[declared]
	if !ok {
		return RecordDescriptor{}, fmt.Errorf("job declares unknown record type %q", declared)
	}
	family = strings.ToLower(strings.TrimSpace(family))
	if family != "" && family != desc.Family {
		return RecordDescriptor{}, fmt.Errorf("job declared as %s cannot be imported as %s", declared, family)
	}
	tipo = NormalizeTipo(tipo)
	if tipo != "" && tipo != desc.Tipo {
		if desc.Tipo == "" {
			return RecordDescriptor{}, fmt.Errorf("record type %s does not take a tipo, got %q", declared, tipo)
		}
		return RecordDescriptor{}, fmt.Errorf("tipo %q does not match job declared as %s", tipo, declared)
	}
	return desc, nil
}
