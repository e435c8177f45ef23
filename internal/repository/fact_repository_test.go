package repository

import (
	"strings"
	"testing"

	"github.com/Garzer09/biz-data-guide-sub001/internal/domain"
)

func TestBuildUpsertForDebtService(t *testing.T) {
	desc, _ := domain.LookupDescriptor(domain.RecordDebtService)
	stmt := buildUpsert(desc)

	want := `INSERT INTO "debt_service" ("company_id", "periodo", "escenario", "principal", "intereses", "flujo_operativo", "dscr", "source_job_id") ` +
		`VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ` +
		`ON CONFLICT ("company_id", "periodo", "escenario") DO UPDATE SET ` +
		`"principal" = EXCLUDED."principal", "intereses" = EXCLUDED."intereses", "flujo_operativo" = EXCLUDED."flujo_operativo", ` +
		`"dscr" = EXCLUDED."dscr", "source_job_id" = EXCLUDED."source_job_id", "updated_at" = now()`
	if stmt.sql != want {
		t.Fatalf("unexpected statement:\n got: %s\nwant: %s", stmt.sql, want)
	}
	if !stmt.hasDim {
		t.Fatalf("expected escenario to be bound as a key dimension")
	}
}

func TestBuildUpsertWithoutDimension(t *testing.T) {
	desc, _ := domain.LookupDescriptor(domain.RecordBalanceOperating)
	stmt := buildUpsert(desc)

	if stmt.hasDim {
		t.Fatalf("operating balances are keyed by company and period only")
	}
	if !strings.Contains(stmt.sql, `ON CONFLICT ("company_id", "periodo") DO UPDATE`) {
		t.Fatalf("unexpected conflict target: %s", stmt.sql)
	}
	if strings.Contains(stmt.sql, `"company_id" = EXCLUDED`) {
		t.Fatalf("key columns must not be updated: %s", stmt.sql)
	}
}

func TestBuildUpsertCashflowUsesFixedKind(t *testing.T) {
	desc, _ := domain.LookupDescriptor(domain.RecordCashflowInvesting)
	stmt := buildUpsert(desc)

	if !strings.Contains(stmt.sql, `ON CONFLICT ("company_id", "periodo", "kind")`) {
		t.Fatalf("cashflows must be keyed by kind: %s", stmt.sql)
	}
	if !strings.Contains(stmt.sql, `"flujo_neto" = EXCLUDED."flujo_neto"`) {
		t.Fatalf("derived net flow must be written: %s", stmt.sql)
	}
}
