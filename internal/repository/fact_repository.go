package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Garzer09/biz-data-guide-sub001/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type upsertStatement struct {
	sql      string
	measures []string
	derived  []string
	dates    []string
	texts    []string
	hasDim   bool
}

type factRepository struct {
	pool       *pgxpool.Pool
	mu         sync.RWMutex
	statements map[domain.RecordType]upsertStatement
}

// NewFactRepository wires the upsert sink backed by pgxpool.
func NewFactRepository(pool *pgxpool.Pool) FactRepository {
	return &factRepository{
		pool:       pool,
		statements: make(map[domain.RecordType]upsertStatement),
	}
}

// Upsert writes one record with a single INSERT .. ON CONFLICT statement, so
// each record is atomic and replaying a file converges to the same rows.
func (r *factRepository) Upsert(ctx context.Context, desc domain.RecordDescriptor, jobID uuid.UUID, rec domain.NormalizedRecord) error {
	stmt := r.statement(desc)

	args := make([]any, 0, 4+len(stmt.measures)+len(stmt.derived)+len(stmt.dates)+len(stmt.texts))
	args = append(args, rec.CompanyID, rec.Period)
	if stmt.hasDim {
		args = append(args, rec.Dimension)
	}
	for _, name := range stmt.measures {
		value, err := numericArg(decimal.NewNullDecimal(rec.Measures[name]))
		if err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
		args = append(args, value)
	}
	for _, name := range stmt.derived {
		value, err := numericArg(rec.Derived[name])
		if err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
		args = append(args, value)
	}
	for _, name := range stmt.dates {
		args = append(args, rec.Dates[name])
	}
	for _, name := range stmt.texts {
		args = append(args, rec.Texts[name])
	}
	args = append(args, jobID)

	if _, err := r.pool.Exec(ctx, stmt.sql, args...); err != nil {
		return fmt.Errorf("upsert into %s: %w", desc.Table, err)
	}
	return nil
}

func numericArg(value decimal.NullDecimal) (pgtype.Numeric, error) {
	var n pgtype.Numeric
	if !value.Valid {
		return n, nil
	}
	if err := n.Scan(value.Decimal.String()); err != nil {
		return pgtype.Numeric{}, err
	}
	return n, nil
}

func (r *factRepository) statement(desc domain.RecordDescriptor) upsertStatement {
	r.mu.RLock()
	stmt, ok := r.statements[desc.Type]
	r.mu.RUnlock()
	if ok {
		return stmt
	}

	stmt = buildUpsert(desc)
	r.mu.Lock()
	r.statements[desc.Type] = stmt
	r.mu.Unlock()
	return stmt
}

func buildUpsert(desc domain.RecordDescriptor) upsertStatement {
	stmt := upsertStatement{
		measures: desc.FieldsOfKind(domain.FieldMeasure),
		derived:  desc.Derived,
		dates:    desc.FieldsOfKind(domain.FieldDate),
		texts:    desc.FieldsOfKind(domain.FieldText),
	}

	keys := desc.ConflictColumns()
	stmt.hasDim = len(keys) > 2

	columns := append([]string{}, keys...)
	columns = append(columns, stmt.measures...)
	columns = append(columns, stmt.derived...)
	columns = append(columns, stmt.dates...)
	columns = append(columns, stmt.texts...)
	columns = append(columns, "source_job_id")

	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = pgx.Identifier{col}.Sanitize()
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	quotedKeys := make([]string, len(keys))
	for i, col := range keys {
		quotedKeys[i] = pgx.Identifier{col}.Sanitize()
	}

	updates := make([]string, 0, len(columns)-len(keys)+1)
	for _, col := range quoted[len(keys):] {
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}
	updates = append(updates, `"updated_at" = now()`)

	stmt.sql = fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s`,
		pgx.Identifier{desc.Table}.Sanitize(),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(quotedKeys, ", "),
		strings.Join(updates, ", "),
	)
	return stmt
}
