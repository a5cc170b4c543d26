package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/haulpay/payroll-sdk/modules/payroll/domain/aggregates/employee"
	"github.com/haulpay/payroll-sdk/modules/payroll/domain/entities/payconfig"
	"github.com/haulpay/payroll-sdk/pkg/composables"
)

const employeeColumns = `
	id, name, pay_kind,
	driver_pct, company_pct, service_fee_pct, flat_rate, per_mile_rate,
	config_effective_date, config_notes,
	created_at, updated_at`

type PgEmployeeRepository struct{}

func NewEmployeeRepository() employee.Repository {
	return &PgEmployeeRepository{}
}

func (g *PgEmployeeRepository) Create(ctx context.Context, e *employee.Employee) (uuid.UUID, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return uuid.Nil, err
	}

	if err := tx.QueryRow(ctx, `
		INSERT INTO employees (
			name, pay_kind,
			driver_pct, company_pct, service_fee_pct, flat_rate, per_mile_rate,
			config_effective_date, config_notes
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id, created_at, updated_at
		`,
		e.Name,
		string(e.PayKind),
		e.DriverPercent,
		e.CompanyPercent,
		e.ServiceFeePercent,
		e.FlatRateAmount,
		e.PerMileRate,
		pgNullableDate(e.ConfigEffectiveDate),
		e.ConfigNotes,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return uuid.Nil, err
	}
	return e.ID, nil
}

func (g *PgEmployeeRepository) GetByID(ctx context.Context, id uuid.UUID) (*employee.Employee, error) {
	return g.getByID(ctx, id, "")
}

// LockByID acquires a row-level lock on the employee for the rest of the
// surrounding transaction. Concurrent transitions for the same subject
// queue up here; other subjects are untouched.
func (g *PgEmployeeRepository) LockByID(ctx context.Context, id uuid.UUID) (*employee.Employee, error) {
	return g.getByID(ctx, id, " FOR UPDATE")
}

func (g *PgEmployeeRepository) getByID(ctx context.Context, id uuid.UUID, suffix string) (*employee.Employee, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = $1`+suffix, id)
	e, err := scanEmployee(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, employee.ErrEmployeeNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (g *PgEmployeeRepository) UpdateCurrentConfig(ctx context.Context, id uuid.UUID, cfg employee.CurrentConfig) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE employees
		SET pay_kind = $2,
			driver_pct = $3,
			company_pct = $4,
			service_fee_pct = $5,
			flat_rate = $6,
			per_mile_rate = $7,
			config_effective_date = $8,
			config_notes = $9,
			updated_at = now()
		WHERE id = $1
		`,
		id,
		string(cfg.Kind),
		cfg.DriverPercent,
		cfg.CompanyPercent,
		cfg.ServiceFeePercent,
		cfg.FlatRateAmount,
		cfg.PerMileRate,
		pgDateOnlyUTC(cfg.EffectiveDate),
		cfg.Notes,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return employee.ErrEmployeeNotFound
	}
	return nil
}

func scanEmployee(row pgx.Row) (*employee.Employee, error) {
	var e employee.Employee
	var kind string
	var configEffective pgtype.Date
	if err := row.Scan(
		&e.ID,
		&e.Name,
		&kind,
		&e.DriverPercent,
		&e.CompanyPercent,
		&e.ServiceFeePercent,
		&e.FlatRateAmount,
		&e.PerMileRate,
		&configEffective,
		&e.ConfigNotes,
		&e.CreatedAt,
		&e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	e.PayKind = payconfig.Kind(kind)
	e.ConfigEffectiveDate = nullableDateFromPg(configEffective)
	return &e, nil
}
