package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/sirupsen/logrus"

	"github.com/haulpay/payroll-sdk/modules/payroll/domain/entities/payconfig"
	"github.com/haulpay/payroll-sdk/pkg/composables"
)

const configColumns = `
	id, subject_id, kind,
	driver_pct, company_pct, service_fee_pct, flat_rate, per_mile_rate,
	effective_date, end_date,
	created_by, created_at, modified_at, notes`

type PayConfigRepository struct {
	log *logrus.Logger
}

func NewPayConfigRepository(log *logrus.Logger) payconfig.Repository {
	return &PayConfigRepository{log: log}
}

func (r *PayConfigRepository) Create(ctx context.Context, config *payconfig.Config) (uuid.UUID, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return uuid.Nil, err
	}

	config.Normalize()
	if err := config.Validate(); err != nil {
		return uuid.Nil, err
	}

	if err := tx.QueryRow(ctx, `
		INSERT INTO configuration_history (
			subject_id, kind,
			driver_pct, company_pct, service_fee_pct, flat_rate, per_mile_rate,
			effective_date, end_date,
			created_by, notes
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING id, created_at, modified_at
		`,
		config.SubjectID,
		string(config.Kind),
		config.DriverPercent,
		config.CompanyPercent,
		config.ServiceFeePercent,
		config.FlatRateAmount,
		config.PerMileRate,
		pgDateOnlyUTC(config.EffectiveDate),
		pgNullableDate(config.EndDate),
		config.CreatedBy,
		config.Notes,
	).Scan(&config.ID, &config.CreatedAt, &config.ModifiedAt); err != nil {
		return uuid.Nil, err
	}

	return config.ID, nil
}

func (r *PayConfigRepository) GetByID(ctx context.Context, id uuid.UUID) (*payconfig.Config, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `SELECT `+configColumns+` FROM configuration_history WHERE id = $1`, id)
	config, err := scanConfig(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, payconfig.ErrConfigNotFound
	}
	if err != nil {
		return nil, err
	}
	return config, nil
}

// GetEffective returns the record whose interval contains asOf. When the
// non-overlap invariant has been violated out of band, the record with the
// latest effective date wins and a warning is logged; readers never fail on
// a violated invariant, only on missing data.
func (r *PayConfigRepository) GetEffective(ctx context.Context, subjectID uuid.UUID, asOf time.Time) (*payconfig.Config, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	day := pgDateOnlyUTC(asOf)
	rows, err := tx.Query(ctx, `
		SELECT `+configColumns+`
		FROM configuration_history
		WHERE subject_id = $1
		  AND effective_date <= $2
		  AND (end_date IS NULL OR end_date >= $2)
		ORDER BY effective_date DESC
		`, subjectID, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches, err := collectConfigs(rows)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, payconfig.ErrConfigNotFound
	}
	if len(matches) > 1 {
		r.log.WithFields(logrus.Fields{
			"subject_id": subjectID,
			"as_of":      asOf.Format(time.DateOnly),
			"matches":    len(matches),
		}).Warn("overlapping configuration records found; using latest effective date")
	}
	return matches[0], nil
}

func (r *PayConfigRepository) GetHistory(ctx context.Context, subjectID uuid.UUID) ([]*payconfig.Config, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT `+configColumns+`
		FROM configuration_history
		WHERE subject_id = $1
		ORDER BY effective_date DESC
		`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectConfigs(rows)
}

func (r *PayConfigRepository) GetFuture(ctx context.Context, subjectID uuid.UUID, from time.Time) ([]*payconfig.Config, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT `+configColumns+`
		FROM configuration_history
		WHERE subject_id = $1
		  AND effective_date > $2
		ORDER BY effective_date ASC
		`, subjectID, pgDateOnlyUTC(from))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectConfigs(rows)
}

// CloseOpenRecords end-dates every open record that started before the new
// effective date, at the day before it. Calling it again without an
// intervening create finds nothing open and is a no-op.
func (r *PayConfigRepository) CloseOpenRecords(ctx context.Context, subjectID uuid.UUID, newEffective time.Time) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE configuration_history
		SET end_date = $2::date - 1, modified_at = now()
		WHERE subject_id = $1
		  AND end_date IS NULL
		  AND effective_date < $2
		`, subjectID, pgDateOnlyUTC(newEffective))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// HasOverlap applies the symmetric predicate a1 <= b2 AND a2 <= b1 with a
// missing end treated as unbounded on either side.
func (r *PayConfigRepository) HasOverlap(ctx context.Context, subjectID uuid.UUID, candidate payconfig.Interval, excludeID uuid.UUID) (bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, err
	}

	var exists bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM configuration_history
			WHERE subject_id = $1
			  AND id <> $2
			  AND effective_date <= COALESCE($4::date, 'infinity'::date)
			  AND COALESCE(end_date, 'infinity'::date) >= $3::date
		)
		`,
		subjectID,
		excludeID,
		pgDateOnlyUTC(candidate.Start),
		pgNullableDate(candidate.End),
	).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// UpdateDates edits the interval of a historical record in place. This is
// the only write that bypasses the close-then-insert transition, so the
// overlap check runs here before anything changes.
func (r *PayConfigRepository) UpdateDates(ctx context.Context, id uuid.UUID, dates payconfig.Interval) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	dates.Start = payconfig.NormalizeDate(dates.Start)
	if dates.End != nil {
		e := payconfig.NormalizeDate(*dates.End)
		if e.Before(dates.Start) {
			return payconfig.ErrInvalidInterval
		}
		dates.End = &e
	}

	overlaps, err := r.HasOverlap(ctx, current.SubjectID, dates, id)
	if err != nil {
		return err
	}
	if overlaps {
		return payconfig.ErrOverlap
	}

	tag, err := tx.Exec(ctx, `
		UPDATE configuration_history
		SET effective_date = $2, end_date = $3, modified_at = now()
		WHERE id = $1
		`, id, pgDateOnlyUTC(dates.Start), pgNullableDate(dates.End))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return payconfig.ErrConfigNotFound
	}
	return nil
}

func collectConfigs(rows pgx.Rows) ([]*payconfig.Config, error) {
	var results []*payconfig.Config
	for rows.Next() {
		config, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, config)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func scanConfig(row pgx.Row) (*payconfig.Config, error) {
	var c payconfig.Config
	var kind string
	var effective, end pgtype.Date
	if err := row.Scan(
		&c.ID,
		&c.SubjectID,
		&kind,
		&c.DriverPercent,
		&c.CompanyPercent,
		&c.ServiceFeePercent,
		&c.FlatRateAmount,
		&c.PerMileRate,
		&effective,
		&end,
		&c.CreatedBy,
		&c.CreatedAt,
		&c.ModifiedAt,
		&c.Notes,
	); err != nil {
		return nil, err
	}
	c.Kind = payconfig.Kind(kind)
	c.EffectiveDate = dateFromPg(effective)
	c.EndDate = nullableDateFromPg(end)
	return &c, nil
}
