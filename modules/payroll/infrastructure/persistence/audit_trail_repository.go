package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/haulpay/payroll-sdk/modules/payroll/domain/entities/audittrail"
	"github.com/haulpay/payroll-sdk/pkg/composables"
	"github.com/haulpay/payroll-sdk/pkg/repo"
)

const auditColumns = `
	id, subject_id, subject_name, action, field,
	old_value, new_value, "timestamp", performed_by, notes, session_id`

// auditSchema lets the audit store bootstrap itself outside the regular
// migration path. Transitions keep working without an audit trail when this
// fails, so schema creation is attempted rather than required.
const auditSchema = `
	CREATE TABLE IF NOT EXISTS audit_log (
		id BIGSERIAL PRIMARY KEY,
		subject_id UUID NOT NULL,
		subject_name TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL,
		field TEXT NOT NULL,
		old_value NUMERIC(12,4),
		new_value NUMERIC(12,4),
		"timestamp" TIMESTAMPTZ NOT NULL DEFAULT now(),
		performed_by TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		session_id UUID NOT NULL
	);
	CREATE INDEX IF NOT EXISTS audit_log_subject_id_idx ON audit_log (subject_id);
	CREATE INDEX IF NOT EXISTS audit_log_session_id_idx ON audit_log (session_id);
	CREATE INDEX IF NOT EXISTS audit_log_timestamp_idx ON audit_log ("timestamp");
`

type AuditTrailRepository struct{}

func NewAuditTrailRepository() audittrail.Repository {
	return &AuditTrailRepository{}
}

func (r *AuditTrailRepository) EnsureSchema(ctx context.Context) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, auditSchema)
	return err
}

func (r *AuditTrailRepository) Create(ctx context.Context, entry *audittrail.Entry) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	return insertEntry(ctx, tx, entry)
}

// CreateBatch writes every entry in a fresh transaction; a failure on any
// entry rolls all of them back.
func (r *AuditTrailRepository) CreateBatch(ctx context.Context, entries []*audittrail.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	for _, entry := range entries {
		if err := entry.Validate(); err != nil {
			return err
		}
	}
	return composables.InTx(ctx, func(txCtx context.Context) error {
		tx, err := composables.UseTx(txCtx)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if err := insertEntry(txCtx, tx, entry); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertEntry(ctx context.Context, tx repo.Tx, entry *audittrail.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	return tx.QueryRow(ctx, `
		INSERT INTO audit_log (
			subject_id, subject_name, action, field,
			old_value, new_value, "timestamp", performed_by, notes, session_id
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id
		`,
		entry.SubjectID,
		entry.SubjectName,
		string(entry.Action),
		string(entry.Field),
		entry.OldValue,
		entry.NewValue,
		entry.Timestamp,
		entry.PerformedBy,
		entry.Notes,
		entry.SessionID,
	).Scan(&entry.ID)
}

func (r *AuditTrailRepository) List(ctx context.Context, params *audittrail.FindParams) ([]*audittrail.Entry, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	where, args := buildAuditFilters(params)
	query := `SELECT ` + auditColumns + ` FROM audit_log`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY "timestamp" DESC`
	if params != nil && params.Limit > 0 {
		query += " " + repo.FormatLimitOffset(params.Limit, 0)
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*audittrail.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *AuditTrailRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}

	tag, err := tx.Exec(ctx, `DELETE FROM audit_log WHERE "timestamp" < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func buildAuditFilters(params *audittrail.FindParams) ([]string, []any) {
	var where []string
	var args []any
	argPos := 1
	if params == nil {
		return where, args
	}

	if params.SubjectID != nil && *params.SubjectID != uuid.Nil {
		where = append(where, fmt.Sprintf("subject_id = $%d", argPos))
		args = append(args, *params.SubjectID)
		argPos++
	}
	if params.SessionID != nil && *params.SessionID != uuid.Nil {
		where = append(where, fmt.Sprintf("session_id = $%d", argPos))
		args = append(args, *params.SessionID)
		argPos++
	}
	if params.From != nil && !params.From.IsZero() {
		where = append(where, fmt.Sprintf(`"timestamp" >= $%d`, argPos))
		args = append(args, *params.From)
		argPos++
	}
	if params.To != nil && !params.To.IsZero() {
		where = append(where, fmt.Sprintf(`"timestamp" <= $%d`, argPos))
		args = append(args, *params.To)
	}
	return where, args
}

func scanEntry(row pgx.Row) (*audittrail.Entry, error) {
	var e audittrail.Entry
	var action, field string
	if err := row.Scan(
		&e.ID,
		&e.SubjectID,
		&e.SubjectName,
		&action,
		&field,
		&e.OldValue,
		&e.NewValue,
		&e.Timestamp,
		&e.PerformedBy,
		&e.Notes,
		&e.SessionID,
	); err != nil {
		return nil, err
	}
	e.Action = audittrail.Action(action)
	e.Field = audittrail.Field(field)
	return &e, nil
}
