package audittrail

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Action classifies how a configuration attribute changed.
type Action string

const (
	ActionCreate      Action = "create"
	ActionUpdate      Action = "update"
	ActionDelete      Action = "delete"
	ActionBulkUpdate  Action = "bulk_update"
	ActionFinalUpdate Action = "final_update"
)

func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionCreate, ActionUpdate, ActionDelete, ActionBulkUpdate, ActionFinalUpdate:
		return Action(s), nil
	default:
		return "", fmt.Errorf("unknown audit action: %q", s)
	}
}

// Field names the logical configuration attribute a change touched.
type Field string

const (
	FieldKind              Field = "kind"
	FieldDriverPercent     Field = "driverPercent"
	FieldCompanyPercent    Field = "companyPercent"
	FieldServiceFeePercent Field = "serviceFeePercent"
	FieldFlatRateAmount    Field = "flatRateAmount"
	FieldPerMileRate       Field = "perMileRate"
	FieldEffectiveDate     Field = "effectiveDate"
)

func ParseField(s string) (Field, error) {
	switch Field(s) {
	case FieldKind, FieldDriverPercent, FieldCompanyPercent, FieldServiceFeePercent,
		FieldFlatRateAmount, FieldPerMileRate, FieldEffectiveDate:
		return Field(s), nil
	default:
		return "", fmt.Errorf("unknown audit field: %q", s)
	}
}

// Entry is a single field-level change. Entries are immutable once written;
// the only mutation the store supports is bulk deletion by age.
type Entry struct {
	ID          int64
	SubjectID   uuid.UUID
	SubjectName string
	Action      Action
	Field       Field
	OldValue    decimal.NullDecimal
	NewValue    decimal.NullDecimal
	Timestamp   time.Time
	PerformedBy string
	Notes       string
	SessionID   uuid.UUID
}

func (e *Entry) Validate() error {
	if e.SubjectID == uuid.Nil {
		return fmt.Errorf("subject_id is required")
	}
	if _, err := ParseAction(string(e.Action)); err != nil {
		return err
	}
	if _, err := ParseField(string(e.Field)); err != nil {
		return err
	}
	if e.PerformedBy == "" {
		return fmt.Errorf("performed_by is required")
	}
	if e.SessionID == uuid.Nil {
		return fmt.Errorf("session_id is required")
	}
	return nil
}

type FindParams struct {
	SubjectID *uuid.UUID
	SessionID *uuid.UUID
	From      *time.Time
	To        *time.Time
	Limit     int
}

type Repository interface {
	Create(ctx context.Context, entry *Entry) error
	// CreateBatch persists all entries in one transaction; on any failure
	// none of them are written.
	CreateBatch(ctx context.Context, entries []*Entry) error
	List(ctx context.Context, params *FindParams) ([]*Entry, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	EnsureSchema(ctx context.Context) error
}
