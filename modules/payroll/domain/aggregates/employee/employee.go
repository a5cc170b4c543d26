package employee

import (
	"context"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/haulpay/payroll-sdk/modules/payroll/domain/entities/payconfig"
)

var (
	ErrEmployeeNotFound = gerrors.New("employee not found")
)

// Employee carries, besides identity, a denormalized copy of the current pay
// configuration. The copy is a read cache kept in step with the history table
// by the transition transaction; for employees that were never explicitly
// configured it doubles as the base configuration the resolver falls back to.
type Employee struct {
	ID   uuid.UUID
	Name string

	PayKind           payconfig.Kind
	DriverPercent     decimal.Decimal
	CompanyPercent    decimal.Decimal
	ServiceFeePercent decimal.Decimal
	FlatRateAmount    decimal.Decimal
	PerMileRate       decimal.Decimal

	ConfigEffectiveDate *time.Time
	ConfigNotes         string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// BaseConfig materializes the denormalized fields as an open-ended config
// record. ok is false when the employee has no configuration at all.
func (e *Employee) BaseConfig() (*payconfig.Config, bool) {
	if !e.PayKind.Valid() {
		return nil, false
	}
	cfg := &payconfig.Config{
		SubjectID:         e.ID,
		Kind:              e.PayKind,
		DriverPercent:     e.DriverPercent,
		CompanyPercent:    e.CompanyPercent,
		ServiceFeePercent: e.ServiceFeePercent,
		FlatRateAmount:    e.FlatRateAmount,
		PerMileRate:       e.PerMileRate,
		Notes:             e.ConfigNotes,
	}
	if e.ConfigEffectiveDate != nil {
		cfg.EffectiveDate = *e.ConfigEffectiveDate
	}
	return cfg, true
}

// CurrentConfig is the denormalized mirror written by the transition
// transaction after a new history record is inserted.
type CurrentConfig struct {
	Kind              payconfig.Kind
	DriverPercent     decimal.Decimal
	CompanyPercent    decimal.Decimal
	ServiceFeePercent decimal.Decimal
	FlatRateAmount    decimal.Decimal
	PerMileRate       decimal.Decimal
	EffectiveDate     time.Time
	Notes             string
}

type Repository interface {
	Create(ctx context.Context, e *Employee) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Employee, error)
	// LockByID takes a row-level lock on the employee, serializing
	// concurrent configuration transitions for the same subject.
	LockByID(ctx context.Context, id uuid.UUID) (*Employee, error)
	UpdateCurrentConfig(ctx context.Context, id uuid.UUID, cfg CurrentConfig) error
}
