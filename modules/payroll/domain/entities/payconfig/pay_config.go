package payconfig

import (
	"context"
	"fmt"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrConfigNotFound  = gerrors.New("pay configuration not found")
	ErrOverlap         = gerrors.New("configuration intervals overlap")
	ErrInvalidInterval = gerrors.New("end date precedes effective date")
)

// Kind selects how a driver is compensated.
type Kind string

const (
	KindPercentage Kind = "percentage"
	KindFlatRate   Kind = "flat_rate"
	KindPerMile    Kind = "per_mile"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindPercentage, KindFlatRate, KindPerMile:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown pay kind: %q", s)
	}
}

func (k Kind) Valid() bool {
	_, err := ParseKind(string(k))
	return err == nil
}

// State describes where a record sits in its lifecycle. A record is created
// pending or open, closed once superseded, and never reopened.
type State string

const (
	StatePending State = "pending"
	StateOpen    State = "open"
	StateClosed  State = "closed"
)

var (
	percentMin = decimal.Zero
	percentMax = decimal.NewFromInt(100)
)

// Config is a single versioned compensation configuration for a subject.
// The interval [EffectiveDate, EndDate] is inclusive on both ends; a nil
// EndDate means the record is still open.
type Config struct {
	ID        uuid.UUID
	SubjectID uuid.UUID
	Kind      Kind

	DriverPercent     decimal.Decimal
	CompanyPercent    decimal.Decimal
	ServiceFeePercent decimal.Decimal
	FlatRateAmount    decimal.Decimal
	PerMileRate       decimal.Decimal

	EffectiveDate time.Time
	EndDate       *time.Time

	CreatedBy  string
	CreatedAt  time.Time
	ModifiedAt time.Time
	Notes      string
}

// NormalizeDate truncates t to a UTC calendar day. All effective and end
// dates are stored date-only.
func NormalizeDate(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	u := t.UTC()
	y, m, d := u.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (c *Config) Normalize() {
	c.EffectiveDate = NormalizeDate(c.EffectiveDate)
	if c.EndDate != nil {
		e := NormalizeDate(*c.EndDate)
		c.EndDate = &e
	}
}

func (c *Config) Validate() error {
	if c.SubjectID == uuid.Nil {
		return fmt.Errorf("subject_id is required")
	}
	if c.EffectiveDate.IsZero() {
		return fmt.Errorf("effective_date is required")
	}
	if c.EndDate != nil && c.EndDate.Before(c.EffectiveDate) {
		return fmt.Errorf("end_date %s precedes effective_date %s",
			c.EndDate.Format(time.DateOnly), c.EffectiveDate.Format(time.DateOnly))
	}
	switch c.Kind {
	case KindPercentage:
		for _, p := range []struct {
			name  string
			value decimal.Decimal
		}{
			{"driver_pct", c.DriverPercent},
			{"company_pct", c.CompanyPercent},
			{"service_fee_pct", c.ServiceFeePercent},
		} {
			if p.value.LessThan(percentMin) || p.value.GreaterThan(percentMax) {
				return fmt.Errorf("%s must be within [0,100], got %s", p.name, p.value)
			}
		}
	case KindFlatRate:
		if c.FlatRateAmount.IsNegative() {
			return fmt.Errorf("flat_rate must be non-negative, got %s", c.FlatRateAmount)
		}
	case KindPerMile:
		if c.PerMileRate.IsNegative() {
			return fmt.Errorf("per_mile_rate must be non-negative, got %s", c.PerMileRate)
		}
	default:
		return fmt.Errorf("unknown pay kind: %q", c.Kind)
	}
	return nil
}

// State reports the lifecycle state of the record relative to today.
func (c *Config) State(today time.Time) State {
	today = NormalizeDate(today)
	if c.EndDate != nil && c.EndDate.Before(today) {
		return StateClosed
	}
	if c.EffectiveDate.After(today) {
		return StatePending
	}
	return StateOpen
}

// Interval is an inclusive date interval; a nil End is unbounded.
type Interval struct {
	Start time.Time
	End   *time.Time
}

// Overlaps reports whether two inclusive intervals share at least one day.
// Symmetric in its arguments, so full containment on either side counts.
func (iv Interval) Overlaps(other Interval) bool {
	if iv.End != nil && iv.End.Before(other.Start) {
		return false
	}
	if other.End != nil && other.End.Before(iv.Start) {
		return false
	}
	return true
}

// Contains reports whether the interval covers the given day.
func (iv Interval) Contains(day time.Time) bool {
	day = NormalizeDate(day)
	if day.Before(NormalizeDate(iv.Start)) {
		return false
	}
	return iv.End == nil || !day.After(NormalizeDate(*iv.End))
}

func (c *Config) Interval() Interval {
	return Interval{Start: c.EffectiveDate, End: c.EndDate}
}

type Repository interface {
	Create(ctx context.Context, config *Config) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Config, error)
	GetEffective(ctx context.Context, subjectID uuid.UUID, asOf time.Time) (*Config, error)
	GetHistory(ctx context.Context, subjectID uuid.UUID) ([]*Config, error)
	GetFuture(ctx context.Context, subjectID uuid.UUID, from time.Time) ([]*Config, error)
	CloseOpenRecords(ctx context.Context, subjectID uuid.UUID, newEffective time.Time) (int64, error)
	HasOverlap(ctx context.Context, subjectID uuid.UUID, candidate Interval, excludeID uuid.UUID) (bool, error)
	UpdateDates(ctx context.Context, id uuid.UUID, dates Interval) error
}
