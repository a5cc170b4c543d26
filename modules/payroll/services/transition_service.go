package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/haulpay/payroll-sdk/modules/payroll/domain/aggregates/employee"
	"github.com/haulpay/payroll-sdk/modules/payroll/domain/entities/audittrail"
	"github.com/haulpay/payroll-sdk/modules/payroll/domain/entities/payconfig"
	"github.com/haulpay/payroll-sdk/pkg/constants"
)

var fullPercent = decimal.NewFromInt(100)

// TransitionService is the single place a new configuration record is
// committed. It closes the subject's open record, inserts the candidate and
// refreshes the denormalized cache in one transaction, then hands the field
// diff to the audit trail.
type TransitionService struct {
	configs   payconfig.Repository
	employees employee.Repository
	audit     *AuditService
	log       *logrus.Logger
}

func NewTransitionService(
	configs payconfig.Repository,
	employees employee.Repository,
	audit *AuditService,
	log *logrus.Logger,
) *TransitionService {
	return &TransitionService{
		configs:   configs,
		employees: employees,
		audit:     audit,
		log:       log,
	}
}

type ApplyInput struct {
	SubjectID uuid.UUID      `validate:"required"`
	Kind      payconfig.Kind `validate:"required"`

	DriverPercent     decimal.Decimal
	CompanyPercent    decimal.Decimal
	ServiceFeePercent decimal.Decimal
	FlatRateAmount    decimal.Decimal
	PerMileRate       decimal.Decimal

	EffectiveDate time.Time `validate:"required"`
	Notes         string

	PerformedBy string `validate:"required"`
	SessionID   uuid.UUID
}

type TransitionResult struct {
	Record        *payconfig.Config
	ClosedRecords int64
	AuditEntries  int
}

func (s *TransitionService) Apply(ctx context.Context, in ApplyInput) (*TransitionResult, error) {
	in.PerformedBy = strings.TrimSpace(in.PerformedBy)
	if err := constants.Validate.Struct(in); err != nil {
		return nil, newServiceError(http.StatusBadRequest, "PAY_INVALID_BODY", err.Error(), err)
	}
	if in.SessionID == uuid.Nil {
		in.SessionID = uuid.New()
	}

	candidate := &payconfig.Config{
		SubjectID:         in.SubjectID,
		Kind:              in.Kind,
		DriverPercent:     in.DriverPercent,
		CompanyPercent:    in.CompanyPercent,
		ServiceFeePercent: in.ServiceFeePercent,
		FlatRateAmount:    in.FlatRateAmount,
		PerMileRate:       in.PerMileRate,
		EffectiveDate:     in.EffectiveDate,
		CreatedBy:         in.PerformedBy,
		Notes:             in.Notes,
	}
	candidate.Normalize()
	if err := candidate.Validate(); err != nil {
		return nil, newServiceError(http.StatusBadRequest, "PAY_INVALID_BODY", err.Error(), err)
	}

	if in.Kind == payconfig.KindPercentage {
		sum := in.DriverPercent.Add(in.CompanyPercent).Add(in.ServiceFeePercent)
		if !sum.Equal(fullPercent) {
			s.log.WithFields(logrus.Fields{
				"subject_id": in.SubjectID,
				"sum":        sum.String(),
			}).Warn("percentage split does not sum to 100")
		}
	}

	var (
		subjectName string
		prev        *payconfig.Config
		closedCount int64
	)

	err := runInTx(ctx, func(txCtx context.Context) error {
		emp, err := s.employees.LockByID(txCtx, in.SubjectID)
		if err != nil {
			return err
		}
		subjectName = emp.Name

		prev, err = s.configs.GetEffective(txCtx, in.SubjectID, candidate.EffectiveDate)
		if err != nil && !isConfigNotFound(err) {
			return err
		}

		closedCount, err = s.configs.CloseOpenRecords(txCtx, in.SubjectID, candidate.EffectiveDate)
		if err != nil {
			return err
		}

		if _, err := s.configs.Create(txCtx, candidate); err != nil {
			return err
		}

		return s.employees.UpdateCurrentConfig(txCtx, in.SubjectID, employee.CurrentConfig{
			Kind:              candidate.Kind,
			DriverPercent:     candidate.DriverPercent,
			CompanyPercent:    candidate.CompanyPercent,
			ServiceFeePercent: candidate.ServiceFeePercent,
			FlatRateAmount:    candidate.FlatRateAmount,
			PerMileRate:       candidate.PerMileRate,
			EffectiveDate:     candidate.EffectiveDate,
			Notes:             candidate.Notes,
		})
	})
	if err != nil {
		return nil, mapPgError(err)
	}

	// The transition stands regardless of what happens to the audit trail.
	entries := configDiff(prev, candidate, subjectName, in.PerformedBy, in.SessionID)
	if err := s.audit.LogChanges(ctx, entries); err != nil {
		auditWriteFailures.Inc()
		s.log.WithError(err).WithFields(logrus.Fields{
			"subject_id": in.SubjectID,
			"session_id": in.SessionID,
			"entries":    len(entries),
		}).Warn("failed to record audit entries for configuration change")
	}

	return &TransitionResult{
		Record:        candidate,
		ClosedRecords: closedCount,
		AuditEntries:  len(entries),
	}, nil
}

func isConfigNotFound(err error) bool {
	return errors.Is(err, payconfig.ErrConfigNotFound)
}

// configDiff turns the before/after pair into one authoritative audit entry
// per changed attribute. A missing previous record means the subject is
// being configured for the first time.
func configDiff(prev, next *payconfig.Config, subjectName, performedBy string, sessionID uuid.UUID) []*audittrail.Entry {
	action := audittrail.ActionFinalUpdate
	if prev == nil {
		action = audittrail.ActionCreate
	}

	newEntry := func(field audittrail.Field, oldVal, newVal decimal.NullDecimal, notes string) *audittrail.Entry {
		return &audittrail.Entry{
			SubjectID:   next.SubjectID,
			SubjectName: subjectName,
			Action:      action,
			Field:       field,
			OldValue:    oldVal,
			NewValue:    newVal,
			PerformedBy: performedBy,
			Notes:       notes,
			SessionID:   sessionID,
		}
	}

	var entries []*audittrail.Entry

	if prev == nil || prev.Kind != next.Kind {
		var notes string
		if prev == nil {
			notes = string(next.Kind)
		} else {
			notes = string(prev.Kind) + " -> " + string(next.Kind)
		}
		entries = append(entries, newEntry(audittrail.FieldKind, decimal.NullDecimal{}, decimal.NullDecimal{}, notes))
	}

	numeric := []struct {
		field audittrail.Field
		pick  func(*payconfig.Config) decimal.Decimal
	}{
		{audittrail.FieldDriverPercent, func(c *payconfig.Config) decimal.Decimal { return c.DriverPercent }},
		{audittrail.FieldCompanyPercent, func(c *payconfig.Config) decimal.Decimal { return c.CompanyPercent }},
		{audittrail.FieldServiceFeePercent, func(c *payconfig.Config) decimal.Decimal { return c.ServiceFeePercent }},
		{audittrail.FieldFlatRateAmount, func(c *payconfig.Config) decimal.Decimal { return c.FlatRateAmount }},
		{audittrail.FieldPerMileRate, func(c *payconfig.Config) decimal.Decimal { return c.PerMileRate }},
	}

	for _, n := range numeric {
		newVal := n.pick(next)
		if prev == nil {
			if !newVal.IsZero() {
				entries = append(entries, newEntry(n.field,
					decimal.NullDecimal{},
					decimal.NullDecimal{Decimal: newVal, Valid: true},
					"",
				))
			}
			continue
		}
		oldVal := n.pick(prev)
		if !oldVal.Equal(newVal) {
			entries = append(entries, newEntry(n.field,
				decimal.NullDecimal{Decimal: oldVal, Valid: true},
				decimal.NullDecimal{Decimal: newVal, Valid: true},
				"",
			))
		}
	}

	return entries
}
