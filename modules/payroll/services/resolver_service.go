package services

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/haulpay/payroll-sdk/modules/payroll/domain/aggregates/employee"
	"github.com/haulpay/payroll-sdk/modules/payroll/domain/entities/payconfig"
)

// ResolverService answers "what configuration is in force for this subject
// on this date". Pure reads, no locking; UI redraw loops call it freely.
type ResolverService struct {
	configs   payconfig.Repository
	employees employee.Repository
}

func NewResolverService(configs payconfig.Repository, employees employee.Repository) *ResolverService {
	return &ResolverService{configs: configs, employees: employees}
}

// Resolve looks up the history record covering date, falling back to the
// subject's denormalized base configuration for employees that were never
// explicitly configured.
func (s *ResolverService) Resolve(ctx context.Context, subjectID uuid.UUID, date time.Time) (*payconfig.Config, error) {
	if subjectID == uuid.Nil {
		return nil, newServiceError(http.StatusBadRequest, "PAY_INVALID_BODY", "subject_id is required", nil)
	}
	if date.IsZero() {
		date = time.Now().UTC()
	}

	cfg, err := s.configs.GetEffective(ctx, subjectID, date)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, payconfig.ErrConfigNotFound) {
		return nil, mapPgError(err)
	}

	emp, err := s.employees.GetByID(ctx, subjectID)
	if err != nil {
		return nil, mapPgError(err)
	}

	base, ok := emp.BaseConfig()
	if !ok {
		return nil, newServiceError(http.StatusNotFound, "PAY_CONFIG_NOT_FOUND",
			"no configuration covers the requested date and the employee has no base configuration", err)
	}
	return base, nil
}

func (s *ResolverService) History(ctx context.Context, subjectID uuid.UUID) ([]*payconfig.Config, error) {
	if subjectID == uuid.Nil {
		return nil, newServiceError(http.StatusBadRequest, "PAY_INVALID_BODY", "subject_id is required", nil)
	}
	records, err := s.configs.GetHistory(ctx, subjectID)
	if err != nil {
		return nil, mapPgError(err)
	}
	return records, nil
}

// Future lists scheduled-but-not-yet-active records, earliest first.
func (s *ResolverService) Future(ctx context.Context, subjectID uuid.UUID, from time.Time) ([]*payconfig.Config, error) {
	if subjectID == uuid.Nil {
		return nil, newServiceError(http.StatusBadRequest, "PAY_INVALID_BODY", "subject_id is required", nil)
	}
	if from.IsZero() {
		from = time.Now().UTC()
	}
	records, err := s.configs.GetFuture(ctx, subjectID, from)
	if err != nil {
		return nil, mapPgError(err)
	}
	return records, nil
}
