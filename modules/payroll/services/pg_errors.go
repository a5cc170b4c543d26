package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/haulpay/payroll-sdk/modules/payroll/domain/aggregates/employee"
	"github.com/haulpay/payroll-sdk/modules/payroll/domain/entities/payconfig"
)

func mapPgErrorToServiceError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return newServiceError(http.StatusNotFound, "PAY_NOT_FOUND", "not found", err)
	case errors.Is(err, payconfig.ErrConfigNotFound):
		return newServiceError(http.StatusNotFound, "PAY_CONFIG_NOT_FOUND", "pay configuration not found", err)
	case errors.Is(err, employee.ErrEmployeeNotFound):
		return newServiceError(http.StatusNotFound, "PAY_EMPLOYEE_NOT_FOUND", "employee not found", err)
	case errors.Is(err, payconfig.ErrOverlap):
		recordWriteConflict("overlap")
		return newServiceError(http.StatusConflict, "PAY_OVERLAP", "configuration window overlaps an existing record", err)
	case errors.Is(err, payconfig.ErrInvalidInterval):
		return newServiceError(http.StatusBadRequest, "PAY_INVALID_BODY", "end date precedes effective date", err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		recordWriteConflict("unique")
		if pgErr.ConstraintName == "configuration_history_one_open" {
			return newServiceError(http.StatusConflict, "PAY_OVERLAP", "subject already has an open configuration", err)
		}
		return newServiceError(http.StatusConflict, "PAY_CONFLICT", "unique constraint violated", err)
	case "23P01": // exclusion_violation
		recordWriteConflict("overlap")
		return newServiceError(http.StatusConflict, "PAY_OVERLAP", "configuration window overlaps an existing record", err)
	case "23503": // foreign_key_violation
		recordWriteConflict("foreign_key")
		return newServiceError(http.StatusUnprocessableEntity, "PAY_EMPLOYEE_NOT_FOUND", "referenced employee does not exist", err)
	case "23514": // check_violation
		return newServiceError(http.StatusBadRequest, "PAY_INVALID_BODY", "invalid field value", err)
	default:
		return newServiceError(http.StatusInternalServerError, "PAY_INTERNAL", fmt.Sprintf("database error (%s)", pgErr.Code), err)
	}
}
