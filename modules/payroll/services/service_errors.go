package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/haulpay/payroll-sdk/pkg/composables"
)

type ServiceError struct {
	Status  int
	Code    string
	Message string
	Cause   error
}

func (e *ServiceError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *ServiceError) Unwrap() error { return e.Cause }

func newServiceError(status int, code, message string, cause error) *ServiceError {
	return &ServiceError{Status: status, Code: code, Message: message, Cause: cause}
}

func mapPgError(err error) error {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return mapPgErrorToServiceError(err)
}

// runInTx wraps the close+insert+cache-update sequence in one transaction.
// Swapped out in unit tests that run against mock repositories.
var runInTx = defaultRunInTx

func defaultRunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return composables.InTx(ctx, fn)
}
