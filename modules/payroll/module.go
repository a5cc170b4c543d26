package payroll

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/haulpay/payroll-sdk/modules/payroll/domain/aggregates/employee"
	"github.com/haulpay/payroll-sdk/modules/payroll/domain/entities/payconfig"
	"github.com/haulpay/payroll-sdk/modules/payroll/infrastructure/persistence"
	"github.com/haulpay/payroll-sdk/modules/payroll/services"
)

// Module wires the payroll repositories and services together. Callers own
// the pgx pool and attach it to the context via composables.WithPool.
type Module struct {
	Employees employee.Repository
	Configs   payconfig.Repository

	Audit       *services.AuditService
	Transitions *services.TransitionService
	Resolver    *services.ResolverService
}

func NewModule(ctx context.Context, log *logrus.Logger) *Module {
	employees := persistence.NewEmployeeRepository()
	configs := persistence.NewPayConfigRepository(log)

	audit := services.NewAuditService(persistence.NewAuditTrailRepository(), log)
	audit.Init(ctx)

	return &Module{
		Employees:   employees,
		Configs:     configs,
		Audit:       audit,
		Transitions: services.NewTransitionService(configs, employees, audit, log),
		Resolver:    services.NewResolverService(configs, employees),
	}
}
