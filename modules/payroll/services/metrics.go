package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	writeConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payroll_write_conflicts_total",
		Help: "Configuration writes rejected by a constraint, by conflict kind.",
	}, []string{"kind"})

	auditWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payroll_audit_write_failures_total",
		Help: "Audit entries dropped because the audit store rejected them.",
	})
)

func recordWriteConflict(kind string) {
	writeConflicts.WithLabelValues(kind).Inc()
}
