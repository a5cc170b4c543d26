package services

import (
	"context"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/haulpay/payroll-sdk/modules/payroll/domain/entities/audittrail"
	"github.com/haulpay/payroll-sdk/pkg/composables"
)

var ErrAuditDisabled = gerrors.New("audit trail is disabled")

// AuditService wraps the append-only audit store. The trail is a soft
// dependency: when its storage cannot be initialized the service degrades to
// a no-op writer instead of blocking configuration changes.
type AuditService struct {
	repo     audittrail.Repository
	log      *logrus.Logger
	disabled bool
}

func NewAuditService(repo audittrail.Repository, log *logrus.Logger) *AuditService {
	return &AuditService{repo: repo, log: log}
}

// Init bootstraps the audit schema. On failure the service keeps running
// with writes disabled and only a warning is emitted.
func (s *AuditService) Init(ctx context.Context) {
	if err := composables.InTx(ctx, s.repo.EnsureSchema); err != nil {
		s.log.WithError(err).Warn("audit storage unavailable; continuing without an audit trail")
		s.disabled = true
	}
}

func (s *AuditService) Disabled() bool {
	return s.disabled
}

func (s *AuditService) LogChange(ctx context.Context, entry *audittrail.Entry) error {
	if s.disabled {
		return nil
	}
	return s.repo.Create(ctx, entry)
}

// LogChanges appends the batch atomically: either every entry persists or
// none do.
func (s *AuditService) LogChanges(ctx context.Context, entries []*audittrail.Entry) error {
	if s.disabled {
		return nil
	}
	return s.repo.CreateBatch(ctx, entries)
}

func (s *AuditService) LogsForSubject(ctx context.Context, subjectID uuid.UUID) ([]*audittrail.Entry, error) {
	if s.disabled {
		return nil, ErrAuditDisabled
	}
	return s.repo.List(ctx, &audittrail.FindParams{SubjectID: &subjectID})
}

func (s *AuditService) LogsForSession(ctx context.Context, sessionID uuid.UUID) ([]*audittrail.Entry, error) {
	if s.disabled {
		return nil, ErrAuditDisabled
	}
	return s.repo.List(ctx, &audittrail.FindParams{SessionID: &sessionID})
}

// LogsByDateRange returns entries with from <= timestamp <= to.
func (s *AuditService) LogsByDateRange(ctx context.Context, from, to time.Time) ([]*audittrail.Entry, error) {
	if s.disabled {
		return nil, ErrAuditDisabled
	}
	return s.repo.List(ctx, &audittrail.FindParams{From: &from, To: &to})
}

func (s *AuditService) RecentLogs(ctx context.Context, limit int) ([]*audittrail.Entry, error) {
	if s.disabled {
		return nil, ErrAuditDisabled
	}
	if limit <= 0 {
		limit = 50
	}
	return s.repo.List(ctx, &audittrail.FindParams{Limit: limit})
}

func (s *AuditService) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if s.disabled {
		return 0, ErrAuditDisabled
	}
	return s.repo.PurgeOlderThan(ctx, cutoff)
}
