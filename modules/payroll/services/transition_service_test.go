package services

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/haulpay/payroll-sdk/modules/payroll/domain/aggregates/employee"
	"github.com/haulpay/payroll-sdk/modules/payroll/domain/entities/audittrail"
	"github.com/haulpay/payroll-sdk/modules/payroll/domain/entities/payconfig"
)

type mockConfigRepo struct {
	calls []string

	createFunc       func(ctx context.Context, config *payconfig.Config) (uuid.UUID, error)
	getEffectiveFunc func(ctx context.Context, subjectID uuid.UUID, asOf time.Time) (*payconfig.Config, error)
	closeFunc        func(ctx context.Context, subjectID uuid.UUID, newEffective time.Time) (int64, error)
}

func (m *mockConfigRepo) Create(ctx context.Context, config *payconfig.Config) (uuid.UUID, error) {
	m.calls = append(m.calls, "create")
	if m.createFunc != nil {
		return m.createFunc(ctx, config)
	}
	config.ID = uuid.New()
	return config.ID, nil
}

func (m *mockConfigRepo) GetByID(ctx context.Context, id uuid.UUID) (*payconfig.Config, error) {
	m.calls = append(m.calls, "getByID")
	return nil, payconfig.ErrConfigNotFound
}

func (m *mockConfigRepo) GetEffective(ctx context.Context, subjectID uuid.UUID, asOf time.Time) (*payconfig.Config, error) {
	m.calls = append(m.calls, "getEffective")
	if m.getEffectiveFunc != nil {
		return m.getEffectiveFunc(ctx, subjectID, asOf)
	}
	return nil, payconfig.ErrConfigNotFound
}

func (m *mockConfigRepo) GetHistory(ctx context.Context, subjectID uuid.UUID) ([]*payconfig.Config, error) {
	m.calls = append(m.calls, "getHistory")
	return nil, nil
}

func (m *mockConfigRepo) GetFuture(ctx context.Context, subjectID uuid.UUID, from time.Time) ([]*payconfig.Config, error) {
	m.calls = append(m.calls, "getFuture")
	return nil, nil
}

func (m *mockConfigRepo) CloseOpenRecords(ctx context.Context, subjectID uuid.UUID, newEffective time.Time) (int64, error) {
	m.calls = append(m.calls, "closeOpenRecords")
	if m.closeFunc != nil {
		return m.closeFunc(ctx, subjectID, newEffective)
	}
	return 0, nil
}

func (m *mockConfigRepo) HasOverlap(ctx context.Context, subjectID uuid.UUID, candidate payconfig.Interval, excludeID uuid.UUID) (bool, error) {
	m.calls = append(m.calls, "hasOverlap")
	return false, nil
}

func (m *mockConfigRepo) UpdateDates(ctx context.Context, id uuid.UUID, dates payconfig.Interval) error {
	m.calls = append(m.calls, "updateDates")
	return nil
}

type mockEmployeeRepo struct {
	calls     []string
	lockFunc  func(ctx context.Context, id uuid.UUID) (*employee.Employee, error)
	getFunc   func(ctx context.Context, id uuid.UUID) (*employee.Employee, error)
	lastCache *employee.CurrentConfig
}

func (m *mockEmployeeRepo) Create(ctx context.Context, e *employee.Employee) (uuid.UUID, error) {
	m.calls = append(m.calls, "create")
	e.ID = uuid.New()
	return e.ID, nil
}

func (m *mockEmployeeRepo) GetByID(ctx context.Context, id uuid.UUID) (*employee.Employee, error) {
	m.calls = append(m.calls, "getByID")
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return nil, employee.ErrEmployeeNotFound
}

func (m *mockEmployeeRepo) LockByID(ctx context.Context, id uuid.UUID) (*employee.Employee, error) {
	m.calls = append(m.calls, "lockByID")
	if m.lockFunc != nil {
		return m.lockFunc(ctx, id)
	}
	return &employee.Employee{ID: id, Name: "J. Driver"}, nil
}

func (m *mockEmployeeRepo) UpdateCurrentConfig(ctx context.Context, id uuid.UUID, cfg employee.CurrentConfig) error {
	m.calls = append(m.calls, "updateCurrentConfig")
	m.lastCache = &cfg
	return nil
}

type mockAuditRepo struct {
	batches      [][]*audittrail.Entry
	batchErr     error
	ensureErr    error
	purgeCutoff  time.Time
	purged       int64
	createdSolo  []*audittrail.Entry
	listedParams *audittrail.FindParams
}

func (m *mockAuditRepo) Create(ctx context.Context, entry *audittrail.Entry) error {
	m.createdSolo = append(m.createdSolo, entry)
	return nil
}

func (m *mockAuditRepo) CreateBatch(ctx context.Context, entries []*audittrail.Entry) error {
	if m.batchErr != nil {
		return m.batchErr
	}
	m.batches = append(m.batches, entries)
	return nil
}

func (m *mockAuditRepo) List(ctx context.Context, params *audittrail.FindParams) ([]*audittrail.Entry, error) {
	m.listedParams = params
	return nil, nil
}

func (m *mockAuditRepo) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	m.purgeCutoff = cutoff
	return m.purged, nil
}

func (m *mockAuditRepo) EnsureSchema(ctx context.Context) error {
	return m.ensureErr
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func useMockTx(t *testing.T) {
	t.Helper()
	t.Cleanup(func() { runInTx = defaultRunInTx })
	runInTx = func(ctx context.Context, fn func(context.Context) error) error {
		return fn(ctx)
	}
}

func newTransitionFixture() (*TransitionService, *mockConfigRepo, *mockEmployeeRepo, *mockAuditRepo) {
	configs := &mockConfigRepo{}
	employees := &mockEmployeeRepo{}
	auditRepo := &mockAuditRepo{}
	log := testLogger()
	svc := NewTransitionService(configs, employees, NewAuditService(auditRepo, log), log)
	return svc, configs, employees, auditRepo
}

func percentageInput(subjectID uuid.UUID) ApplyInput {
	return ApplyInput{
		SubjectID:         subjectID,
		Kind:              payconfig.KindPercentage,
		DriverPercent:     decimal.NewFromInt(75),
		CompanyPercent:    decimal.NewFromInt(15),
		ServiceFeePercent: decimal.NewFromInt(10),
		EffectiveDate:     time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC),
		PerformedBy:       "dispatcher",
		SessionID:         uuid.New(),
	}
}

func TestTransitionService_Apply_ValidationFailsFast(t *testing.T) {
	useMockTx(t)
	svc, configs, employees, _ := newTransitionFixture()

	in := percentageInput(uuid.New())
	in.DriverPercent = decimal.NewFromInt(120)

	_, err := svc.Apply(context.Background(), in)
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, http.StatusBadRequest, svcErr.Status)
	require.Equal(t, "PAY_INVALID_BODY", svcErr.Code)
	require.Empty(t, configs.calls, "store must not be touched on validation failure")
	require.Empty(t, employees.calls)
}

func TestTransitionService_Apply_MissingPerformedBy(t *testing.T) {
	useMockTx(t)
	svc, configs, _, _ := newTransitionFixture()

	in := percentageInput(uuid.New())
	in.PerformedBy = "  "

	_, err := svc.Apply(context.Background(), in)
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, "PAY_INVALID_BODY", svcErr.Code)
	require.Empty(t, configs.calls)
}

func TestTransitionService_Apply_ClosesThenInsertsThenRefreshesCache(t *testing.T) {
	useMockTx(t)
	svc, configs, employees, auditRepo := newTransitionFixture()

	subjectID := uuid.New()
	prevOpen := &payconfig.Config{
		ID:                uuid.New(),
		SubjectID:         subjectID,
		Kind:              payconfig.KindPercentage,
		DriverPercent:     decimal.NewFromInt(70),
		CompanyPercent:    decimal.NewFromInt(20),
		ServiceFeePercent: decimal.NewFromInt(10),
		EffectiveDate:     time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
	configs.getEffectiveFunc = func(ctx context.Context, id uuid.UUID, asOf time.Time) (*payconfig.Config, error) {
		return prevOpen, nil
	}
	configs.closeFunc = func(ctx context.Context, id uuid.UUID, newEffective time.Time) (int64, error) {
		return 1, nil
	}

	result, err := svc.Apply(context.Background(), percentageInput(subjectID))
	require.NoError(t, err)
	require.Equal(t, int64(1), result.ClosedRecords)
	require.NotEqual(t, uuid.Nil, result.Record.ID)

	require.Equal(t, []string{"lockByID", "updateCurrentConfig"}, employees.calls)
	require.Equal(t, []string{"getEffective", "closeOpenRecords", "create"}, configs.calls)

	require.NotNil(t, employees.lastCache)
	require.Equal(t, payconfig.KindPercentage, employees.lastCache.Kind)
	require.True(t, employees.lastCache.DriverPercent.Equal(decimal.NewFromInt(75)))

	require.Len(t, auditRepo.batches, 1)
	entries := auditRepo.batches[0]
	require.Equal(t, result.AuditEntries, len(entries))

	byField := map[audittrail.Field]*audittrail.Entry{}
	for _, e := range entries {
		require.Equal(t, audittrail.ActionFinalUpdate, e.Action)
		require.Equal(t, "J. Driver", e.SubjectName)
		byField[e.Field] = e
	}
	driver := byField[audittrail.FieldDriverPercent]
	require.NotNil(t, driver)
	require.True(t, driver.OldValue.Decimal.Equal(decimal.NewFromInt(70)))
	require.True(t, driver.NewValue.Decimal.Equal(decimal.NewFromInt(75)))

	company := byField[audittrail.FieldCompanyPercent]
	require.NotNil(t, company)
	require.True(t, company.NewValue.Decimal.Equal(decimal.NewFromInt(15)))

	// Unchanged fields produce no entries.
	require.NotContains(t, byField, audittrail.FieldServiceFeePercent)
	require.NotContains(t, byField, audittrail.FieldFlatRateAmount)
}

func TestTransitionService_Apply_FirstConfigurationLogsCreate(t *testing.T) {
	useMockTx(t)
	svc, _, _, auditRepo := newTransitionFixture()

	result, err := svc.Apply(context.Background(), percentageInput(uuid.New()))
	require.NoError(t, err)
	require.Equal(t, int64(0), result.ClosedRecords)

	require.Len(t, auditRepo.batches, 1)
	fields := map[audittrail.Field]bool{}
	for _, e := range auditRepo.batches[0] {
		require.Equal(t, audittrail.ActionCreate, e.Action)
		fields[e.Field] = true
	}
	require.True(t, fields[audittrail.FieldKind])
	require.True(t, fields[audittrail.FieldDriverPercent])
}

func TestTransitionService_Apply_AuditFailureDoesNotFailTransition(t *testing.T) {
	useMockTx(t)
	configs := &mockConfigRepo{}
	employees := &mockEmployeeRepo{}
	auditRepo := &mockAuditRepo{batchErr: context.DeadlineExceeded}
	log := testLogger()
	svc := NewTransitionService(configs, employees, NewAuditService(auditRepo, log), log)

	result, err := svc.Apply(context.Background(), percentageInput(uuid.New()))
	require.NoError(t, err, "audit failures must not roll back the transition")
	require.NotNil(t, result.Record)
}

func TestTransitionService_Apply_UnknownEmployee(t *testing.T) {
	useMockTx(t)
	svc, configs, employees, _ := newTransitionFixture()
	employees.lockFunc = func(ctx context.Context, id uuid.UUID) (*employee.Employee, error) {
		return nil, employee.ErrEmployeeNotFound
	}

	_, err := svc.Apply(context.Background(), percentageInput(uuid.New()))
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, "PAY_EMPLOYEE_NOT_FOUND", svcErr.Code)
	require.Empty(t, configs.calls, "nothing may be written for an unknown subject")
}

func TestTransitionService_Apply_DefaultsSessionID(t *testing.T) {
	useMockTx(t)
	svc, _, _, auditRepo := newTransitionFixture()

	in := percentageInput(uuid.New())
	in.SessionID = uuid.Nil

	_, err := svc.Apply(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, auditRepo.batches, 1)
	for _, e := range auditRepo.batches[0] {
		require.NotEqual(t, uuid.Nil, e.SessionID)
	}
}

func TestConfigDiff_KindChange(t *testing.T) {
	subjectID := uuid.New()
	prev := &payconfig.Config{
		SubjectID:         subjectID,
		Kind:              payconfig.KindPercentage,
		DriverPercent:     decimal.NewFromInt(70),
		CompanyPercent:    decimal.NewFromInt(20),
		ServiceFeePercent: decimal.NewFromInt(10),
	}
	next := &payconfig.Config{
		SubjectID:      subjectID,
		Kind:           payconfig.KindFlatRate,
		FlatRateAmount: decimal.NewFromInt(1200),
	}

	entries := configDiff(prev, next, "J. Driver", "admin", uuid.New())

	var kindEntry *audittrail.Entry
	for _, e := range entries {
		if e.Field == audittrail.FieldKind {
			kindEntry = e
		}
	}
	require.NotNil(t, kindEntry)
	require.Equal(t, "percentage -> flat_rate", kindEntry.Notes)
	require.False(t, kindEntry.OldValue.Valid)
	require.False(t, kindEntry.NewValue.Valid)
}
