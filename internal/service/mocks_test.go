package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/campuskit/fees-engine/internal/domain"
	"github.com/campuskit/fees-engine/internal/gateway"
)

type MockTemplateRepository struct {
	mock.Mock
}

func (m *MockTemplateRepository) GetByID(ctx context.Context, branchID, id uuid.UUID) (*domain.FeeTemplate, error) {
	args := m.Called(ctx, branchID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FeeTemplate), args.Error(1)
}

func (m *MockTemplateRepository) GetForClassSession(ctx context.Context, branchID, classID, sessionID uuid.UUID) (*domain.FeeTemplate, error) {
	args := m.Called(ctx, branchID, classID, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FeeTemplate), args.Error(1)
}

func (m *MockTemplateRepository) Components(ctx context.Context, templateID uuid.UUID) ([]domain.TemplateComponent, error) {
	args := m.Called(ctx, templateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TemplateComponent), args.Error(1)
}

func (m *MockTemplateRepository) ReplaceClassAssignments(ctx context.Context, branchID, templateID uuid.UUID, classIDs domain.UUIDList) error {
	args := m.Called(ctx, branchID, templateID, classIDs)
	return args.Error(0)
}

type MockObligationRepository struct {
	mock.Mock
}

func (m *MockObligationRepository) UpsertGenerated(ctx context.Context, obligations []*domain.Obligation) error {
	args := m.Called(ctx, obligations)
	return args.Error(0)
}

func (m *MockObligationRepository) GetByID(ctx context.Context, branchID, id uuid.UUID) (*domain.Obligation, error) {
	args := m.Called(ctx, branchID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Obligation), args.Error(1)
}

func (m *MockObligationRepository) GetByStudentPeriod(ctx context.Context, branchID, studentID, sessionID uuid.UUID, period domain.PeriodLabel) (*domain.Obligation, error) {
	args := m.Called(ctx, branchID, studentID, sessionID, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Obligation), args.Error(1)
}

func (m *MockObligationRepository) ListByStudentSession(ctx context.Context, branchID, studentID, sessionID uuid.UUID) ([]*domain.Obligation, error) {
	args := m.Called(ctx, branchID, studentID, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Obligation), args.Error(1)
}

func (m *MockObligationRepository) ListByClassSession(ctx context.Context, branchID, classID, sessionID uuid.UUID) ([]*domain.Obligation, error) {
	args := m.Called(ctx, branchID, classID, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Obligation), args.Error(1)
}

func (m *MockObligationRepository) ListByGenerationGroup(ctx context.Context, branchID, groupID uuid.UUID) ([]*domain.Obligation, error) {
	args := m.Called(ctx, branchID, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Obligation), args.Error(1)
}

func (m *MockObligationRepository) DistinctGeneratedPeriods(ctx context.Context, branchID, sessionID uuid.UUID) ([]domain.PeriodLabel, error) {
	args := m.Called(ctx, branchID, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PeriodLabel), args.Error(1)
}

func (m *MockObligationRepository) UpdateDueDates(ctx context.Context, branchID, studentID, sessionID uuid.UUID, periods []domain.PeriodLabel, dueDate time.Time) (int64, error) {
	args := m.Called(ctx, branchID, studentID, sessionID, periods, dueDate)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockObligationRepository) UnGenerate(ctx context.Context, branchID, studentID, sessionID uuid.UUID, periods []domain.PeriodLabel) (int64, error) {
	args := m.Called(ctx, branchID, studentID, sessionID, periods)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockObligationRepository) DeleteUnpaidForTemplateClasses(ctx context.Context, branchID, templateID, sessionID uuid.UUID, classIDs []uuid.UUID) (int64, error) {
	args := m.Called(ctx, branchID, templateID, sessionID, classIDs)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockObligationRepository) ClaimMerchantTxn(ctx context.Context, branchID, obligationID uuid.UUID, merchantTxnID string) error {
	args := m.Called(ctx, branchID, obligationID, merchantTxnID)
	return args.Error(0)
}

func (m *MockObligationRepository) GetByMerchantTxn(ctx context.Context, merchantTxnID string) (*domain.Obligation, error) {
	args := m.Called(ctx, merchantTxnID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Obligation), args.Error(1)
}

func (m *MockObligationRepository) ApplySuccess(ctx context.Context, obligationID uuid.UUID, merchantTxnID string, detail domain.PaymentDetail) (*domain.Obligation, bool, error) {
	args := m.Called(ctx, obligationID, merchantTxnID, detail)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.Obligation), args.Bool(1), args.Error(2)
}

func (m *MockObligationRepository) ReleaseMerchantTxn(ctx context.Context, obligationID uuid.UUID, merchantTxnID string) (bool, error) {
	args := m.Called(ctx, obligationID, merchantTxnID)
	return args.Bool(0), args.Error(1)
}

func (m *MockObligationRepository) ListStaleInFlight(ctx context.Context, olderThan time.Time) ([]*domain.Obligation, error) {
	args := m.Called(ctx, olderThan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Obligation), args.Error(1)
}

func (m *MockObligationRepository) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	args := m.Called(ctx, asOf)
	return args.Get(0).(int64), args.Error(1)
}

type MockCustomFeeRepository struct {
	mock.Mock
}

func (m *MockCustomFeeRepository) ListForStudents(ctx context.Context, branchID, sessionID uuid.UUID, studentIDs []uuid.UUID) ([]domain.CustomFee, error) {
	args := m.Called(ctx, branchID, sessionID, studentIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.CustomFee), args.Error(1)
}

func (m *MockCustomFeeRepository) Upsert(ctx context.Context, branchID, sessionID uuid.UUID, fees []domain.CustomFee) error {
	args := m.Called(ctx, branchID, sessionID, fees)
	return args.Error(0)
}

type MockDirectoryRepository struct {
	mock.Mock
}

func (m *MockDirectoryRepository) GetStudent(ctx context.Context, branchID, id uuid.UUID) (*domain.Student, error) {
	args := m.Called(ctx, branchID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Student), args.Error(1)
}

func (m *MockDirectoryRepository) ListActiveStudentsByClass(ctx context.Context, branchID, classID, sessionID uuid.UUID) ([]*domain.Student, error) {
	args := m.Called(ctx, branchID, classID, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Student), args.Error(1)
}

func (m *MockDirectoryRepository) GetClass(ctx context.Context, branchID, id uuid.UUID) (*domain.Class, error) {
	args := m.Called(ctx, branchID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Class), args.Error(1)
}

type MockCounterRepository struct {
	mock.Mock
}

func (m *MockCounterRepository) Next(ctx context.Context, entity string, branchID uuid.UUID) (int64, error) {
	args := m.Called(ctx, entity, branchID)
	return args.Get(0).(int64), args.Error(1)
}

type MockReceiptRepository struct {
	mock.Mock
}

func (m *MockReceiptRepository) Create(ctx context.Context, receipt *domain.Receipt) error {
	args := m.Called(ctx, receipt)
	return args.Error(0)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Initiate(ctx context.Context, req gateway.InitiateRequest) (*gateway.InitiateResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.InitiateResponse), args.Error(1)
}

func (m *MockGateway) InterpretCallback(body []byte) (domain.Outcome, error) {
	args := m.Called(body)
	return args.Get(0).(domain.Outcome), args.Error(1)
}

func (m *MockGateway) PollStatus(ctx context.Context, merchantTransactionID string) (domain.Outcome, error) {
	args := m.Called(ctx, merchantTransactionID)
	return args.Get(0).(domain.Outcome), args.Error(1)
}
