package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/campuskit/fees-engine/internal/domain"
	customError "github.com/campuskit/fees-engine/pkg/errors"
)

type generationFixture struct {
	branchID  uuid.UUID
	sessionID uuid.UUID
	classID   uuid.UUID
	student   *domain.Student
	template  *domain.FeeTemplate

	tuitionID uuid.UUID
	examID    uuid.UUID

	templates   *MockTemplateRepository
	obligations *MockObligationRepository
	customFees  *MockCustomFeeRepository
	directory   *MockDirectoryRepository

	svc *GenerationService
}

func newGenerationFixture() *generationFixture {
	f := &generationFixture{
		branchID:  uuid.New(),
		sessionID: uuid.New(),
		classID:   uuid.New(),
		tuitionID: uuid.New(),
		examID:    uuid.New(),

		templates:   new(MockTemplateRepository),
		obligations: new(MockObligationRepository),
		customFees:  new(MockCustomFeeRepository),
		directory:   new(MockDirectoryRepository),
	}
	f.student = &domain.Student{
		ID:        uuid.New(),
		BranchID:  f.branchID,
		Name:      "Asha Verma",
		ClassID:   f.classID,
		SessionID: f.sessionID,
		Active:    true,
	}
	f.template = &domain.FeeTemplate{
		ID:        uuid.New(),
		BranchID:  f.branchID,
		Name:      "Class 5 Standard",
		SessionID: f.sessionID,
		ClassIDs:  domain.UUIDList{f.classID},
		Status:    domain.TemplateStatusActive,
	}
	f.svc = NewGenerationService(f.templates, f.obligations, f.customFees, f.directory, nil, zap.NewNop())
	return f
}

func (f *generationFixture) components() []domain.TemplateComponent {
	return []domain.TemplateComponent{
		{
			TemplateID:    f.template.ID,
			FeeCategoryID: f.tuitionID,
			CategoryName:  "Tuition Fee",
			Periodicity:   domain.PeriodicityMonthly,
			Amount:        decimal.NewFromInt(1000),
			Position:      1,
		},
		{
			TemplateID:    f.template.ID,
			FeeCategoryID: f.examID,
			CategoryName:  "Exam Fee",
			Periodicity:   domain.PeriodicityQuarterly,
			Amount:        decimal.NewFromInt(500),
			Position:      2,
		},
	}
}

func TestGenerateForStudent(t *testing.T) {
	f := newGenerationFixture()

	req := &domain.GenerateStudentRequest{
		StudentID: f.student.ID,
		SessionID: f.sessionID,
		Periods:   []domain.PeriodLabel{domain.PeriodApr, domain.PeriodMay},
		DueDate:   time.Now().AddDate(0, 0, 10),
	}

	f.directory.On("GetStudent", mock.Anything, f.branchID, f.student.ID).Return(f.student, nil)
	f.templates.On("GetForClassSession", mock.Anything, f.branchID, f.classID, f.sessionID).Return(f.template, nil)
	f.templates.On("Components", mock.Anything, f.template.ID).Return(f.components(), nil)
	f.customFees.On("ListForStudents", mock.Anything, f.branchID, f.sessionID, []uuid.UUID{f.student.ID}).
		Return([]domain.CustomFee{}, nil)

	var captured []*domain.Obligation
	f.obligations.On("UpsertGenerated", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).([]*domain.Obligation)
		}).
		Return(nil)

	result, err := f.svc.GenerateForStudent(context.Background(), f.branchID, req)

	assert.NoError(t, err)
	assert.Len(t, result.Students, 1)
	assert.Len(t, captured, 2)

	// April covers both components, May only the monthly one.
	byPeriod := make(map[domain.PeriodLabel]*domain.Obligation)
	for _, o := range captured {
		byPeriod[o.Period] = o
		assert.Equal(t, f.student.ID, o.StudentID)
		assert.Equal(t, f.sessionID, o.SessionID)
		assert.Equal(t, result.GenerationGroupID, o.GenerationGroupID)
		assert.Equal(t, domain.StatusPending, o.Status)
		assert.NotNil(t, o.GeneratedAt)
	}
	assert.True(t, byPeriod[domain.PeriodApr].Amount.Equal(decimal.NewFromInt(1500)))
	assert.Len(t, byPeriod[domain.PeriodApr].Fees, 2)
	assert.True(t, byPeriod[domain.PeriodMay].Amount.Equal(decimal.NewFromInt(1000)))
	assert.Len(t, byPeriod[domain.PeriodMay].Fees, 1)

	f.obligations.AssertExpectations(t)
}

func TestGenerateForStudent_OverrideReplacesAmountKeepsOriginal(t *testing.T) {
	f := newGenerationFixture()

	req := &domain.GenerateStudentRequest{
		StudentID: f.student.ID,
		SessionID: f.sessionID,
		Periods:   []domain.PeriodLabel{domain.PeriodMay},
		DueDate:   time.Now().AddDate(0, 0, 10),
	}

	f.directory.On("GetStudent", mock.Anything, f.branchID, f.student.ID).Return(f.student, nil)
	f.templates.On("GetForClassSession", mock.Anything, f.branchID, f.classID, f.sessionID).Return(f.template, nil)
	f.templates.On("Components", mock.Anything, f.template.ID).Return(f.components(), nil)
	f.customFees.On("ListForStudents", mock.Anything, f.branchID, f.sessionID, []uuid.UUID{f.student.ID}).
		Return([]domain.CustomFee{
			{
				StudentID:     f.student.ID,
				FeeCategoryID: f.tuitionID,
				Period:        domain.PeriodMay,
				Amount:        decimal.NewFromInt(800),
				Discount:      decimal.NewFromInt(100),
			},
		}, nil)

	var captured []*domain.Obligation
	f.obligations.On("UpsertGenerated", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).([]*domain.Obligation)
		}).
		Return(nil)

	_, err := f.svc.GenerateForStudent(context.Background(), f.branchID, req)

	assert.NoError(t, err)
	assert.Len(t, captured, 1)

	line := captured[0].Fees[0]
	assert.True(t, line.Amount.Equal(decimal.NewFromInt(800)))
	assert.True(t, line.OriginalAmount.Equal(decimal.NewFromInt(1000)))
	assert.True(t, line.Discount.Equal(decimal.NewFromInt(100)))
	assert.True(t, captured[0].BalanceAmount.Equal(decimal.NewFromInt(700)))
}

func TestGenerateForStudent_InvalidPeriod(t *testing.T) {
	f := newGenerationFixture()

	req := &domain.GenerateStudentRequest{
		StudentID: f.student.ID,
		SessionID: f.sessionID,
		Periods:   []domain.PeriodLabel{"April"},
		DueDate:   time.Now(),
	}

	_, err := f.svc.GenerateForStudent(context.Background(), f.branchID, req)

	assert.Error(t, err)
	assert.Equal(t, customError.CodeValidation, customError.CodeOf(err))
	f.obligations.AssertNotCalled(t, "UpsertGenerated", mock.Anything, mock.Anything)
}

func TestGenerateForStudent_StudentNotInSession(t *testing.T) {
	f := newGenerationFixture()
	otherSession := uuid.New()

	req := &domain.GenerateStudentRequest{
		StudentID: f.student.ID,
		SessionID: otherSession,
		Periods:   []domain.PeriodLabel{domain.PeriodApr},
		DueDate:   time.Now(),
	}

	f.directory.On("GetStudent", mock.Anything, f.branchID, f.student.ID).Return(f.student, nil)

	_, err := f.svc.GenerateForStudent(context.Background(), f.branchID, req)

	assert.Error(t, err)
	assert.Equal(t, customError.CodeStudentNotFound, customError.CodeOf(err))
}

func TestGenerateForStudent_TemplateNotFound(t *testing.T) {
	f := newGenerationFixture()

	req := &domain.GenerateStudentRequest{
		StudentID: f.student.ID,
		SessionID: f.sessionID,
		Periods:   []domain.PeriodLabel{domain.PeriodApr},
		DueDate:   time.Now(),
	}

	f.directory.On("GetStudent", mock.Anything, f.branchID, f.student.ID).Return(f.student, nil)
	f.templates.On("GetForClassSession", mock.Anything, f.branchID, f.classID, f.sessionID).
		Return(nil, sql.ErrNoRows)

	_, err := f.svc.GenerateForStudent(context.Background(), f.branchID, req)

	assert.Error(t, err)
	assert.Equal(t, customError.CodeTemplateNotFound, customError.CodeOf(err))
}

func TestGenerateForStudent_NoApplicableFees(t *testing.T) {
	f := newGenerationFixture()

	// Only a quarterly component, and May is not a quarter start.
	components := []domain.TemplateComponent{
		{
			TemplateID:    f.template.ID,
			FeeCategoryID: f.examID,
			CategoryName:  "Exam Fee",
			Periodicity:   domain.PeriodicityQuarterly,
			Amount:        decimal.NewFromInt(500),
		},
	}

	req := &domain.GenerateStudentRequest{
		StudentID: f.student.ID,
		SessionID: f.sessionID,
		Periods:   []domain.PeriodLabel{domain.PeriodMay},
		DueDate:   time.Now(),
	}

	f.directory.On("GetStudent", mock.Anything, f.branchID, f.student.ID).Return(f.student, nil)
	f.templates.On("GetForClassSession", mock.Anything, f.branchID, f.classID, f.sessionID).Return(f.template, nil)
	f.templates.On("Components", mock.Anything, f.template.ID).Return(components, nil)
	f.customFees.On("ListForStudents", mock.Anything, f.branchID, f.sessionID, []uuid.UUID{f.student.ID}).
		Return([]domain.CustomFee{}, nil)

	_, err := f.svc.GenerateForStudent(context.Background(), f.branchID, req)

	assert.Error(t, err)
	assert.Equal(t, customError.CodeNoApplicableFees, customError.CodeOf(err))
	f.obligations.AssertNotCalled(t, "UpsertGenerated", mock.Anything, mock.Anything)
}

func TestGenerateForClass(t *testing.T) {
	f := newGenerationFixture()

	second := &domain.Student{
		ID:        uuid.New(),
		BranchID:  f.branchID,
		Name:      "Rohan Gupta",
		ClassID:   f.classID,
		SessionID: f.sessionID,
		Active:    true,
	}

	req := &domain.GenerateClassRequest{
		ClassID:   f.classID,
		SessionID: f.sessionID,
		Periods:   []domain.PeriodLabel{domain.PeriodJul},
		DueDate:   time.Now().AddDate(0, 0, 10),
	}

	f.directory.On("GetClass", mock.Anything, f.branchID, f.classID).
		Return(&domain.Class{ID: f.classID, BranchID: f.branchID, Name: "Class 5"}, nil)
	f.directory.On("ListActiveStudentsByClass", mock.Anything, f.branchID, f.classID, f.sessionID).
		Return([]*domain.Student{f.student, second}, nil)
	f.templates.On("GetForClassSession", mock.Anything, f.branchID, f.classID, f.sessionID).Return(f.template, nil)
	f.templates.On("Components", mock.Anything, f.template.ID).Return(f.components(), nil)
	f.customFees.On("ListForStudents", mock.Anything, f.branchID, f.sessionID, mock.Anything).
		Return([]domain.CustomFee{}, nil)

	var captured []*domain.Obligation
	f.obligations.On("UpsertGenerated", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).([]*domain.Obligation)
		}).
		Return(nil)

	result, err := f.svc.GenerateForClass(context.Background(), f.branchID, req)

	assert.NoError(t, err)
	assert.Len(t, result.Students, 2)
	for _, sr := range result.Students {
		assert.False(t, sr.Skipped)
		assert.Len(t, sr.Periods, 1)
	}
	// One obligation per student, all in the same generation group.
	assert.Len(t, captured, 2)
	for _, o := range captured {
		assert.Equal(t, result.GenerationGroupID, o.GenerationGroupID)
		// July covers both the monthly and the quarterly component.
		assert.True(t, o.Amount.Equal(decimal.NewFromInt(1500)))
	}
}

func TestGenerateForClass_ClassNotFound(t *testing.T) {
	f := newGenerationFixture()

	req := &domain.GenerateClassRequest{
		ClassID:   f.classID,
		SessionID: f.sessionID,
		Periods:   []domain.PeriodLabel{domain.PeriodApr},
		DueDate:   time.Now(),
	}

	f.directory.On("GetClass", mock.Anything, f.branchID, f.classID).Return(nil, sql.ErrNoRows)

	_, err := f.svc.GenerateForClass(context.Background(), f.branchID, req)

	assert.Error(t, err)
	assert.Equal(t, customError.CodeClassNotFound, customError.CodeOf(err))
}

func TestAssignTemplate_SessionMismatch(t *testing.T) {
	f := newGenerationFixture()

	req := &domain.AssignFeesRequest{
		TemplateID: f.template.ID,
		SessionID:  uuid.New(),
		StudentIDs: []uuid.UUID{f.student.ID},
		Periods:    []domain.PeriodLabel{domain.PeriodApr},
		DueDate:    time.Now(),
	}

	f.templates.On("GetByID", mock.Anything, f.branchID, f.template.ID).Return(f.template, nil)

	_, err := f.svc.AssignTemplate(context.Background(), f.branchID, req)

	assert.Error(t, err)
	assert.Equal(t, customError.CodeSessionMismatch, customError.CodeOf(err))
}

func TestAssignTemplate_RemovedClassLosesUnpaidObligations(t *testing.T) {
	f := newGenerationFixture()
	removedClass := uuid.New()
	f.template.ClassIDs = domain.UUIDList{f.classID, removedClass}

	req := &domain.AssignFeesRequest{
		TemplateID: f.template.ID,
		SessionID:  f.sessionID,
		ClassIDs:   []uuid.UUID{f.classID},
		Periods:    []domain.PeriodLabel{domain.PeriodApr},
		DueDate:    time.Now().AddDate(0, 0, 10),
	}

	f.templates.On("GetByID", mock.Anything, f.branchID, f.template.ID).Return(f.template, nil)
	f.templates.On("Components", mock.Anything, f.template.ID).Return(f.components(), nil)
	f.directory.On("ListActiveStudentsByClass", mock.Anything, f.branchID, f.classID, f.sessionID).
		Return([]*domain.Student{f.student}, nil)
	f.obligations.On("DeleteUnpaidForTemplateClasses", mock.Anything, f.branchID, f.template.ID, f.sessionID, []uuid.UUID{removedClass}).
		Return(int64(3), nil)
	f.templates.On("ReplaceClassAssignments", mock.Anything, f.branchID, f.template.ID, domain.UUIDList(req.ClassIDs)).
		Return(nil)
	f.customFees.On("ListForStudents", mock.Anything, f.branchID, f.sessionID, mock.Anything).
		Return([]domain.CustomFee{}, nil)
	f.obligations.On("UpsertGenerated", mock.Anything, mock.Anything).Return(nil)

	result, err := f.svc.AssignTemplate(context.Background(), f.branchID, req)

	assert.NoError(t, err)
	assert.Equal(t, 1, result.ClassesRemoved)
	assert.Equal(t, 3, result.ObligationsErased)
	assert.Equal(t, 1, result.StudentsProcessed)
	f.templates.AssertExpectations(t)
	f.obligations.AssertExpectations(t)
}

func TestAssignTemplate_NoTargets(t *testing.T) {
	f := newGenerationFixture()

	req := &domain.AssignFeesRequest{
		TemplateID: f.template.ID,
		SessionID:  f.sessionID,
		Periods:    []domain.PeriodLabel{domain.PeriodApr},
		DueDate:    time.Now(),
	}

	_, err := f.svc.AssignTemplate(context.Background(), f.branchID, req)

	assert.Error(t, err)
	assert.Equal(t, customError.CodeValidation, customError.CodeOf(err))
}

func TestUnGenerate_NothingMatched(t *testing.T) {
	f := newGenerationFixture()

	req := &domain.UnGenerateRequest{
		StudentID: f.student.ID,
		SessionID: f.sessionID,
		Periods:   []domain.PeriodLabel{domain.PeriodApr},
	}

	f.obligations.On("UnGenerate", mock.Anything, f.branchID, f.student.ID, f.sessionID, req.Periods).
		Return(int64(0), nil)

	_, err := f.svc.UnGenerate(context.Background(), f.branchID, req)

	assert.Error(t, err)
	assert.Equal(t, customError.CodeObligationMissing, customError.CodeOf(err))
}

func TestGeneratedMonths_CycleOrder(t *testing.T) {
	f := newGenerationFixture()

	f.obligations.On("DistinctGeneratedPeriods", mock.Anything, f.branchID, f.sessionID).
		Return([]domain.PeriodLabel{domain.PeriodJan, domain.PeriodApr, domain.PeriodSep}, nil)

	months, err := f.svc.GeneratedMonths(context.Background(), f.branchID, f.sessionID)

	assert.NoError(t, err)
	assert.Equal(t, []domain.PeriodLabel{domain.PeriodApr, domain.PeriodSep, domain.PeriodJan}, months)
}

func TestDiffClasses(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	added, removed := diffClasses(domain.UUIDList{a, b}, []uuid.UUID{b, c})

	assert.Equal(t, []uuid.UUID{c}, added)
	assert.Equal(t, []uuid.UUID{a}, removed)
}

func TestGenerationGroups_AggregatesLiveObligations(t *testing.T) {
	f := newGenerationFixture()
	groupID := uuid.New()
	now := time.Now()

	live := &domain.Obligation{
		ID:                uuid.New(),
		BranchID:          f.branchID,
		StudentID:         f.student.ID,
		SessionID:         f.sessionID,
		Period:            domain.PeriodApr,
		Amount:            decimal.NewFromInt(1000),
		Discount:          decimal.NewFromInt(100),
		AmountPaid:        decimal.NewFromInt(200),
		GeneratedAt:       &now,
		GenerationGroupID: groupID,
	}
	unGenerated := &domain.Obligation{
		ID:                uuid.New(),
		BranchID:          f.branchID,
		StudentID:         f.student.ID,
		SessionID:         f.sessionID,
		Period:            domain.PeriodMay,
		Amount:            decimal.NewFromInt(1000),
		GenerationGroupID: groupID,
	}

	f.obligations.On("ListByStudentSession", mock.Anything, f.branchID, f.student.ID, f.sessionID).
		Return([]*domain.Obligation{live, unGenerated}, nil)

	groups, err := f.svc.GenerationGroups(context.Background(), f.branchID, &f.student.ID, nil, f.sessionID)

	assert.NoError(t, err)
	assert.Len(t, groups, 1)
	assert.Equal(t, groupID, groups[0].GenerationGroupID)
	assert.Equal(t, 1, groups[0].Students)
	assert.Len(t, groups[0].Periods, 1)
	assert.Equal(t, domain.PeriodApr, groups[0].Periods[0].Period)
	assert.True(t, groups[0].Periods[0].NetPayable.Equal(decimal.NewFromInt(900)))
	assert.True(t, groups[0].Periods[0].AmountPaid.Equal(decimal.NewFromInt(200)))
}
