package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/campuskit/fees-engine/internal/domain"
	"github.com/campuskit/fees-engine/internal/repository"
	customError "github.com/campuskit/fees-engine/pkg/errors"
)

const monthsCacheTTL = 5 * time.Minute

// GenerationService expands fee templates into per-student, per-period
// obligations. It never touches payment fields: the upsert it performs is
// non-destructive by construction.
type GenerationService struct {
	Templates   repository.TemplateRepository
	Obligations repository.ObligationRepository
	CustomFees  repository.CustomFeeRepository
	Directory   repository.DirectoryRepository

	cache  *redis.Client
	logger *zap.Logger
}

func NewGenerationService(
	templates repository.TemplateRepository,
	obligations repository.ObligationRepository,
	customFees repository.CustomFeeRepository,
	directory repository.DirectoryRepository,
	cache *redis.Client,
	logger *zap.Logger,
) *GenerationService {
	return &GenerationService{
		Templates:   templates,
		Obligations: obligations,
		CustomFees:  customFees,
		Directory:   directory,
		cache:       cache,
		logger:      logger,
	}
}

// GenerateForStudent expands the student's template for the requested
// periods and upserts one obligation per period. Calling it twice with the
// same arguments leaves exactly one obligation per (student, session,
// period) and never changes payment fields.
func (s *GenerationService) GenerateForStudent(ctx context.Context, branchID uuid.UUID, req *domain.GenerateStudentRequest) (*domain.GenerationResult, error) {
	if err := validatePeriods(req.Periods); err != nil {
		return nil, err
	}

	student, err := s.activeStudent(ctx, branchID, req.StudentID, req.SessionID)
	if err != nil {
		return nil, err
	}

	template, components, err := s.templateFor(ctx, branchID, student.ClassID, req.SessionID)
	if err != nil {
		return nil, err
	}

	overrides, err := s.CustomFees.ListForStudents(ctx, branchID, req.SessionID, []uuid.UUID{student.ID})
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	groupID := uuid.New()
	now := time.Now()

	obligations, tallies := buildObligations(branchID, student, template, components, overrides, req.Periods, req.DueDate, groupID, now)
	if len(obligations) == 0 {
		return nil, customError.WrapNoApplicableFees(student.ID.String())
	}

	if err := s.Obligations.UpsertGenerated(ctx, obligations); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	s.invalidateMonthsCache(ctx, branchID, req.SessionID)

	s.logger.Info("generated obligations for student",
		zap.String("student_id", student.ID.String()),
		zap.String("generation_group_id", groupID.String()),
		zap.Int("obligations", len(obligations)),
	)

	return &domain.GenerationResult{
		GenerationGroupID: groupID,
		Students: []domain.StudentGenerationResult{
			{StudentID: student.ID, Periods: tallies},
		},
	}, nil
}

// GenerateForClass fans generation out over every active student in the
// class. A student with no applicable fees is reported as skipped rather
// than failing the whole call.
func (s *GenerationService) GenerateForClass(ctx context.Context, branchID uuid.UUID, req *domain.GenerateClassRequest) (*domain.GenerationResult, error) {
	if err := validatePeriods(req.Periods); err != nil {
		return nil, err
	}

	if _, err := s.Directory.GetClass(ctx, branchID, req.ClassID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapClassNotFound(req.ClassID.String())
		}
		return nil, customError.WrapDatabaseError(err)
	}

	students, err := s.Directory.ListActiveStudentsByClass(ctx, branchID, req.ClassID, req.SessionID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	if len(students) == 0 {
		return nil, customError.WrapStudentNotFound("any active student in class " + req.ClassID.String())
	}

	template, components, err := s.templateFor(ctx, branchID, req.ClassID, req.SessionID)
	if err != nil {
		return nil, err
	}

	studentIDs := make([]uuid.UUID, 0, len(students))
	for _, st := range students {
		studentIDs = append(studentIDs, st.ID)
	}
	overrides, err := s.CustomFees.ListForStudents(ctx, branchID, req.SessionID, studentIDs)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	groupID := uuid.New()
	now := time.Now()
	result := &domain.GenerationResult{GenerationGroupID: groupID}

	var batch []*domain.Obligation
	for _, st := range students {
		obligations, tallies := buildObligations(branchID, st, template, components, overrides, req.Periods, req.DueDate, groupID, now)
		if len(obligations) == 0 {
			result.Students = append(result.Students, domain.StudentGenerationResult{
				StudentID: st.ID,
				Skipped:   true,
				Reason:    "no applicable fees for requested periods",
			})
			continue
		}
		batch = append(batch, obligations...)
		result.Students = append(result.Students, domain.StudentGenerationResult{
			StudentID: st.ID,
			Periods:   tallies,
		})
	}

	if len(batch) == 0 {
		return nil, customError.WrapNoApplicableFees("class " + req.ClassID.String())
	}

	if err := s.Obligations.UpsertGenerated(ctx, batch); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	s.invalidateMonthsCache(ctx, branchID, req.SessionID)

	s.logger.Info("generated obligations for class",
		zap.String("class_id", req.ClassID.String()),
		zap.String("generation_group_id", groupID.String()),
		zap.Int("students", len(students)),
		zap.Int("obligations", len(batch)),
	)

	return result, nil
}

// AssignTemplate resolves target students, updates the template's class
// assignments and generates obligations from either the template's default
// components or the caller-supplied custom fees. Unassigned classes lose
// only obligations that never saw a payment.
func (s *GenerationService) AssignTemplate(ctx context.Context, branchID uuid.UUID, req *domain.AssignFeesRequest) (*domain.AssignFeesResult, error) {
	if err := validatePeriods(req.Periods); err != nil {
		return nil, err
	}
	if len(req.StudentIDs) == 0 && len(req.ClassIDs) == 0 {
		return nil, customError.WrapValidation("targets", "at least one student or class is required")
	}

	template, err := s.Templates.GetByID(ctx, branchID, req.TemplateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapTemplateNotFound(req.TemplateID.String())
		}
		return nil, customError.WrapDatabaseError(err)
	}
	if template.SessionID != req.SessionID {
		return nil, customError.WrapSessionMismatch(template.ID.String(), req.SessionID.String())
	}

	components, err := s.Templates.Components(ctx, template.ID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	// Resolve targets: explicit students plus class rosters, deduplicated.
	targets := make(map[uuid.UUID]*domain.Student)
	for _, id := range req.StudentIDs {
		st, err := s.activeStudent(ctx, branchID, id, req.SessionID)
		if err != nil {
			return nil, err
		}
		targets[st.ID] = st
	}
	for _, classID := range req.ClassIDs {
		students, err := s.Directory.ListActiveStudentsByClass(ctx, branchID, classID, req.SessionID)
		if err != nil {
			return nil, customError.WrapDatabaseError(err)
		}
		for _, st := range students {
			targets[st.ID] = st
		}
	}
	if len(targets) == 0 {
		return nil, customError.WrapStudentNotFound("any target student")
	}

	result := &domain.AssignFeesResult{}

	// Class-assignment bookkeeping. Removed classes lose their unpaid
	// obligations; the template list and the deletions belong together.
	if len(req.ClassIDs) > 0 {
		added, removed := diffClasses(template.ClassIDs, req.ClassIDs)
		result.ClassesAdded = len(added)
		result.ClassesRemoved = len(removed)

		if len(removed) > 0 {
			erased, err := s.Obligations.DeleteUnpaidForTemplateClasses(ctx, branchID, template.ID, req.SessionID, removed)
			if err != nil {
				return nil, customError.WrapDatabaseError(err)
			}
			result.ObligationsErased = int(erased)
		}

		if err := s.Templates.ReplaceClassAssignments(ctx, branchID, template.ID, domain.UUIDList(req.ClassIDs)); err != nil {
			return nil, customError.WrapDatabaseError(err)
		}
	}

	if len(req.CustomFees) > 0 {
		if err := s.CustomFees.Upsert(ctx, branchID, req.SessionID, req.CustomFees); err != nil {
			return nil, customError.WrapDatabaseError(err)
		}
	}

	studentIDs := make([]uuid.UUID, 0, len(targets))
	for id := range targets {
		studentIDs = append(studentIDs, id)
	}
	overrides, err := s.CustomFees.ListForStudents(ctx, branchID, req.SessionID, studentIDs)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	groupID := uuid.New()
	now := time.Now()

	var batch []*domain.Obligation
	for _, st := range targets {
		obligations, _ := buildObligations(branchID, st, template, components, overrides, req.Periods, req.DueDate, groupID, now)
		if len(obligations) == 0 {
			continue
		}
		batch = append(batch, obligations...)
		result.StudentsProcessed++
	}
	if len(batch) == 0 {
		return nil, customError.WrapNoApplicableFees("the resolved target set")
	}

	if err := s.Obligations.UpsertGenerated(ctx, batch); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	s.invalidateMonthsCache(ctx, branchID, req.SessionID)

	result.GenerationGroupID = groupID
	result.FeesAssigned = len(batch)

	s.logger.Info("assigned template to targets",
		zap.String("template_id", template.ID.String()),
		zap.String("generation_group_id", groupID.String()),
		zap.Int("students", result.StudentsProcessed),
		zap.Int("obligations", len(batch)),
	)

	return result, nil
}

// UpdateDueDates moves the due date of live obligations only.
func (s *GenerationService) UpdateDueDates(ctx context.Context, branchID uuid.UUID, req *domain.DueDateUpdateRequest) (int64, error) {
	if err := validatePeriods(req.Periods); err != nil {
		return 0, err
	}

	n, err := s.Obligations.UpdateDueDates(ctx, branchID, req.StudentID, req.SessionID, req.Periods, req.DueDate)
	if err != nil {
		return 0, customError.WrapDatabaseError(err)
	}
	if n == 0 {
		return 0, customError.WrapObligationNotFound(fmt.Sprintf("live obligations for student %s", req.StudentID))
	}
	return n, nil
}

// UnGenerate soft-deletes obligations: the rows survive for audit but stop
// being live. Paid obligations are never touched.
func (s *GenerationService) UnGenerate(ctx context.Context, branchID uuid.UUID, req *domain.UnGenerateRequest) (int64, error) {
	if err := validatePeriods(req.Periods); err != nil {
		return 0, err
	}

	n, err := s.Obligations.UnGenerate(ctx, branchID, req.StudentID, req.SessionID, req.Periods)
	if err != nil {
		return 0, customError.WrapDatabaseError(err)
	}
	if n == 0 {
		return 0, customError.WrapObligationNotFound(fmt.Sprintf("unpaid obligations for student %s", req.StudentID))
	}

	s.invalidateMonthsCache(ctx, branchID, req.SessionID)
	return n, nil
}

// GenerationGroups replays past generation batches for a student or class
// with per-period tallies.
func (s *GenerationService) GenerationGroups(ctx context.Context, branchID uuid.UUID, studentID, classID *uuid.UUID, sessionID uuid.UUID) ([]domain.GenerationGroupView, error) {
	var (
		obligations []*domain.Obligation
		err         error
	)
	switch {
	case studentID != nil:
		obligations, err = s.Obligations.ListByStudentSession(ctx, branchID, *studentID, sessionID)
	case classID != nil:
		obligations, err = s.Obligations.ListByClassSession(ctx, branchID, *classID, sessionID)
	default:
		return nil, customError.WrapValidation("query", "studentId or classId is required")
	}
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	type groupAgg struct {
		view    domain.GenerationGroupView
		periods map[domain.PeriodLabel]*domain.PeriodTally
		members map[uuid.UUID]struct{}
	}

	groups := make(map[uuid.UUID]*groupAgg)
	var order []uuid.UUID
	for _, o := range obligations {
		if !o.IsLive() {
			continue
		}
		agg, ok := groups[o.GenerationGroupID]
		if !ok {
			agg = &groupAgg{
				view: domain.GenerationGroupView{
					GenerationGroupID: o.GenerationGroupID,
					GeneratedAt:       *o.GeneratedAt,
				},
				periods: make(map[domain.PeriodLabel]*domain.PeriodTally),
				members: make(map[uuid.UUID]struct{}),
			}
			groups[o.GenerationGroupID] = agg
			order = append(order, o.GenerationGroupID)
		}
		agg.members[o.StudentID] = struct{}{}

		tally, ok := agg.periods[o.Period]
		if !ok {
			tally = &domain.PeriodTally{Period: o.Period}
			agg.periods[o.Period] = tally
		}
		tally.Amount = tally.Amount.Add(o.Amount)
		tally.Discount = tally.Discount.Add(o.Discount)
		tally.NetPayable = tally.NetPayable.Add(o.NetPayable())
		tally.AmountPaid = tally.AmountPaid.Add(o.AmountPaid)
	}

	out := make([]domain.GenerationGroupView, 0, len(order))
	for _, id := range order {
		agg := groups[id]
		agg.view.Students = len(agg.members)
		for _, label := range domain.AcademicCycle {
			if tally, ok := agg.periods[label]; ok {
				agg.view.Periods = append(agg.view.Periods, *tally)
			}
		}
		out = append(out, agg.view)
	}
	return out, nil
}

// GeneratedMonths lists period labels with at least one live obligation,
// cached briefly since the web client polls it.
func (s *GenerationService) GeneratedMonths(ctx context.Context, branchID, sessionID uuid.UUID) ([]domain.PeriodLabel, error) {
	key := monthsCacheKey(branchID, sessionID)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, key).Result(); err == nil {
			var labels []domain.PeriodLabel
			if json.Unmarshal([]byte(cached), &labels) == nil {
				return labels, nil
			}
		}
	}

	labels, err := s.Obligations.DistinctGeneratedPeriods(ctx, branchID, sessionID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	// Keep cycle order rather than whatever DISTINCT returned.
	ordered := make([]domain.PeriodLabel, 0, len(labels))
	seen := make(map[domain.PeriodLabel]bool, len(labels))
	for _, l := range labels {
		seen[l] = true
	}
	for _, l := range domain.AcademicCycle {
		if seen[l] {
			ordered = append(ordered, l)
		}
	}

	if s.cache != nil {
		if raw, err := json.Marshal(ordered); err == nil {
			s.cache.Set(ctx, key, raw, monthsCacheTTL)
		}
	}
	return ordered, nil
}

func (s *GenerationService) activeStudent(ctx context.Context, branchID, studentID, sessionID uuid.UUID) (*domain.Student, error) {
	student, err := s.Directory.GetStudent(ctx, branchID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapStudentNotFound(studentID.String())
		}
		return nil, customError.WrapDatabaseError(err)
	}
	if !student.Active || student.SessionID != sessionID {
		return nil, customError.WrapStudentNotFound(studentID.String())
	}
	return student, nil
}

func (s *GenerationService) templateFor(ctx context.Context, branchID, classID, sessionID uuid.UUID) (*domain.FeeTemplate, []domain.TemplateComponent, error) {
	template, err := s.Templates.GetForClassSession(ctx, branchID, classID, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, customError.WrapTemplateNotFound(fmt.Sprintf("for class %s", classID))
		}
		return nil, nil, customError.WrapDatabaseError(err)
	}

	components, err := s.Templates.Components(ctx, template.ID)
	if err != nil {
		return nil, nil, customError.WrapDatabaseError(err)
	}
	return template, components, nil
}

func (s *GenerationService) invalidateMonthsCache(ctx context.Context, branchID, sessionID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, monthsCacheKey(branchID, sessionID)).Err(); err != nil {
		s.logger.Warn("failed to invalidate months cache", zap.Error(err))
	}
}

func monthsCacheKey(branchID, sessionID uuid.UUID) string {
	return fmt.Sprintf("fees:months:%s:%s", branchID, sessionID)
}

// buildObligations expands the template's components over the requested
// periods for one student. Overrides replace the template amount but the
// template amount is preserved as original_amount; components whose
// periodicity does not cover a period contribute nothing, and a period
// with no components yields no obligation at all.
func buildObligations(
	branchID uuid.UUID,
	student *domain.Student,
	template *domain.FeeTemplate,
	components []domain.TemplateComponent,
	overrides []domain.CustomFee,
	periods []domain.PeriodLabel,
	dueDate time.Time,
	groupID uuid.UUID,
	generatedAt time.Time,
) ([]*domain.Obligation, []domain.PeriodTally) {
	overrideIdx := make(map[string]domain.CustomFee, len(overrides))
	for _, cf := range overrides {
		overrideIdx[overrideKey(cf.StudentID, cf.FeeCategoryID, cf.Period)] = cf
	}

	var (
		obligations []*domain.Obligation
		tallies     []domain.PeriodTally
	)
	for _, period := range periods {
		var lines domain.FeeLines
		for _, c := range components {
			if !domain.Covers(c.Periodicity, period) {
				continue
			}
			line := domain.FeeLine{
				FeeCategoryID:  c.FeeCategoryID,
				CategoryName:   c.CategoryName,
				Amount:         c.Amount,
				OriginalAmount: c.Amount,
				Discount:       decimal.Zero,
			}
			if cf, ok := overrideIdx[overrideKey(student.ID, c.FeeCategoryID, period)]; ok {
				line.Amount = cf.Amount
				line.Discount = cf.Discount
			}
			lines = append(lines, line)
		}
		if len(lines) == 0 {
			continue
		}

		amount, discount := domain.SumLines(lines)
		due := dueDate
		gen := generatedAt
		templateID := template.ID

		obligations = append(obligations, &domain.Obligation{
			ID:                uuid.New(),
			BranchID:          branchID,
			StudentID:         student.ID,
			ClassID:           student.ClassID,
			SessionID:         template.SessionID,
			Period:            period,
			Fees:              lines,
			Amount:            amount,
			Discount:          discount,
			BalanceAmount:     amount.Sub(discount),
			Status:            domain.StatusPending,
			DueDate:           &due,
			GeneratedAt:       &gen,
			GenerationGroupID: groupID,
			TemplateID:        &templateID,
		})
		tallies = append(tallies, domain.PeriodTally{
			Period:     period,
			Amount:     amount,
			Discount:   discount,
			NetPayable: amount.Sub(discount),
		})
	}
	return obligations, tallies
}

// diffClasses compares the template's current class assignments against the
// requested set.
func diffClasses(current domain.UUIDList, next []uuid.UUID) (added, removed []uuid.UUID) {
	currentSet := make(map[uuid.UUID]bool, len(current))
	for _, id := range current {
		currentSet[id] = true
	}
	nextSet := make(map[uuid.UUID]bool, len(next))
	for _, id := range next {
		nextSet[id] = true
		if !currentSet[id] {
			added = append(added, id)
		}
	}
	for _, id := range current {
		if !nextSet[id] {
			removed = append(removed, id)
		}
	}
	return added, removed
}

func overrideKey(studentID, categoryID uuid.UUID, period domain.PeriodLabel) string {
	return studentID.String() + "|" + categoryID.String() + "|" + string(period)
}

func validatePeriods(periods []domain.PeriodLabel) error {
	for _, p := range periods {
		if !domain.IsValidPeriod(p) {
			return customError.WrapValidation("periods", fmt.Sprintf("unknown period label %q", p))
		}
	}
	return nil
}
