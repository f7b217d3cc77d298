package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/campuskit/fees-engine/internal/domain"
)

// TemplateRepository defines data operations on fee templates. The core is
// read-mostly here; the only write is class-assignment bookkeeping.
type TemplateRepository interface {
	// GetByID retrieves a template scoped to a branch
	GetByID(ctx context.Context, branchID, id uuid.UUID) (*domain.FeeTemplate, error)

	// GetForClassSession finds the active template assigned to a (class, session)
	GetForClassSession(ctx context.Context, branchID, classID, sessionID uuid.UUID) (*domain.FeeTemplate, error)

	// Components lists the template's fee lines joined with their categories
	Components(ctx context.Context, templateID uuid.UUID) ([]domain.TemplateComponent, error)

	// ReplaceClassAssignments overwrites the template's class list
	ReplaceClassAssignments(ctx context.Context, branchID, templateID uuid.UUID, classIDs domain.UUIDList) error
}

// ObligationRepository is the persistence behind the obligation ledger.
// The Claim/Apply/Release trio is the only path that touches the payment
// fields; each runs as a single atomic statement or transaction.
type ObligationRepository interface {
	// UpsertGenerated inserts or refreshes generated obligations keyed on
	// (student, session, period). Payment fields are never written here:
	// on conflict only the generation-derived columns change and the
	// derived balance/status are recomputed against the existing
	// amount_paid.
	UpsertGenerated(ctx context.Context, obligations []*domain.Obligation) error

	GetByID(ctx context.Context, branchID, id uuid.UUID) (*domain.Obligation, error)
	GetByStudentPeriod(ctx context.Context, branchID, studentID, sessionID uuid.UUID, period domain.PeriodLabel) (*domain.Obligation, error)
	ListByStudentSession(ctx context.Context, branchID, studentID, sessionID uuid.UUID) ([]*domain.Obligation, error)
	ListByClassSession(ctx context.Context, branchID, classID, sessionID uuid.UUID) ([]*domain.Obligation, error)
	ListByGenerationGroup(ctx context.Context, branchID, groupID uuid.UUID) ([]*domain.Obligation, error)

	// DistinctGeneratedPeriods lists period labels with at least one live obligation
	DistinctGeneratedPeriods(ctx context.Context, branchID, sessionID uuid.UUID) ([]domain.PeriodLabel, error)

	// UpdateDueDates moves the due date of live obligations only (non-null due_date)
	UpdateDueDates(ctx context.Context, branchID, studentID, sessionID uuid.UUID, periods []domain.PeriodLabel, dueDate time.Time) (int64, error)

	// UnGenerate soft-deletes: clears due_date, generated_at and any
	// in-flight transaction id on unpaid or partially paid obligations
	UnGenerate(ctx context.Context, branchID, studentID, sessionID uuid.UUID, periods []domain.PeriodLabel) (int64, error)

	// DeleteUnpaidForTemplateClasses erases obligations generated from a
	// template for the given classes, skipping any with payment history
	DeleteUnpaidForTemplateClasses(ctx context.Context, branchID, templateID, sessionID uuid.UUID, classIDs []uuid.UUID) (int64, error)

	// ClaimMerchantTxn records an in-flight transaction id; it fails when
	// one is already recorded or the obligation is paid, which is what
	// serializes concurrent initiations
	ClaimMerchantTxn(ctx context.Context, branchID, obligationID uuid.UUID, merchantTxnID string) error

	GetByMerchantTxn(ctx context.Context, merchantTxnID string) (*domain.Obligation, error)

	// ApplySuccess appends a payment detail and advances the ledger inside
	// one transaction. It is a no-op (applied=false) when merchantTxnID no
	// longer matches the obligation's recorded one.
	ApplySuccess(ctx context.Context, obligationID uuid.UUID, merchantTxnID string, detail domain.PaymentDetail) (*domain.Obligation, bool, error)

	// ReleaseMerchantTxn clears a failed attempt's transaction id, leaving
	// amounts untouched. applied=false when the id no longer matches.
	ReleaseMerchantTxn(ctx context.Context, obligationID uuid.UUID, merchantTxnID string) (bool, error)

	// ListStaleInFlight returns obligations whose in-flight attempt is older than the cutoff
	ListStaleInFlight(ctx context.Context, olderThan time.Time) ([]*domain.Obligation, error)

	// MarkOverdue persists the overdue flag on live unpaid obligations past their due date
	MarkOverdue(ctx context.Context, asOf time.Time) (int64, error)
}

// CustomFeeRepository stores per-student overrides of template components.
type CustomFeeRepository interface {
	ListForStudents(ctx context.Context, branchID, sessionID uuid.UUID, studentIDs []uuid.UUID) ([]domain.CustomFee, error)
	Upsert(ctx context.Context, branchID, sessionID uuid.UUID, fees []domain.CustomFee) error
}

// DirectoryRepository is the read-only view onto the student/class/session
// directories owned by the rest of the platform.
type DirectoryRepository interface {
	GetStudent(ctx context.Context, branchID, id uuid.UUID) (*domain.Student, error)
	ListActiveStudentsByClass(ctx context.Context, branchID, classID, sessionID uuid.UUID) ([]*domain.Student, error)
	GetClass(ctx context.Context, branchID, id uuid.UUID) (*domain.Class, error)
}

// CounterRepository issues per-tenant monotonic sequence numbers. The
// increment is a single atomic statement so it survives restarts and
// concurrent issuance.
type CounterRepository interface {
	Next(ctx context.Context, entity string, branchID uuid.UUID) (int64, error)
}

// ReceiptRepository persists receipts for settled obligations.
type ReceiptRepository interface {
	Create(ctx context.Context, receipt *domain.Receipt) error
}
