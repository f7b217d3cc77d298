package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DTOs for requests and responses.

type GenerateStudentRequest struct {
	StudentID uuid.UUID     `json:"student_id" validate:"required"`
	SessionID uuid.UUID     `json:"session_id" validate:"required"`
	Periods   []PeriodLabel `json:"periods" validate:"required,min=1"`
	DueDate   time.Time     `json:"due_date" validate:"required"`
}

type GenerateClassRequest struct {
	ClassID   uuid.UUID     `json:"class_id" validate:"required"`
	SessionID uuid.UUID     `json:"session_id" validate:"required"`
	Periods   []PeriodLabel `json:"periods" validate:"required,min=1"`
	DueDate   time.Time     `json:"due_date" validate:"required"`
}

type AssignFeesRequest struct {
	TemplateID uuid.UUID     `json:"template_id" validate:"required"`
	SessionID  uuid.UUID     `json:"session_id" validate:"required"`
	StudentIDs []uuid.UUID   `json:"student_ids"`
	ClassIDs   []uuid.UUID   `json:"class_ids"`
	Periods    []PeriodLabel `json:"periods" validate:"required,min=1"`
	DueDate    time.Time     `json:"due_date" validate:"required"`
	CustomFees []CustomFee   `json:"custom_fees"`
}

type DueDateUpdateRequest struct {
	StudentID uuid.UUID     `json:"student_id" validate:"required"`
	SessionID uuid.UUID     `json:"session_id" validate:"required"`
	Periods   []PeriodLabel `json:"periods" validate:"required,min=1"`
	DueDate   time.Time     `json:"due_date" validate:"required"`
}

type UnGenerateRequest struct {
	StudentID uuid.UUID     `json:"student_id" validate:"required"`
	SessionID uuid.UUID     `json:"session_id" validate:"required"`
	Periods   []PeriodLabel `json:"periods" validate:"required,min=1"`
}

type PayRequest struct {
	ObligationID uuid.UUID `json:"obligation_id" validate:"required"`
	PayerContact string    `json:"payer_contact" validate:"required"`
}

// PeriodTally is the per-period summary reported back from generation and
// generation-group replay.
type PeriodTally struct {
	Period     PeriodLabel     `json:"period"`
	Amount     decimal.Decimal `json:"amount"`
	Discount   decimal.Decimal `json:"discount"`
	NetPayable decimal.Decimal `json:"net_payable"`
	AmountPaid decimal.Decimal `json:"amount_paid"`
}

// StudentGenerationResult reports what happened for one student during a
// single- or class-level generation call.
type StudentGenerationResult struct {
	StudentID uuid.UUID     `json:"student_id"`
	Skipped   bool          `json:"skipped"`
	Reason    string        `json:"reason,omitempty"`
	Periods   []PeriodTally `json:"periods,omitempty"`
}

type GenerationResult struct {
	GenerationGroupID uuid.UUID                 `json:"generation_group_id"`
	Students          []StudentGenerationResult `json:"students"`
}

type AssignFeesResult struct {
	GenerationGroupID uuid.UUID `json:"generation_group_id"`
	StudentsProcessed int       `json:"students_processed"`
	FeesAssigned      int       `json:"fees_assigned"`
	ClassesAdded      int       `json:"classes_added"`
	ClassesRemoved    int       `json:"classes_removed"`
	ObligationsErased int       `json:"obligations_erased"`
}

type GenerationGroupView struct {
	GenerationGroupID uuid.UUID     `json:"generation_group_id"`
	GeneratedAt       time.Time     `json:"generated_at"`
	Students          int           `json:"students"`
	Periods           []PeriodTally `json:"periods"`
}

type PayResponse struct {
	RedirectURL           string          `json:"redirect_url"`
	MerchantTransactionID string          `json:"merchant_transaction_id"`
	Amount                decimal.Decimal `json:"amount"`
}

type PaymentStatusResponse struct {
	MerchantTransactionID string          `json:"merchant_transaction_id"`
	State                 OutcomeState    `json:"state"`
	ObligationID          uuid.UUID       `json:"obligation_id"`
	Status                string          `json:"status"`
	AmountPaid            decimal.Decimal `json:"amount_paid"`
	BalanceAmount         decimal.Decimal `json:"balance_amount"`
}
