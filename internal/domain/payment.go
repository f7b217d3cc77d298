package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OutcomeState is the canonical result of a gateway interaction.
type OutcomeState string

const (
	OutcomeSuccess OutcomeState = "SUCCESS"
	OutcomePending OutcomeState = "PENDING"
	OutcomeFailed  OutcomeState = "FAILED"
)

// Outcome is the normalized form every gateway response is reduced to
// before the reconciler sees it. MerchantTransactionID ties the outcome to
// the attempt it belongs to; the reconciler rejects outcomes whose id no
// longer matches the obligation's recorded one.
type Outcome struct {
	State                 OutcomeState
	MerchantTransactionID string
	AmountSettled         decimal.Decimal
	InstrumentType        string
	ExternalRef           string
	Reason                string
}

// CustomFee is a per-student override of a template component, matched by
// fee category and period during generation.
type CustomFee struct {
	StudentID     uuid.UUID       `json:"student_id" db:"student_id"`
	FeeCategoryID uuid.UUID       `json:"fee_category_id" db:"fee_category_id"`
	Period        PeriodLabel     `json:"period" db:"period"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Discount      decimal.Decimal `json:"discount" db:"discount"`
}

// Receipt is the durable document reference produced once an obligation
// reaches paid. Its absence never blocks the financial state transition.
type Receipt struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	BranchID     uuid.UUID       `json:"branch_id" db:"branch_id"`
	ObligationID uuid.UUID       `json:"obligation_id" db:"obligation_id"`
	ReceiptNo    string          `json:"receipt_no" db:"receipt_no"`
	Amount       decimal.Decimal `json:"amount" db:"amount"`
	Mode         string          `json:"mode" db:"mode"`
	ExternalRef  string          `json:"external_ref" db:"external_ref"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}
