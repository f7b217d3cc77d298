package domain

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Obligation statuses. Overdue is derived from the due date at read time;
// the nightly sweep persists it only so list queries can filter cheaply.
const (
	StatusPending       = "pending"
	StatusPartiallyPaid = "partially_paid"
	StatusPaid          = "paid"
	StatusOverdue       = "overdue"
)

// FeeLine is one component of an obligation: the template amount at
// generation time, with an optional per-student override and discount.
// OriginalAmount is frozen at generation so later template edits never
// rewrite history.
type FeeLine struct {
	FeeCategoryID  uuid.UUID       `json:"fee_category_id"`
	CategoryName   string          `json:"category_name"`
	Amount         decimal.Decimal `json:"amount"`
	OriginalAmount decimal.Decimal `json:"original_amount"`
	Discount       decimal.Decimal `json:"discount"`
}

// FeeLines is the jsonb-backed component list of an obligation.
type FeeLines []FeeLine

func (f FeeLines) Value() (driver.Value, error) {
	if f == nil {
		f = FeeLines{}
	}
	return json.Marshal(f)
}

func (f *FeeLines) Scan(src interface{}) error {
	return scanJSON(src, f)
}

// PaymentDetail is one settled payment against an obligation. The list of
// details is the audit trail; the obligation's amount_paid is a cached sum
// over it.
type PaymentDetail struct {
	PaymentID      uuid.UUID       `json:"payment_id"`
	Mode           string          `json:"mode"`
	AmountPaid     decimal.Decimal `json:"amount_paid"`
	CollectionDate time.Time       `json:"collection_date"`
	ExternalRef    string          `json:"external_ref"`
}

// PaymentDetails is the jsonb-backed, append-only payment history.
type PaymentDetails []PaymentDetail

func (p PaymentDetails) Value() (driver.Value, error) {
	if p == nil {
		p = PaymentDetails{}
	}
	return json.Marshal(p)
}

func (p *PaymentDetails) Scan(src interface{}) error {
	return scanJSON(src, p)
}

// Obligation is the ledger entry recording what one student owes for one
// period of one session. At most one obligation exists per
// (student, session, period); generation upserts on that key.
//
// A nil GeneratedAt means the obligation has been un-generated: the row
// survives for audit but is not live and is skipped by due-date updates
// and payment initiation.
type Obligation struct {
	ID                    uuid.UUID       `json:"id" db:"id"`
	BranchID              uuid.UUID       `json:"branch_id" db:"branch_id"`
	StudentID             uuid.UUID       `json:"student_id" db:"student_id"`
	ClassID               uuid.UUID       `json:"class_id" db:"class_id"`
	SessionID             uuid.UUID       `json:"session_id" db:"session_id"`
	Period                PeriodLabel     `json:"period" db:"period"`
	Fees                  FeeLines        `json:"fees" db:"fees"`
	Amount                decimal.Decimal `json:"amount" db:"amount"`
	Discount              decimal.Decimal `json:"discount" db:"discount"`
	AmountPaid            decimal.Decimal `json:"amount_paid" db:"amount_paid"`
	BalanceAmount         decimal.Decimal `json:"balance_amount" db:"balance_amount"`
	ExcessAmount          decimal.Decimal `json:"excess_amount" db:"excess_amount"`
	Status                string          `json:"status" db:"status"`
	DueDate               *time.Time      `json:"due_date" db:"due_date"`
	GeneratedAt           *time.Time      `json:"generated_at" db:"generated_at"`
	GenerationGroupID     uuid.UUID       `json:"generation_group_id" db:"generation_group_id"`
	MerchantTransactionID *string         `json:"merchant_transaction_id" db:"merchant_transaction_id"`
	PaymentDetails        PaymentDetails  `json:"payment_details" db:"payment_details"`
	TemplateID            *uuid.UUID      `json:"template_id" db:"template_id"`
	CreatedAt             time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at" db:"updated_at"`
}

// NetPayable is the gross amount less discount.
func (o *Obligation) NetPayable() decimal.Decimal {
	return o.Amount.Sub(o.Discount)
}

// PayableNow is the amount a new payment attempt should charge: the
// remaining balance once anything has been paid, otherwise the full net
// amount.
func (o *Obligation) PayableNow() decimal.Decimal {
	if o.AmountPaid.IsPositive() {
		return o.BalanceAmount
	}
	return o.NetPayable()
}

// Recompute refreshes the derived fields from amount, discount and
// amount_paid. Balance clamps at zero; anything beyond the net amount is
// tracked as excess rather than a negative balance.
func (o *Obligation) Recompute() {
	net := o.NetPayable()
	balance := net.Sub(o.AmountPaid)
	if balance.IsNegative() {
		o.ExcessAmount = balance.Neg()
		balance = decimal.Zero
	} else {
		o.ExcessAmount = decimal.Zero
	}
	o.BalanceAmount = balance
	o.Status = DeriveStatus(o.AmountPaid, net)
}

// DeriveStatus is the single definition of status as a function of what has
// been paid against what is owed. Overdue is layered on top at read time.
func DeriveStatus(amountPaid, netPayable decimal.Decimal) string {
	switch {
	case amountPaid.IsZero():
		return StatusPending
	case amountPaid.GreaterThanOrEqual(netPayable):
		return StatusPaid
	default:
		return StatusPartiallyPaid
	}
}

// IsLive reports whether the obligation has been generated and not since
// un-generated.
func (o *Obligation) IsLive() bool {
	return o.GeneratedAt != nil
}

// IsOverdue reports whether an unpaid obligation is past its due date.
func (o *Obligation) IsOverdue(now time.Time) bool {
	if o.Status == StatusPaid || o.DueDate == nil {
		return false
	}
	return now.After(*o.DueDate)
}

// EffectiveStatus is the status with the overdue flag applied.
func (o *Obligation) EffectiveStatus(now time.Time) string {
	if o.IsOverdue(now) {
		return StatusOverdue
	}
	return o.Status
}

// SumLines returns gross amount and total discount over the fee lines.
func SumLines(lines FeeLines) (amount, discount decimal.Decimal) {
	for _, l := range lines {
		amount = amount.Add(l.Amount)
		discount = discount.Add(l.Discount)
	}
	return amount, discount
}
