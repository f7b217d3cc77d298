package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TemplateStatusActive   = "active"
	TemplateStatusInactive = "inactive"
)

// FeeCategory is a named group of fees whose periodicity drives which
// period labels a component expands into.
type FeeCategory struct {
	ID          uuid.UUID   `json:"id" db:"id"`
	BranchID    uuid.UUID   `json:"branch_id" db:"branch_id"`
	Name        string      `json:"name" db:"name"`
	Periodicity Periodicity `json:"periodicity" db:"periodicity"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
}

// FeeTemplate is a named set of fee components scoped to a session and a
// set of classes. The core reads templates during generation; the only
// write it performs is class-assignment bookkeeping.
type FeeTemplate struct {
	ID        uuid.UUID   `json:"id" db:"id"`
	BranchID  uuid.UUID   `json:"branch_id" db:"branch_id"`
	Name      string      `json:"name" db:"name"`
	SessionID uuid.UUID   `json:"session_id" db:"session_id"`
	ClassIDs  UUIDList    `json:"class_ids" db:"class_ids"`
	Status    string      `json:"status" db:"status"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt time.Time   `json:"updated_at" db:"updated_at"`
}

// TemplateComponent is one fee line of a template, joined with its
// category so generation can expand it without a second lookup.
type TemplateComponent struct {
	TemplateID    uuid.UUID       `json:"template_id" db:"template_id"`
	FeeCategoryID uuid.UUID       `json:"fee_category_id" db:"fee_category_id"`
	CategoryName  string          `json:"category_name" db:"category_name"`
	Periodicity   Periodicity     `json:"periodicity" db:"periodicity"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Position      int             `json:"position" db:"position"`
}

// HasClass reports whether the template is assigned to the given class.
func (t *FeeTemplate) HasClass(classID uuid.UUID) bool {
	for _, id := range t.ClassIDs {
		if id == classID {
			return true
		}
	}
	return false
}
