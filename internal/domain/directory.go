package domain

import "github.com/google/uuid"

// Directory entities are owned by the student/class/session services; the
// fees core only reads them to validate generation targets.

type Student struct {
	ID        uuid.UUID `json:"id" db:"id"`
	BranchID  uuid.UUID `json:"branch_id" db:"branch_id"`
	Name      string    `json:"name" db:"name"`
	ClassID   uuid.UUID `json:"class_id" db:"class_id"`
	SessionID uuid.UUID `json:"session_id" db:"session_id"`
	Active    bool      `json:"active" db:"active"`
}

type Class struct {
	ID       uuid.UUID `json:"id" db:"id"`
	BranchID uuid.UUID `json:"branch_id" db:"branch_id"`
	Name     string    `json:"name" db:"name"`
}

type Session struct {
	ID       uuid.UUID `json:"id" db:"id"`
	BranchID uuid.UUID `json:"branch_id" db:"branch_id"`
	Name     string    `json:"name" db:"name"`
	Active   bool      `json:"active" db:"active"`
}
