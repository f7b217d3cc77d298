package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/campuskit/fees-engine/internal/domain"
)

type receiptRepository struct {
	db *sqlx.DB
}

func NewReceiptRepository(db *sqlx.DB) ReceiptRepository {
	return &receiptRepository{db: db}
}

func (r *receiptRepository) Create(ctx context.Context, receipt *domain.Receipt) error {
	query := `
		INSERT INTO receipts (id, branch_id, obligation_id, receipt_no, amount, mode, external_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		receipt.ID,
		receipt.BranchID,
		receipt.ObligationID,
		receipt.ReceiptNo,
		receipt.Amount,
		receipt.Mode,
		receipt.ExternalRef,
		receipt.CreatedAt,
	)
	return err
}
