package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campuskit/fees-engine/internal/domain"
)

type customFeeRepository struct {
	db *sqlx.DB
}

func NewCustomFeeRepository(db *sqlx.DB) CustomFeeRepository {
	return &customFeeRepository{db: db}
}

func (r *customFeeRepository) ListForStudents(ctx context.Context, branchID, sessionID uuid.UUID, studentIDs []uuid.UUID) ([]domain.CustomFee, error) {
	if len(studentIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT student_id, fee_category_id, period, amount, discount
		FROM custom_fees
		WHERE branch_id = $1 AND session_id = $2 AND student_id = ANY($3)
	`

	ids := make([]string, 0, len(studentIDs))
	for _, id := range studentIDs {
		ids = append(ids, id.String())
	}

	var out []domain.CustomFee
	if err := r.db.SelectContext(ctx, &out, query, branchID, sessionID, pq.Array(ids)); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *customFeeRepository) Upsert(ctx context.Context, branchID, sessionID uuid.UUID, fees []domain.CustomFee) error {
	if len(fees) == 0 {
		return nil
	}

	query := `
		INSERT INTO custom_fees (branch_id, session_id, student_id, fee_category_id, period, amount, discount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (branch_id, session_id, student_id, fee_category_id, period) DO UPDATE SET
			amount = EXCLUDED.amount,
			discount = EXCLUDED.discount
	`

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, f := range fees {
		if _, err := tx.ExecContext(ctx, query,
			branchID, sessionID, f.StudentID, f.FeeCategoryID, f.Period, f.Amount, f.Discount,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}
