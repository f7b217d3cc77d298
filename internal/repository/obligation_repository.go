package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campuskit/fees-engine/internal/domain"
)

const obligationColumns = `
	id, branch_id, student_id, class_id, session_id, period, fees,
	amount, discount, amount_paid, balance_amount, excess_amount, status,
	due_date, generated_at, generation_group_id, merchant_transaction_id,
	payment_details, template_id, created_at, updated_at
`

type obligationRepository struct {
	db *sqlx.DB
}

func NewObligationRepository(db *sqlx.DB) ObligationRepository {
	return &obligationRepository{db: db}
}

// UpsertGenerated writes generation results in one transaction per batch.
// The ON CONFLICT branch only touches generation-derived columns; the
// balance and status expressions read the row's existing amount_paid, so a
// re-generation can never clobber payment history.
func (r *obligationRepository) UpsertGenerated(ctx context.Context, obligations []*domain.Obligation) error {
	query := `
		INSERT INTO obligations (
			id, branch_id, student_id, class_id, session_id, period, fees,
			amount, discount, amount_paid, balance_amount, excess_amount, status,
			due_date, generated_at, generation_group_id, payment_details, template_id,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, $8 - $9, 0, 'pending',
			$10, $11, $12, '[]'::jsonb, $13, now(), now())
		ON CONFLICT (branch_id, student_id, session_id, period) DO UPDATE SET
			class_id = EXCLUDED.class_id,
			fees = EXCLUDED.fees,
			amount = EXCLUDED.amount,
			discount = EXCLUDED.discount,
			balance_amount = GREATEST(EXCLUDED.amount - EXCLUDED.discount - obligations.amount_paid, 0),
			excess_amount = GREATEST(obligations.amount_paid - (EXCLUDED.amount - EXCLUDED.discount), 0),
			status = CASE
				WHEN obligations.amount_paid = 0 THEN 'pending'
				WHEN obligations.amount_paid >= EXCLUDED.amount - EXCLUDED.discount THEN 'paid'
				ELSE 'partially_paid'
			END,
			due_date = EXCLUDED.due_date,
			generated_at = EXCLUDED.generated_at,
			generation_group_id = EXCLUDED.generation_group_id,
			template_id = EXCLUDED.template_id,
			updated_at = now()
	`

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, o := range obligations {
		_, err = tx.ExecContext(ctx, query,
			o.ID,
			o.BranchID,
			o.StudentID,
			o.ClassID,
			o.SessionID,
			o.Period,
			o.Fees,
			o.Amount,
			o.Discount,
			o.DueDate,
			o.GeneratedAt,
			o.GenerationGroupID,
			o.TemplateID,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *obligationRepository) GetByID(ctx context.Context, branchID, id uuid.UUID) (*domain.Obligation, error) {
	query := `SELECT ` + obligationColumns + ` FROM obligations WHERE branch_id = $1 AND id = $2`

	var o domain.Obligation
	if err := r.db.GetContext(ctx, &o, query, branchID, id); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *obligationRepository) GetByStudentPeriod(ctx context.Context, branchID, studentID, sessionID uuid.UUID, period domain.PeriodLabel) (*domain.Obligation, error) {
	query := `
		SELECT ` + obligationColumns + `
		FROM obligations
		WHERE branch_id = $1 AND student_id = $2 AND session_id = $3 AND period = $4
	`

	var o domain.Obligation
	if err := r.db.GetContext(ctx, &o, query, branchID, studentID, sessionID, period); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *obligationRepository) ListByStudentSession(ctx context.Context, branchID, studentID, sessionID uuid.UUID) ([]*domain.Obligation, error) {
	query := `
		SELECT ` + obligationColumns + `
		FROM obligations
		WHERE branch_id = $1 AND student_id = $2 AND session_id = $3
		ORDER BY array_position(ARRAY['Apr','May','Jun','Jul','Aug','Sep','Oct','Nov','Dec','Jan','Feb','Mar'], period)
	`

	var out []*domain.Obligation
	if err := r.db.SelectContext(ctx, &out, query, branchID, studentID, sessionID); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *obligationRepository) ListByClassSession(ctx context.Context, branchID, classID, sessionID uuid.UUID) ([]*domain.Obligation, error) {
	query := `
		SELECT ` + obligationColumns + `
		FROM obligations
		WHERE branch_id = $1 AND class_id = $2 AND session_id = $3
		ORDER BY student_id, period
	`

	var out []*domain.Obligation
	if err := r.db.SelectContext(ctx, &out, query, branchID, classID, sessionID); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *obligationRepository) ListByGenerationGroup(ctx context.Context, branchID, groupID uuid.UUID) ([]*domain.Obligation, error) {
	query := `
		SELECT ` + obligationColumns + `
		FROM obligations
		WHERE branch_id = $1 AND generation_group_id = $2
		ORDER BY student_id, period
	`

	var out []*domain.Obligation
	if err := r.db.SelectContext(ctx, &out, query, branchID, groupID); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *obligationRepository) DistinctGeneratedPeriods(ctx context.Context, branchID, sessionID uuid.UUID) ([]domain.PeriodLabel, error) {
	query := `
		SELECT DISTINCT period
		FROM obligations
		WHERE branch_id = $1 AND session_id = $2 AND generated_at IS NOT NULL
	`

	var out []domain.PeriodLabel
	if err := r.db.SelectContext(ctx, &out, query, branchID, sessionID); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateDueDates only touches live obligations: the due_date IS NOT NULL
// predicate keeps un-generated rows out of reach.
func (r *obligationRepository) UpdateDueDates(ctx context.Context, branchID, studentID, sessionID uuid.UUID, periods []domain.PeriodLabel, dueDate time.Time) (int64, error) {
	query := `
		UPDATE obligations
		SET due_date = $5, updated_at = now()
		WHERE branch_id = $1 AND student_id = $2 AND session_id = $3
		  AND period = ANY($4)
		  AND due_date IS NOT NULL
	`

	res, err := r.db.ExecContext(ctx, query, branchID, studentID, sessionID, pq.Array(periodStrings(periods)), dueDate)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *obligationRepository) UnGenerate(ctx context.Context, branchID, studentID, sessionID uuid.UUID, periods []domain.PeriodLabel) (int64, error) {
	query := `
		UPDATE obligations
		SET due_date = NULL, generated_at = NULL, merchant_transaction_id = NULL, updated_at = now()
		WHERE branch_id = $1 AND student_id = $2 AND session_id = $3
		  AND period = ANY($4)
		  AND generated_at IS NOT NULL
		  AND status <> 'paid'
	`

	res, err := r.db.ExecContext(ctx, query, branchID, studentID, sessionID, pq.Array(periodStrings(periods)))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteUnpaidForTemplateClasses never deletes a row that has seen money:
// the amount_paid = 0 predicate protects partially and fully paid
// obligations when classes are unassigned from a template.
func (r *obligationRepository) DeleteUnpaidForTemplateClasses(ctx context.Context, branchID, templateID, sessionID uuid.UUID, classIDs []uuid.UUID) (int64, error) {
	if len(classIDs) == 0 {
		return 0, nil
	}

	query := `
		DELETE FROM obligations
		WHERE branch_id = $1 AND template_id = $2 AND session_id = $3
		  AND class_id = ANY($4)
		  AND amount_paid = 0
	`

	ids := make([]string, 0, len(classIDs))
	for _, id := range classIDs {
		ids = append(ids, id.String())
	}

	res, err := r.db.ExecContext(ctx, query, branchID, templateID, sessionID, pq.Array(ids))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ClaimMerchantTxn is the concurrency guard for payment initiation: the
// conditional update succeeds for exactly one caller, every other
// concurrent attempt sees zero rows.
func (r *obligationRepository) ClaimMerchantTxn(ctx context.Context, branchID, obligationID uuid.UUID, merchantTxnID string) error {
	query := `
		UPDATE obligations
		SET merchant_transaction_id = $3, updated_at = now()
		WHERE branch_id = $1 AND id = $2
		  AND merchant_transaction_id IS NULL
		  AND generated_at IS NOT NULL
		  AND status <> 'paid'
	`

	res, err := r.db.ExecContext(ctx, query, branchID, obligationID, merchantTxnID)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *obligationRepository) GetByMerchantTxn(ctx context.Context, merchantTxnID string) (*domain.Obligation, error) {
	query := `SELECT ` + obligationColumns + ` FROM obligations WHERE merchant_transaction_id = $1`

	var o domain.Obligation
	if err := r.db.GetContext(ctx, &o, query, merchantTxnID); err != nil {
		return nil, err
	}
	return &o, nil
}

// ApplySuccess runs the reconciler's success branch in one transaction.
// The row is locked, the transaction id compared, the detail appended and
// the derived fields recomputed. A mismatched id commits nothing and
// reports applied=false, which makes re-application of the same outcome a
// no-op instead of a double credit.
func (r *obligationRepository) ApplySuccess(ctx context.Context, obligationID uuid.UUID, merchantTxnID string, detail domain.PaymentDetail) (*domain.Obligation, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	var o domain.Obligation
	lock := `SELECT ` + obligationColumns + ` FROM obligations WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &o, lock, obligationID); err != nil {
		return nil, false, err
	}

	if o.MerchantTransactionID == nil || *o.MerchantTransactionID != merchantTxnID {
		return &o, false, nil
	}

	o.PaymentDetails = append(o.PaymentDetails, detail)
	o.AmountPaid = o.AmountPaid.Add(detail.AmountPaid)
	o.Recompute()
	o.MerchantTransactionID = nil

	update := `
		UPDATE obligations
		SET amount_paid = $2,
		    balance_amount = $3,
		    excess_amount = $4,
		    status = $5,
		    payment_details = $6,
		    merchant_transaction_id = NULL,
		    updated_at = now()
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, update,
		o.ID, o.AmountPaid, o.BalanceAmount, o.ExcessAmount, o.Status, o.PaymentDetails,
	); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	return &o, true, nil
}

// ReleaseMerchantTxn clears a resolved-failed attempt. Amounts stay as
// they are; status falls back to whatever amount_paid implies.
func (r *obligationRepository) ReleaseMerchantTxn(ctx context.Context, obligationID uuid.UUID, merchantTxnID string) (bool, error) {
	query := `
		UPDATE obligations
		SET merchant_transaction_id = NULL,
		    status = CASE WHEN amount_paid = 0 THEN 'pending' ELSE 'partially_paid' END,
		    updated_at = now()
		WHERE id = $1 AND merchant_transaction_id = $2
	`

	res, err := r.db.ExecContext(ctx, query, obligationID, merchantTxnID)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *obligationRepository) ListStaleInFlight(ctx context.Context, olderThan time.Time) ([]*domain.Obligation, error) {
	query := `
		SELECT ` + obligationColumns + `
		FROM obligations
		WHERE merchant_transaction_id IS NOT NULL AND updated_at < $1
		ORDER BY updated_at
	`

	var out []*domain.Obligation
	if err := r.db.SelectContext(ctx, &out, query, olderThan); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *obligationRepository) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	query := `
		UPDATE obligations
		SET status = 'overdue', updated_at = now()
		WHERE generated_at IS NOT NULL
		  AND due_date IS NOT NULL AND due_date < $1
		  AND status IN ('pending', 'partially_paid')
	`

	res, err := r.db.ExecContext(ctx, query, asOf)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func periodStrings(periods []domain.PeriodLabel) []string {
	out := make([]string, 0, len(periods))
	for _, p := range periods {
		out = append(out, string(p))
	}
	return out
}
