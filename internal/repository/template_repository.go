package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campuskit/fees-engine/internal/domain"
)

type templateRepository struct {
	db *sqlx.DB
}

func NewTemplateRepository(db *sqlx.DB) TemplateRepository {
	return &templateRepository{db: db}
}

func (r *templateRepository) GetByID(ctx context.Context, branchID, id uuid.UUID) (*domain.FeeTemplate, error) {
	query := `
		SELECT id, branch_id, name, session_id, class_ids, status, created_at, updated_at
		FROM fee_templates
		WHERE branch_id = $1 AND id = $2
	`

	var t domain.FeeTemplate
	if err := r.db.GetContext(ctx, &t, query, branchID, id); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *templateRepository) GetForClassSession(ctx context.Context, branchID, classID, sessionID uuid.UUID) (*domain.FeeTemplate, error) {
	query := `
		SELECT id, branch_id, name, session_id, class_ids, status, created_at, updated_at
		FROM fee_templates
		WHERE branch_id = $1 AND session_id = $2
		  AND status = 'active'
		  AND class_ids @> to_jsonb(ARRAY[$3::text])
		LIMIT 1
	`

	var t domain.FeeTemplate
	if err := r.db.GetContext(ctx, &t, query, branchID, sessionID, classID.String()); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *templateRepository) Components(ctx context.Context, templateID uuid.UUID) ([]domain.TemplateComponent, error) {
	query := `
		SELECT tc.template_id, tc.fee_category_id, fc.name AS category_name,
		       fc.periodicity, tc.amount, tc.position
		FROM template_components tc
		JOIN fee_categories fc ON fc.id = tc.fee_category_id
		WHERE tc.template_id = $1
		ORDER BY tc.position
	`

	var out []domain.TemplateComponent
	if err := r.db.SelectContext(ctx, &out, query, templateID); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *templateRepository) ReplaceClassAssignments(ctx context.Context, branchID, templateID uuid.UUID, classIDs domain.UUIDList) error {
	query := `
		UPDATE fee_templates
		SET class_ids = $3, updated_at = now()
		WHERE branch_id = $1 AND id = $2
	`

	_, err := r.db.ExecContext(ctx, query, branchID, templateID, classIDs)
	return err
}
