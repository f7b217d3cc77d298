package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type counterRepository struct {
	db *sqlx.DB
}

func NewCounterRepository(db *sqlx.DB) CounterRepository {
	return &counterRepository{db: db}
}

// Next issues the next sequence number for (entity, branch) in a single
// atomic statement, so concurrent issuers never see the same value and the
// counter survives restarts.
func (r *counterRepository) Next(ctx context.Context, entity string, branchID uuid.UUID) (int64, error) {
	query := `
		INSERT INTO counters (entity, branch_id, value)
		VALUES ($1, $2, 1)
		ON CONFLICT (entity, branch_id) DO UPDATE SET value = counters.value + 1
		RETURNING value
	`

	var value int64
	if err := r.db.GetContext(ctx, &value, query, entity, branchID); err != nil {
		return 0, err
	}
	return value, nil
}
