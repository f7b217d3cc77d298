package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campuskit/fees-engine/internal/domain"
)

type directoryRepository struct {
	db *sqlx.DB
}

func NewDirectoryRepository(db *sqlx.DB) DirectoryRepository {
	return &directoryRepository{db: db}
}

func (r *directoryRepository) GetStudent(ctx context.Context, branchID, id uuid.UUID) (*domain.Student, error) {
	query := `
		SELECT id, branch_id, name, class_id, session_id, active
		FROM students
		WHERE branch_id = $1 AND id = $2
	`

	var s domain.Student
	if err := r.db.GetContext(ctx, &s, query, branchID, id); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *directoryRepository) ListActiveStudentsByClass(ctx context.Context, branchID, classID, sessionID uuid.UUID) ([]*domain.Student, error) {
	query := `
		SELECT id, branch_id, name, class_id, session_id, active
		FROM students
		WHERE branch_id = $1 AND class_id = $2 AND session_id = $3 AND active
		ORDER BY name
	`

	var out []*domain.Student
	if err := r.db.SelectContext(ctx, &out, query, branchID, classID, sessionID); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *directoryRepository) GetClass(ctx context.Context, branchID, id uuid.UUID) (*domain.Class, error) {
	query := `SELECT id, branch_id, name FROM classes WHERE branch_id = $1 AND id = $2`

	var c domain.Class
	if err := r.db.GetContext(ctx, &c, query, branchID, id); err != nil {
		return nil, err
	}
	return &c, nil
}
