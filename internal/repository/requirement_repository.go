package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/advising-api/internal/models"
)

// RequirementRepository stores graduation requirement flags.
type RequirementRepository struct {
	db *sqlx.DB
}

// NewRequirementRepository constructs a RequirementRepository.
func NewRequirementRepository(db *sqlx.DB) *RequirementRepository {
	return &RequirementRepository{db: db}
}

// Get returns the student's flags or sql.ErrNoRows when none were saved.
func (r *RequirementRepository) Get(ctx context.Context, studentID string) (*models.GraduationRequirement, error) {
	var req models.GraduationRequirement
	if err := r.db.GetContext(ctx, &req, `SELECT student_id, capstone, thesis, award, updated_at
        FROM graduation_requirements WHERE student_id = $1`, studentID); err != nil {
		return nil, err
	}
	return &req, nil
}

// Upsert writes all three flags.
func (r *RequirementRepository) Upsert(ctx context.Context, req *models.GraduationRequirement) error {
	req.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO graduation_requirements (student_id, capstone, thesis, award, updated_at)
        VALUES (:student_id, :capstone, :thesis, :award, :updated_at)
        ON CONFLICT (student_id) DO UPDATE SET capstone = EXCLUDED.capstone, thesis = EXCLUDED.thesis,
            award = EXCLUDED.award, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("upsert graduation requirement: %w", err)
	}
	return nil
}
