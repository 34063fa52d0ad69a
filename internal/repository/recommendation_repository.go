package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/advising-api/internal/models"
)

// RecommendationRepository stores the latest recommendation run per student.
type RecommendationRepository struct {
	db *sqlx.DB
}

// NewRecommendationRepository constructs a RecommendationRepository.
func NewRecommendationRepository(db *sqlx.DB) *RecommendationRepository {
	return &RecommendationRepository{db: db}
}

// Replace swaps the student's recommendations for courses in one transaction.
func (r *RecommendationRepository) Replace(ctx context.Context, studentID string, courses []models.RecommendedCourse) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace recommendations: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM recommended_courses WHERE student_id = $1`, studentID); err != nil {
		return fmt.Errorf("clear recommendations: %w", err)
	}

	now := time.Now().UTC()
	for _, course := range courses {
		row := course
		row.StudentID = studentID
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		if _, err = tx.NamedExecContext(ctx, `INSERT INTO recommended_courses (student_id, course_id, recommend_grade, recommend_semester, reason, created_at)
            VALUES (:student_id, :course_id, :recommend_grade, :recommend_semester, :reason, :created_at)`, &row); err != nil {
			return fmt.Errorf("insert recommendation %d: %w", row.CourseID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace recommendations: %w", err)
	}
	return nil
}

// List returns the student's recommendations joined with live catalog rows.
func (r *RecommendationRepository) List(ctx context.Context, studentID string) ([]models.RecommendedCourseDetail, error) {
	const query = `SELECT rc.id, rc.student_id, rc.course_id, rc.recommend_grade, rc.recommend_semester, rc.reason, rc.created_at,
        c.code, c.name, c.credits
        FROM recommended_courses rc JOIN courses c ON c.id = rc.course_id
        WHERE rc.student_id = $1 AND c.deleted_at IS NULL
        ORDER BY rc.recommend_grade, rc.recommend_semester, c.code`
	var rows []models.RecommendedCourseDetail
	if err := r.db.SelectContext(ctx, &rows, query, studentID); err != nil {
		return nil, fmt.Errorf("list recommendations: %w", err)
	}
	return rows, nil
}
