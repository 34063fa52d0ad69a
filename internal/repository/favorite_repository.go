package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/advising-api/internal/models"
)

// FavoriteRepository manages student course bookmarks.
type FavoriteRepository struct {
	db *sqlx.DB
}

// NewFavoriteRepository constructs a FavoriteRepository.
func NewFavoriteRepository(db *sqlx.DB) *FavoriteRepository {
	return &FavoriteRepository{db: db}
}

// Add bookmarks a course. Adding an existing bookmark is a no-op.
func (r *FavoriteRepository) Add(ctx context.Context, studentID string, courseID int64) error {
	if _, err := r.db.ExecContext(ctx, `INSERT INTO favorite_courses (student_id, course_id) VALUES ($1, $2)
        ON CONFLICT (student_id, course_id) DO NOTHING`, studentID, courseID); err != nil {
		return fmt.Errorf("add favorite: %w", err)
	}
	return nil
}

// Remove deletes a bookmark, returning sql.ErrNoRows when none existed.
func (r *FavoriteRepository) Remove(ctx context.Context, studentID string, courseID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM favorite_courses WHERE student_id = $1 AND course_id = $2`, studentID, courseID)
	if err != nil {
		return fmt.Errorf("remove favorite: %w", err)
	}
	return requireAffected(res)
}

// List returns bookmarks on live courses, newest first.
func (r *FavoriteRepository) List(ctx context.Context, studentID string) ([]models.FavoriteCourse, error) {
	const query = `SELECT f.student_id, f.course_id, c.code, c.name, c.credits, f.created_at
        FROM favorite_courses f JOIN courses c ON c.id = f.course_id
        WHERE f.student_id = $1 AND c.deleted_at IS NULL
        ORDER BY f.created_at DESC, c.code`
	var rows []models.FavoriteCourse
	if err := r.db.SelectContext(ctx, &rows, query, studentID); err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	return rows, nil
}
