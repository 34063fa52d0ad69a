package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/advising-api/internal/dto"
	"github.com/noah-isme/advising-api/internal/models"
	appErrors "github.com/noah-isme/advising-api/pkg/errors"
)

type favoriteRepository interface {
	Add(ctx context.Context, studentID string, courseID int64) error
	Remove(ctx context.Context, studentID string, courseID int64) error
	List(ctx context.Context, studentID string) ([]models.FavoriteCourse, error)
}

type favoriteCourseLookup interface {
	FindByCode(ctx context.Context, code string) (*models.Course, error)
}

// FavoriteService manages a student's bookmarked courses.
type FavoriteService struct {
	favorites favoriteRepository
	courses   favoriteCourseLookup
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFavoriteService constructs a FavoriteService.
func NewFavoriteService(favorites favoriteRepository, courses favoriteCourseLookup, validate *validator.Validate, logger *zap.Logger) *FavoriteService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FavoriteService{favorites: favorites, courses: courses, validator: validate, logger: logger}
}

// List returns the student's bookmarks.
func (s *FavoriteService) List(ctx context.Context, studentID string) ([]models.FavoriteCourse, error) {
	rows, err := s.favorites.List(ctx, studentID)
	if err != nil {
		return nil, internalError(err, "failed to list favorites")
	}
	if rows == nil {
		rows = []models.FavoriteCourse{}
	}
	return rows, nil
}

// Add bookmarks a course. Adding the same course twice is not an error.
func (s *FavoriteService) Add(ctx context.Context, studentID string, req dto.FavoriteRequest) ([]models.FavoriteCourse, error) {
	req.CourseCode = strings.TrimSpace(req.CourseCode)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid favorite payload")
	}
	course, err := s.lookup(ctx, req.CourseCode)
	if err != nil {
		return nil, err
	}
	if err := s.favorites.Add(ctx, studentID, course.ID); err != nil {
		return nil, internalError(err, "failed to add favorite")
	}
	s.logger.Debug("favorite added", zap.String("student_id", studentID), zap.String("course_code", course.Code))
	return s.List(ctx, studentID)
}

// Remove deletes a bookmark. Removing a course that was never bookmarked is NotFound.
func (s *FavoriteService) Remove(ctx context.Context, studentID, code string) error {
	course, err := s.lookup(ctx, strings.TrimSpace(code))
	if err != nil {
		return err
	}
	if err := s.favorites.Remove(ctx, studentID, course.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "favorite not found")
		}
		return internalError(err, "failed to remove favorite")
	}
	return nil
}

func (s *FavoriteService) lookup(ctx context.Context, code string) (*models.Course, error) {
	if code == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course code is required")
	}
	course, err := s.courses.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, internalError(err, "failed to load course")
	}
	return course, nil
}
