package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/advising-api/internal/dto"
	"github.com/noah-isme/advising-api/internal/models"
)

type requirementStore interface {
	Get(ctx context.Context, studentID string) (*models.GraduationRequirement, error)
	Upsert(ctx context.Context, req *models.GraduationRequirement) error
}

// RequirementService reads and toggles a student's non-credit graduation flags.
type RequirementService struct {
	repo   requirementStore
	cache  *CacheService
	logger *zap.Logger
}

// NewRequirementService constructs a RequirementService.
func NewRequirementService(repo requirementStore, cache *CacheService, logger *zap.Logger) *RequirementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequirementService{repo: repo, cache: cache, logger: logger}
}

// Get returns the saved flags, or all false when nothing was saved yet.
func (s *RequirementService) Get(ctx context.Context, studentID string) (*models.GraduationRequirement, error) {
	req, err := s.repo.Get(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.GraduationRequirement{StudentID: studentID}, nil
		}
		return nil, internalError(err, "failed to load graduation requirement")
	}
	return req, nil
}

// Update applies the non-nil flags and saves the row.
func (s *RequirementService) Update(ctx context.Context, studentID string, flags dto.RequirementUpdateRequest) (*models.GraduationRequirement, error) {
	req, err := s.Get(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if flags.Capstone != nil {
		req.Capstone = *flags.Capstone
	}
	if flags.Thesis != nil {
		req.Thesis = *flags.Thesis
	}
	if flags.Award != nil {
		req.Award = *flags.Award
	}
	if err := s.repo.Upsert(ctx, req); err != nil {
		return nil, internalError(err, "failed to save graduation requirement")
	}
	if err := s.cache.InvalidateStudent(ctx, studentID); err != nil {
		s.logger.Warn("failed to invalidate graduation cache", zap.String("student_id", studentID), zap.Error(err))
	}
	return req, nil
}
