package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/advising-api/internal/dto"
	"github.com/noah-isme/advising-api/pkg/response"
)

type recommendationService interface {
	Recommend(ctx context.Context, studentID string) (*dto.RecommendationResponse, error)
}

// RecommendationHandler triggers recommendation runs.
type RecommendationHandler struct {
	service recommendationService
}

// NewRecommendationHandler constructs the handler.
func NewRecommendationHandler(svc recommendationService) *RecommendationHandler {
	return &RecommendationHandler{service: svc}
}

// Recommend godoc
// @Summary Generate course recommendations
// @Description Searches similar courses, asks the language model and replaces the stored recommendations
// @Tags Recommendations
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /recommendations [post]
func (h *RecommendationHandler) Recommend(c *gin.Context) {
	studentID, ok := studentFromContext(c)
	if !ok {
		return
	}
	resp, err := h.service.Recommend(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, resp)
}
