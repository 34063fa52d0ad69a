package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/advising-api/internal/dto"
	"github.com/noah-isme/advising-api/internal/models"
	"github.com/noah-isme/advising-api/pkg/response"
)

type favoriteService interface {
	List(ctx context.Context, studentID string) ([]models.FavoriteCourse, error)
	Add(ctx context.Context, studentID string, req dto.FavoriteRequest) ([]models.FavoriteCourse, error)
	Remove(ctx context.Context, studentID, code string) error
}

type requirementService interface {
	Get(ctx context.Context, studentID string) (*models.GraduationRequirement, error)
	Update(ctx context.Context, studentID string, flags dto.RequirementUpdateRequest) (*models.GraduationRequirement, error)
}

// StudentHandler serves per-student bookmarks and graduation flags.
type StudentHandler struct {
	favorites    favoriteService
	requirements requirementService
}

// NewStudentHandler constructs the handler.
func NewStudentHandler(favorites favoriteService, requirements requirementService) *StudentHandler {
	return &StudentHandler{favorites: favorites, requirements: requirements}
}

// ListFavorites godoc
// @Summary List bookmarked courses
// @Tags Favorites
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /favorites [get]
func (h *StudentHandler) ListFavorites(c *gin.Context) {
	studentID, ok := studentFromContext(c)
	if !ok {
		return
	}
	rows, err := h.favorites.List(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, rows)
}

// AddFavorite godoc
// @Summary Bookmark a course
// @Tags Favorites
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.FavoriteRequest true "Course code"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /favorites [post]
func (h *StudentHandler) AddFavorite(c *gin.Context) {
	studentID, ok := studentFromContext(c)
	if !ok {
		return
	}
	var req dto.FavoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid favorite payload"))
		return
	}
	rows, err := h.favorites.Add(c.Request.Context(), studentID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, rows)
}

// RemoveFavorite godoc
// @Summary Remove a bookmark
// @Tags Favorites
// @Security BearerAuth
// @Param code path string true "Course code"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /favorites/{code} [delete]
func (h *StudentHandler) RemoveFavorite(c *gin.Context) {
	studentID, ok := studentFromContext(c)
	if !ok {
		return
	}
	if err := h.favorites.Remove(c.Request.Context(), studentID, c.Param("code")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// GetRequirements godoc
// @Summary Graduation requirement flags
// @Tags Requirements
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /requirements [get]
func (h *StudentHandler) GetRequirements(c *gin.Context) {
	studentID, ok := studentFromContext(c)
	if !ok {
		return
	}
	req, err := h.requirements.Get(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, req)
}

// UpdateRequirements godoc
// @Summary Toggle graduation requirement flags
// @Tags Requirements
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.RequirementUpdateRequest true "Flags to change"
// @Success 200 {object} response.Envelope
// @Router /requirements [patch]
func (h *StudentHandler) UpdateRequirements(c *gin.Context) {
	studentID, ok := studentFromContext(c)
	if !ok {
		return
	}
	var flags dto.RequirementUpdateRequest
	if err := c.ShouldBindJSON(&flags); err != nil {
		response.Error(c, bindError(err, "invalid requirement payload"))
		return
	}
	req, err := h.requirements.Update(c.Request.Context(), studentID, flags)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, req)
}
