package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/advising-api/internal/dto"
	"github.com/noah-isme/advising-api/internal/middleware"
	"github.com/noah-isme/advising-api/internal/service"
	"github.com/noah-isme/advising-api/pkg/response"
)

type graduationService interface {
	Dashboard(ctx context.Context, studentID string) (*dto.DashboardResponse, bool, error)
	Roadmap(ctx context.Context, studentID string) (*dto.RoadmapResponse, bool, error)
	Simulation(ctx context.Context, studentID string) (*dto.SimulationResponse, bool, error)
}

type exportService interface {
	Roadmap(ctx context.Context, studentID string, query dto.ExportQuery) (*service.ExportFile, error)
}

// GraduationHandler serves the dashboard, roadmap and simulation views.
type GraduationHandler struct {
	graduation graduationService
	export     exportService
}

// NewGraduationHandler constructs the handler.
func NewGraduationHandler(graduation graduationService, export exportService) *GraduationHandler {
	return &GraduationHandler{graduation: graduation, export: export}
}

// Dashboard godoc
// @Summary Graduation credit progress
// @Tags Graduation
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /dashboard [get]
func (h *GraduationHandler) Dashboard(c *gin.Context) {
	studentID, ok := studentFromContext(c)
	if !ok {
		return
	}
	resp, hit, err := h.graduation.Dashboard(c.Request.Context(), studentID)
	respondView(c, resp, hit, err)
}

// Roadmap godoc
// @Summary Semester-ordered course roadmap
// @Tags Graduation
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /roadmap [get]
func (h *GraduationHandler) Roadmap(c *gin.Context) {
	studentID, ok := studentFromContext(c)
	if !ok {
		return
	}
	resp, hit, err := h.graduation.Roadmap(c.Request.Context(), studentID)
	respondView(c, resp, hit, err)
}

// Simulation godoc
// @Summary Remaining courses toward the declared tracks
// @Tags Graduation
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /simulation [get]
func (h *GraduationHandler) Simulation(c *gin.Context) {
	studentID, ok := studentFromContext(c)
	if !ok {
		return
	}
	resp, hit, err := h.graduation.Simulation(c.Request.Context(), studentID)
	respondView(c, resp, hit, err)
}

// Export godoc
// @Summary Download the roadmap
// @Tags Graduation
// @Produce text/csv,application/pdf
// @Security BearerAuth
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /roadmap/export [get]
func (h *GraduationHandler) Export(c *gin.Context) {
	studentID, ok := studentFromContext(c)
	if !ok {
		return
	}
	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "invalid export query"))
		return
	}
	file, err := h.export.Roadmap(c.Request.Context(), studentID, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+file.Filename+`"`)
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

func respondView(c *gin.Context, data interface{}, hit bool, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, data, middleware.ExtractMeta(c))
}
