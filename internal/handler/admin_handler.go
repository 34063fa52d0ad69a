package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/advising-api/internal/dto"
	"github.com/noah-isme/advising-api/pkg/jobs"
	"github.com/noah-isme/advising-api/pkg/response"
)

type catalogService interface {
	Reload(ctx context.Context) (*dto.CatalogReloadResult, error)
}

type vectorService interface {
	EmbedAll(ctx context.Context) (*dto.EmbedJobResponse, error)
	JobStatus(id string) (*jobs.Status, error)
	Search(ctx context.Context, query dto.VectorSearchQuery) ([]dto.VectorSearchHit, error)
	Health(ctx context.Context) (*dto.VectorHealth, error)
	Clear(ctx context.Context) error
}

// AdminHandler exposes operator endpoints for the catalog and the vector collection.
type AdminHandler struct {
	catalog catalogService
	vectors vectorService
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(catalog catalogService, vectors vectorService) *AdminHandler {
	return &AdminHandler{catalog: catalog, vectors: vectors}
}

// ReloadCatalog godoc
// @Summary Reload the course catalog
// @Tags Admin
// @Produce json
// @Param X-Admin-Key header string true "Operator key"
// @Success 200 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /admin/catalog/reload [post]
func (h *AdminHandler) ReloadCatalog(c *gin.Context) {
	res, err := h.catalog.Reload(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// EmbedVectors godoc
// @Summary Embed every course in the background
// @Tags Admin
// @Produce json
// @Param X-Admin-Key header string true "Operator key"
// @Success 202 {object} response.Envelope
// @Router /admin/vectors/embed [post]
func (h *AdminHandler) EmbedVectors(c *gin.Context) {
	res, err := h.vectors.EmbedAll(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, res)
}

// JobStatus godoc
// @Summary Poll an embedding job
// @Tags Admin
// @Produce json
// @Param X-Admin-Key header string true "Operator key"
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/vectors/jobs/{id} [get]
func (h *AdminHandler) JobStatus(c *gin.Context) {
	st, err := h.vectors.JobStatus(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, st)
}

// SearchVectors godoc
// @Summary Similarity search over course embeddings
// @Tags Admin
// @Produce json
// @Param X-Admin-Key header string true "Operator key"
// @Param q query string true "Query text"
// @Param limit query int false "Result count"
// @Success 200 {object} response.Envelope
// @Router /admin/vectors/search [get]
func (h *AdminHandler) SearchVectors(c *gin.Context) {
	var query dto.VectorSearchQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "invalid search query"))
		return
	}
	hits, err := h.vectors.Search(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, hits)
}

// VectorHealth godoc
// @Summary Vector collection statistics
// @Tags Admin
// @Produce json
// @Param X-Admin-Key header string true "Operator key"
// @Success 200 {object} response.Envelope
// @Router /admin/vectors/health [get]
func (h *AdminHandler) VectorHealth(c *gin.Context) {
	health, err := h.vectors.Health(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, health)
}

// ClearVectors godoc
// @Summary Delete every course embedding
// @Tags Admin
// @Param X-Admin-Key header string true "Operator key"
// @Success 204
// @Router /admin/vectors [delete]
func (h *AdminHandler) ClearVectors(c *gin.Context) {
	if err := h.vectors.Clear(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
