package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/advising-api/internal/dto"
	"github.com/noah-isme/advising-api/internal/models"
	"github.com/noah-isme/advising-api/pkg/response"
)

type authService interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
}

type syncService interface {
	Sync(ctx context.Context, req models.LoginRequest) (*dto.SyncResult, error)
}

// AuthHandler wires sign-in and re-sync endpoints.
type AuthHandler struct {
	auth authService
	sync syncService
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(auth authService, sync syncService) *AuthHandler {
	return &AuthHandler{auth: auth, sync: sync}
}

// Login godoc
// @Summary Sign in with portal credentials
// @Description Scrapes the portal, stores the academic record and issues an access token
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Portal credentials"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid login payload"))
		return
	}

	res, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res)
}

// Sync godoc
// @Summary Re-sync the academic record
// @Tags Authentication
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.SyncRequest true "Portal password"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /sync [post]
func (h *AuthHandler) Sync(c *gin.Context) {
	studentID, ok := studentFromContext(c)
	if !ok {
		return
	}
	var req models.SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid sync payload"))
		return
	}

	res, err := h.sync.Sync(c.Request.Context(), models.LoginRequest{StudentID: studentID, Password: req.Password})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}
