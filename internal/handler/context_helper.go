package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/advising-api/internal/middleware"
	appErrors "github.com/noah-isme/advising-api/pkg/errors"
	"github.com/noah-isme/advising-api/pkg/response"
)

// studentFromContext resolves the caller from JWT claims, writing 401 when absent.
func studentFromContext(c *gin.Context) (string, bool) {
	id, ok := middleware.StudentID(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return "", false
	}
	return id, true
}

func bindError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}
