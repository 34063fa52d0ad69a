package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/advising-api/pkg/response"
)

// AdminKeyHeader carries the operator key on admin routes.
const AdminKeyHeader = "X-Admin-Key"

// AdminKeyVerifier checks operator keys.
type AdminKeyVerifier interface {
	VerifyAdminKey(key string) error
}

// AdminKey restricts a route group to operators holding the admin key.
func AdminKey(verifier AdminKeyVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := verifier.VerifyAdminKey(c.GetHeader(AdminKeyHeader)); err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}
