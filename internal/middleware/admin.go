package middleware

import (
	"net/http"

	"fundhub/internal/domain"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminRequired guards refunds, manual wallet adjustments and interest
// configuration. Denied attempts are logged with the caller's identity.
func AdminRequired(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetRole(c) == domain.RoleAdmin {
			c.Next()
			return
		}
		logger.Warn("admin route denied",
			zap.String("user_id", GetUserID(c)),
			zap.String("role", GetRole(c)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString("request_id")))
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
	}
}
