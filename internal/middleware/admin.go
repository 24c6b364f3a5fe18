package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/leadgate/leadgate/internal/pkg/metrics"
)

// AdminMiddleware requires the administrator role. Must run after
// AuthMiddleware.
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			metrics.AuthDenials.WithLabelValues("missing_token").Inc()
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			c.Abort()
			return
		}
		if !user.IsAdmin() {
			metrics.AuthDenials.WithLabelValues("not_admin").Inc()
			c.JSON(http.StatusForbidden, gin.H{"error": "administrator role required"})
			c.Abort()
			return
		}
		c.Next()
	}
}
