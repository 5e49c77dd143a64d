package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/examhub/submission-service/internal/services"
	"github.com/examhub/submission-service/internal/utils"
)

// AuthMiddleware resolves the bearer token against the identity provider and
// stashes the user id and role on the request context.
func AuthMiddleware(security services.SecurityService, logger utils.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "Missing bearer token",
			})
			return
		}

		user, err := security.ResolveUser(c.Request.Context(), token)
		if err != nil {
			logger.WarnContext(c.Request.Context(), "authentication failed",
				"remote_addr", c.ClientIP(), "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "Invalid or expired token",
			})
			return
		}

		c.Set("user_id", user.ID)
		c.Set("user_role", string(user.Role))
		c.Next()
	}
}
