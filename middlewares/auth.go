package middlewares

import (
	"strings"

	"marketplace-api/apperrors"
	"marketplace-api/models"
	"marketplace-api/utils"

	"github.com/gin-gonic/gin"
)

const (
	ContextUserID = "userID"
	ContextRole   = "role"
)

// AuthMiddleware requires a valid Bearer token and stores the caller's id and
// role on the gin context.
func AuthMiddleware(tokens *utils.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			_ = c.Error(apperrors.Unauthorized("missing bearer token"))
			c.Abort()
			return
		}

		claims, err := tokens.ParseToken(token)
		if err != nil {
			_ = c.Error(apperrors.Unauthorized("invalid or expired token"))
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}

// RequireRole lets the request through only for the listed roles.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := c.Get(ContextRole)
		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}
		_ = c.Error(apperrors.Forbidden("insufficient role"))
		c.Abort()
	}
}
