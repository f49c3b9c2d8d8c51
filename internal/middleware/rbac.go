package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/labelforge/labelforge-api/internal/models"
	appErrors "github.com/labelforge/labelforge-api/pkg/errors"
	"github.com/labelforge/labelforge-api/pkg/response"
)

// RequireRoles blocks the request unless the authenticated user holds one of
// the given roles. Route paths in this API address jobs, not users, so there
// is no owner shortcut here; per-record scoping (a designer seeing only their
// own queue) lives in the services.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims, ok := claimsValue.(*models.JWTClaims)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
