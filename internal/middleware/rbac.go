package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/medconsult-app/medconsult-api/internal/models"
	appErrors "github.com/medconsult-app/medconsult-api/pkg/errors"
	"github.com/medconsult-app/medconsult-api/pkg/response"
)

// allowSelf is the pseudo-role letting a user act on their own :id resource.
const allowSelf = "SELF"

// RBAC enforces role-based access. Admins always pass. The SELF pseudo-role
// allows the request when the :id route parameter matches the caller.
func RBAC(allowed ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := CurrentClaims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if permitted(c, claims, allowed) {
			c.Next()
			return
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

func permitted(c *gin.Context, claims *models.JWTClaims, allowed []string) bool {
	if claims.Role == models.RoleAdmin {
		return true
	}
	for _, a := range allowed {
		if a == allowSelf {
			if targetID := c.Param("id"); targetID != "" && targetID == claims.UserID {
				return true
			}
			continue
		}
		if models.UserRole(a) == claims.Role {
			return true
		}
	}
	return false
}

// RequireRoles is a helper that accepts a list of roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make([]string, len(roles))
	for i, r := range roles {
		allowed[i] = string(r)
	}
	return RBAC(allowed...)
}
