package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fitdesk/internal/models"
)

func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	roleSet := make(map[models.Role]struct{}, len(roles))
	for _, role := range roles {
		roleSet[role] = struct{}{}
	}

	return func(c *gin.Context) {
		p, ok := CurrentPrincipal(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}

		if _, ok := roleSet[models.Role(p.Role)]; !ok {
			abort(c, http.StatusForbidden, "FORBIDDEN", "You do not have access to this resource")
			return
		}

		c.Next()
	}
}

// RequireStaff admits every role that acts for the tenant.
func RequireStaff() gin.HandlerFunc {
	return RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleManager, models.RoleTrainer)
}
