package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/erasreview/internal/models"
	"github.com/yoockh/erasreview/internal/utils"
)

// RequireRole must run after LoadPrincipal.
func RequireRole(allowed ...models.UserRole) gin.HandlerFunc {
	allow := map[models.UserRole]struct{}{}
	for _, a := range allowed {
		allow[a] = struct{}{}
	}

	return func(c *gin.Context) {
		v, _ := c.Get("principal")
		p, ok := v.(*models.Principal)
		if !ok || p == nil {
			c.AbortWithStatusJSON(http.StatusForbidden, apiError{
				Code:    utils.CodeForbidden,
				Message: "forbidden",
			})
			return
		}

		if _, ok := allow[p.Role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, apiError{
				Code:    utils.CodeForbidden,
				Message: "forbidden",
			})
			return
		}

		c.Next()
	}
}

func RequireAdmin() gin.HandlerFunc { return RequireRole(models.RoleAdmin) }
