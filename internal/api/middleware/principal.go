package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/erasreview/internal/models"
	"github.com/yoockh/erasreview/internal/utils"
)

type PrincipalResolver interface {
	Principal(ctx context.Context, userID string) (*models.Principal, error)
}

// LoadPrincipal resolves the authenticated user's current role. Lookup
// failures abort the request; no role is ever assumed.
func LoadPrincipal(users PrincipalResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apiError{
				Code:    utils.CodeUnauthorized,
				Message: "unauthorized",
			})
			return
		}

		p, err := users.Principal(c.Request.Context(), userID)
		if err != nil {
			_ = c.Error(err)
			if utils.IsCode(err, utils.CodeUnauthorized) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, apiError{
					Code:    utils.CodeUnauthorized,
					Message: "account not found",
				})
				return
			}
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, apiError{
				Code:    utils.CodeUnavailable,
				Message: "could not verify account",
			})
			return
		}

		c.Set("principal", p)
		c.Set("role", string(p.Role))
		c.Next()
	}
}
