package middleware

import (
	"github.com/gin-gonic/gin"

	"authgate/api/internal/apperror"
	"authgate/api/internal/models"
)

func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	roleSet := make(map[models.Role]struct{}, len(roles))
	for _, role := range roles {
		roleSet[role] = struct{}{}
	}

	return func(c *gin.Context) {
		claims, ok := AuthClaims(c)
		if !ok {
			abortError(c, apperror.NotAuthenticated())
			return
		}

		if _, ok := roleSet[models.Role(claims.Role)]; !ok {
			abortError(c, apperror.Forbidden())
			return
		}

		c.Next()
	}
}
