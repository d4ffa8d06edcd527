package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"authgate/api/internal/apperror"
)

func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Interface("error", r).
					Str("request_id", RequestRef(c)).
					Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, apperror.Envelope{
					Errors: []apperror.Entry{{
						Ref:    RequestRef(c),
						Type:   apperror.TypeInternal,
						Msg:    "internal server error",
						Path:   c.Request.URL.Path,
						Method: c.Request.Method,
					}},
				})
			}
		}()
		c.Next()
	}
}
