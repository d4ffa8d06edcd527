package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"authgate/api/internal/apperror"
)

// Errors is the single boundary that turns errors attached to the context
// into the uniform envelope, tagged with the request correlation id. 5xx
// causes are logged in full; their detail reaches the response only outside
// production.
func Errors(log zerolog.Logger, production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		appErr := apperror.From(c.Errors.Last().Err)
		ref := RequestRef(c)

		msg := appErr.Msg
		if appErr.Status >= http.StatusInternalServerError {
			log.Error().
				Err(appErr).
				Str("request_id", ref).
				Str("path", c.Request.URL.Path).
				Msg("request failed")
			if !production {
				msg = appErr.Error()
			}
		}

		c.JSON(appErr.Status, apperror.Envelope{
			Errors: []apperror.Entry{{
				Ref:    ref,
				Type:   appErr.Type,
				Msg:    msg,
				Path:   c.Request.URL.Path,
				Method: c.Request.Method,
			}},
		})
	}
}
