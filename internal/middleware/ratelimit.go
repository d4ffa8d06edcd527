package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"authgate/api/internal/apperror"
	"authgate/api/internal/config"
)

// RateLimit caps credential-guessing attempts per client IP per route using
// a redis counter. Fails open when redis is unreachable so an outage does not
// lock everyone out.
func RateLimit(client *redis.Client, cfg config.RateLimitConfig, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("rl:%s:%s", c.FullPath(), c.ClientIP())

		count, err := client.Incr(c.Request.Context(), key).Result()
		if err != nil {
			log.Warn().Err(err).Msg("rate limiter unavailable")
			c.Next()
			return
		}
		if count == 1 {
			client.Expire(c.Request.Context(), key, cfg.Window)
		}

		if count > int64(cfg.Attempts) {
			abortError(c, apperror.New(http.StatusTooManyRequests, apperror.TypeRateLimited, "too many attempts, try again later"))
			return
		}

		c.Next()
	}
}
