package middleware

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"authgate/api/internal/apperror"
	"authgate/api/internal/security"
)

const (
	authClaimsKey    = "auth_claims"
	refreshClaimsKey = "refresh_claims"

	accessCookie  = "accessToken"
	refreshCookie = "refreshToken"
)

func abortError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// Auth verifies the access token from the bearer header or the accessToken
// cookie. Access tokens are stateless: signature and expiry only, no
// session-store lookup.
func Auth(signer *security.TokenSigner) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearerToken(c)
		if tokenStr == "" {
			if cookie, err := c.Cookie(accessCookie); err == nil {
				tokenStr = cookie
			}
		}
		if tokenStr == "" {
			abortError(c, apperror.NotAuthenticated())
			return
		}

		claims, err := signer.VerifyAccessToken(tokenStr)
		if err != nil {
			abortError(c, apperror.NotAuthenticated())
			return
		}

		c.Set(authClaimsKey, claims)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// AuthClaims returns the verified access token claims set by Auth.
func AuthClaims(c *gin.Context) (*security.Claims, bool) {
	value, ok := c.Get(authClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*security.Claims)
	return claims, ok
}

// RefreshClaims returns the verified refresh token claims set by
// ValidateRefreshToken.
func RefreshClaims(c *gin.Context) (*security.Claims, bool) {
	value, ok := c.Get(refreshClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*security.Claims)
	return claims, ok
}

// SubjectID parses the numeric user id out of a claim set.
func SubjectID(claims *security.Claims) (int64, error) {
	return strconv.ParseInt(claims.Subject, 10, 64)
}
