package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"authgate/api/internal/apperror"
	"authgate/api/internal/security"
)

// RevocationChecker answers whether a refresh session id is still valid for
// its owner.
type RevocationChecker interface {
	IsSessionRevoked(ctx context.Context, sessionID, userID int64) (bool, error)
}

// ValidateRefreshToken verifies the refresh token from the refreshToken
// cookie or bearer header and runs the revocation check before any handler
// trusts its claims. A token whose session row is gone, or whose deletion
// time has passed, is rejected; one inside the grace window still passes.
func ValidateRefreshToken(signer *security.TokenSigner, revocations RevocationChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := ""
		if cookie, err := c.Cookie(refreshCookie); err == nil {
			tokenStr = cookie
		}
		if tokenStr == "" {
			tokenStr = bearerToken(c)
		}
		if tokenStr == "" {
			abortError(c, apperror.NotAuthenticated())
			return
		}

		claims, err := signer.VerifyRefreshToken(tokenStr)
		if err != nil {
			abortError(c, apperror.NotAuthenticated())
			return
		}

		userID, err := SubjectID(claims)
		if err != nil {
			abortError(c, apperror.NotAuthenticated())
			return
		}

		revoked, err := revocations.IsSessionRevoked(c.Request.Context(), claims.RefreshID, userID)
		if err != nil || revoked {
			abortError(c, apperror.NotAuthenticated())
			return
		}

		c.Set(refreshClaimsKey, claims)
		c.Next()
	}
}
