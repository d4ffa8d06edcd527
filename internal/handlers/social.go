package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"authgate/api/internal/apperror"
)

const oauthStateCookie = "oauthState"

// SocialRedirect starts the provider's authorization-code flow with a CSRF
// state pinned in a short-lived cookie.
func (h HandlerSet) SocialRedirect(provider string) gin.HandlerFunc {
	return func(c *gin.Context) {
		state := uuid.NewString()

		authURL, err := h.social.AuthCodeURL(provider, state)
		if err != nil {
			_ = c.Error(err)
			return
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(oauthStateCookie, state, 300, "/", h.cfg.Cookie.Domain, h.cfg.Cookie.Secure, true)
		c.Redirect(http.StatusTemporaryRedirect, authURL)
	}
}

func (h HandlerSet) SocialCallback(provider string) gin.HandlerFunc {
	return func(c *gin.Context) {
		state, err := c.Cookie(oauthStateCookie)
		if err != nil || state == "" || state != c.Query("state") {
			_ = c.Error(apperror.NotAuthenticated())
			return
		}

		code := c.Query("code")
		if code == "" {
			_ = c.Error(apperror.Validation("missing authorization code"))
			return
		}

		result, err := h.social.HandleCallback(c.Request.Context(), provider, code, c.GetHeader("User-Agent"))
		if err != nil {
			_ = c.Error(err)
			return
		}

		h.setAuthCookies(c, result.Tokens)

		if h.cfg.OAuth.FrontendURL != "" {
			c.Redirect(http.StatusFound, h.cfg.OAuth.FrontendURL)
			return
		}
		c.JSON(http.StatusOK, authResponse{
			ID:           result.User.ID,
			AccessToken:  result.Tokens.AccessToken,
			RefreshToken: result.Tokens.RefreshToken,
		})
	}
}
