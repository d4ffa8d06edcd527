package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"authgate/api/internal/service"
)

const (
	accessCookie  = "accessToken"
	refreshCookie = "refreshToken"

	// Cookie lifetimes are a client-side hint; the server enforces validity
	// through token expiry and the session store.
	accessCookieMaxAge  = 15 * 60
	refreshCookieMaxAge = 365 * 24 * 60 * 60
)

func (h HandlerSet) setAuthCookies(c *gin.Context, tokens service.TokenPair) {
	c.SetSameSite(http.SameSiteNoneMode)
	c.SetCookie(accessCookie, tokens.AccessToken, accessCookieMaxAge, "/", h.cfg.Cookie.Domain, h.cfg.Cookie.Secure, true)
	c.SetCookie(refreshCookie, tokens.RefreshToken, refreshCookieMaxAge, "/", h.cfg.Cookie.Domain, h.cfg.Cookie.Secure, true)
}

func (h HandlerSet) clearAuthCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteNoneMode)
	c.SetCookie(accessCookie, "", -1, "/", h.cfg.Cookie.Domain, h.cfg.Cookie.Secure, true)
	c.SetCookie(refreshCookie, "", -1, "/", h.cfg.Cookie.Domain, h.cfg.Cookie.Secure, true)
}
