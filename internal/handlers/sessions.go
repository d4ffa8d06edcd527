package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"authgate/api/internal/apperror"
	"authgate/api/internal/middleware"
	"authgate/api/internal/models"
)

type sessionResponse struct {
	ID             int64     `json:"id"`
	UserAgent      string    `json:"userAgent"`
	CreatedAt      time.Time `json:"createdAt"`
	FirstCreatedAt time.Time `json:"firstCreatedAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
	IsCurrent      bool      `json:"isCurrent"`
}

func toSessionResponse(info models.SessionInfo) sessionResponse {
	return sessionResponse{
		ID:             info.ID,
		UserAgent:      info.UserAgent,
		CreatedAt:      info.CreatedAt,
		FirstCreatedAt: info.FirstCreatedAt,
		ExpiresAt:      info.ExpiresAt,
		IsCurrent:      info.IsCurrent,
	}
}

// ListSessions returns the caller's active sessions. The refreshId claim in
// the access token identifies which of them is the current one.
func (h HandlerSet) ListSessions(c *gin.Context) {
	claims, ok := middleware.AuthClaims(c)
	if !ok {
		_ = c.Error(apperror.NotAuthenticated())
		return
	}
	userID, err := middleware.SubjectID(claims)
	if err != nil {
		_ = c.Error(apperror.NotAuthenticated())
		return
	}

	infos, err := h.auth.ListSessions(c.Request.Context(), userID, claims.RefreshID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	data := make([]sessionResponse, 0, len(infos))
	for _, info := range infos {
		data = append(data, toSessionResponse(info))
	}

	c.JSON(http.StatusOK, gin.H{"data": data})
}

func (h HandlerSet) DestroySession(c *gin.Context) {
	sessionID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		_ = c.Error(apperror.Validation("invalid url param"))
		return
	}

	if err := h.auth.DestroySession(c.Request.Context(), sessionID); err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": sessionID})
}
