package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"authgate/api/internal/apperror"
	"authgate/api/internal/mfa"
)

func (h HandlerSet) SetupMfa(c *gin.Context) {
	userID, ok := h.subject(c)
	if !ok {
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	result, err := h.gate.BeginSetup(c.Request.Context(), user)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    result.Message,
		"secret":     result.Secret,
		"otpauthUrl": result.OtpauthURL,
		"qrImageUrl": result.QRImageURL,
	})
}

type verifyMfaRequest struct {
	Code   string `json:"code" binding:"required"`
	Secret string `json:"secret" binding:"required"`
}

func (h HandlerSet) VerifyMfa(c *gin.Context) {
	userID, ok := h.subject(c)
	if !ok {
		return
	}

	var req verifyMfaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperror.Validation(err.Error()))
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	prefs, err := h.gate.ConfirmSetup(c.Request.Context(), user, req.Code, req.Secret)
	if err != nil {
		if errors.Is(err, mfa.ErrInvalidCode) {
			_ = c.Error(apperror.InvalidMfaCode())
			return
		}
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":         "MFA setup completed successfully",
		"userPreferences": prefs,
	})
}

func (h HandlerSet) RevokeMfa(c *gin.Context) {
	userID, ok := h.subject(c)
	if !ok {
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	message := "MFA revoked successfully"
	if !user.MfaEnabled {
		message = "MFA is not enabled"
	}

	prefs, err := h.gate.Revoke(c.Request.Context(), user)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":         message,
		"userPreferences": prefs,
	})
}
