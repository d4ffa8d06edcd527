package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"authgate/api/internal/apperror"
	"authgate/api/internal/middleware"
	"authgate/api/internal/models"
	"authgate/api/internal/service"
)

type userResponse struct {
	ID            int64  `json:"id"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	Email         string `json:"email"`
	Role          string `json:"role"`
	TenantID      *int64 `json:"tenantId,omitempty"`
	MfaEnabled    bool   `json:"enable2FA"`
	IsSocial      bool   `json:"isSocial"`
	EmailVerified bool   `json:"isEmailVerified"`
}

func toUserResponse(user models.User) userResponse {
	return userResponse{
		ID:            user.ID,
		FirstName:     user.FirstName,
		LastName:      user.LastName,
		Email:         user.Email,
		Role:          string(user.Role),
		TenantID:      user.TenantID,
		MfaEnabled:    user.MfaEnabled,
		IsSocial:      user.IsSocial,
		EmailVerified: user.EmailVerified,
	}
}

type authResponse struct {
	ID           int64  `json:"id"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type registerRequest struct {
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
}

func (h HandlerSet) RegisterUser(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperror.Validation(err.Error()))
		return
	}

	result, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		UserAgent: c.GetHeader("User-Agent"),
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.setAuthCookies(c, result.Tokens)
	c.JSON(http.StatusCreated, authResponse{
		ID:           result.User.ID,
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
	})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperror.Validation(err.Error()))
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req.Email, req.Password, c.GetHeader("User-Agent"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	if result.MfaRequired {
		c.JSON(http.StatusOK, gin.H{
			"id":          result.User.ID,
			"mfaRequired": true,
			"mfaToken":    result.MfaToken,
		})
		return
	}

	h.setAuthCookies(c, result.Tokens)
	c.JSON(http.StatusOK, authResponse{
		ID:           result.User.ID,
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
	})
}

type verifyLoginMfaRequest struct {
	ID       int64  `json:"id" binding:"required"`
	Code     string `json:"code" binding:"required"`
	MfaToken string `json:"mfaToken" binding:"required"`
}

func (h HandlerSet) VerifyLoginMfa(c *gin.Context) {
	var req verifyLoginMfaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperror.Validation(err.Error()))
		return
	}

	result, err := h.auth.VerifyMfaAndIssue(c.Request.Context(), req.ID, req.MfaToken, req.Code, c.GetHeader("User-Agent"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.setAuthCookies(c, result.Tokens)
	c.JSON(http.StatusOK, authResponse{
		ID:           result.User.ID,
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
	})
}

func (h HandlerSet) Refresh(c *gin.Context) {
	claims, ok := middleware.RefreshClaims(c)
	if !ok {
		_ = c.Error(apperror.NotAuthenticated())
		return
	}
	userID, err := middleware.SubjectID(claims)
	if err != nil {
		_ = c.Error(apperror.NotAuthenticated())
		return
	}

	result, err := h.auth.Refresh(c.Request.Context(), userID, claims.RefreshID, c.GetHeader("User-Agent"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.setAuthCookies(c, result.Tokens)
	c.JSON(http.StatusOK, authResponse{
		ID:           result.User.ID,
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
	})
}

func (h HandlerSet) Logout(c *gin.Context) {
	claims, ok := middleware.RefreshClaims(c)
	if !ok {
		_ = c.Error(apperror.NotAuthenticated())
		return
	}

	if err := h.auth.Logout(c.Request.Context(), claims.RefreshID); err != nil {
		_ = c.Error(err)
		return
	}

	h.clearAuthCookies(c)
	c.JSON(http.StatusOK, gin.H{})
}

func (h HandlerSet) Self(c *gin.Context) {
	userID, ok := h.subject(c)
	if !ok {
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, toUserResponse(user))
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=8"`
}

func (h HandlerSet) ChangePassword(c *gin.Context) {
	userID, ok := h.subject(c)
	if !ok {
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperror.Validation(err.Error()))
		return
	}

	if err := h.auth.ChangePassword(c.Request.Context(), userID, req.OldPassword, req.NewPassword); err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "password changed"})
}

type passwordResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// SendPasswordReset mints the reset token. There is no mail transport; the
// token is returned directly, as the reference deployment does.
func (h HandlerSet) SendPasswordReset(c *gin.Context) {
	var req passwordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperror.Validation(err.Error()))
		return
	}

	user, token, err := h.auth.SendPasswordReset(c.Request.Context(), req.Email)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "password reset requested",
		"id":         user.ID,
		"resetToken": token,
	})
}

type resetPasswordRequest struct {
	ID       int64  `json:"id" binding:"required"`
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

func (h HandlerSet) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperror.Validation(err.Error()))
		return
	}

	if err := h.auth.ResetPassword(c.Request.Context(), req.ID, req.Token, req.Password); err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "password has been reset"})
}

func (h HandlerSet) SendVerifyEmail(c *gin.Context) {
	userID, ok := h.subject(c)
	if !ok {
		return
	}

	challenge, err := h.auth.SendEmailVerification(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.log.Debug().Str("email", challenge.Email).Str("otp", challenge.OTP).Msg("email verification code issued")

	c.JSON(http.StatusOK, gin.H{
		"message":   "verification email sent",
		"email":     challenge.Email,
		"finalHash": challenge.FinalHash,
	})
}

type verifyEmailRequest struct {
	OTP       string `json:"otp" binding:"required"`
	FinalHash string `json:"finalHash" binding:"required"`
}

func (h HandlerSet) VerifyEmail(c *gin.Context) {
	userID, ok := h.subject(c)
	if !ok {
		return
	}

	var req verifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperror.Validation(err.Error()))
		return
	}

	if err := h.auth.VerifyEmail(c.Request.Context(), userID, req.OTP, req.FinalHash); err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "email verified"})
}

// subject extracts the authenticated user id, erroring the request when the
// access claims are missing or malformed.
func (h HandlerSet) subject(c *gin.Context) (int64, bool) {
	claims, ok := middleware.AuthClaims(c)
	if !ok {
		_ = c.Error(apperror.NotAuthenticated())
		return 0, false
	}
	userID, err := middleware.SubjectID(claims)
	if err != nil {
		_ = c.Error(apperror.NotAuthenticated())
		return 0, false
	}
	return userID, true
}
