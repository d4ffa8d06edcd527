package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"authgate/api/internal/apperror"
	"authgate/api/internal/models"
	"authgate/api/internal/service"
)

type createUserRequest struct {
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	Role      string `json:"role" binding:"required,oneof=customer manager admin"`
	TenantID  *int64 `json:"tenantId"`
}

func (h HandlerSet) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperror.Validation(err.Error()))
		return
	}

	user, err := h.users.Create(c.Request.Context(), service.CreateUserInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		Role:      models.Role(req.Role),
		TenantID:  req.TenantID,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": user.ID})
}

func (h HandlerSet) ListUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("currentPage", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("perPage", "10"))
	q := c.Query("q")
	role := models.Role(c.Query("role"))

	users, total, err := h.users.List(c.Request.Context(), q, role, page, perPage)
	if err != nil {
		_ = c.Error(err)
		return
	}

	data := make([]userResponse, 0, len(users))
	for _, user := range users {
		data = append(data, toUserResponse(user))
	}

	c.JSON(http.StatusOK, gin.H{
		"currentPage": page,
		"perPage":     perPage,
		"total":       total,
		"data":        data,
	})
}

func (h HandlerSet) GetUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		_ = c.Error(apperror.Validation("invalid url param"))
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, toUserResponse(user))
}

type updateUserRequest struct {
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Role      string `json:"role" binding:"required,oneof=customer manager admin"`
	TenantID  *int64 `json:"tenantId"`
}

func (h HandlerSet) UpdateUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		_ = c.Error(apperror.Validation("invalid url param"))
		return
	}

	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperror.Validation(err.Error()))
		return
	}

	err = h.users.Update(c.Request.Context(), id, service.UpdateUserInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Role:      models.Role(req.Role),
		TenantID:  req.TenantID,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (h HandlerSet) DeleteUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		_ = c.Error(apperror.Validation("invalid url param"))
		return
	}

	if err := h.users.Delete(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id})
}
