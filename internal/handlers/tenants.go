package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"authgate/api/internal/apperror"
	"authgate/api/internal/models"
)

type tenantRequest struct {
	Name    string `json:"name" binding:"required"`
	Address string `json:"address" binding:"required"`
}

type tenantResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"createdAt"`
}

func toTenantResponse(tenant models.Tenant) tenantResponse {
	return tenantResponse{
		ID:        tenant.ID,
		Name:      tenant.Name,
		Address:   tenant.Address,
		CreatedAt: tenant.CreatedAt,
	}
}

func (h HandlerSet) CreateTenant(c *gin.Context) {
	var req tenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperror.Validation(err.Error()))
		return
	}

	tenant, err := h.tenants.Create(c.Request.Context(), req.Name, req.Address)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": tenant.ID})
}

func (h HandlerSet) ListTenants(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("currentPage", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("perPage", "10"))
	q := c.Query("q")

	tenants, total, err := h.tenants.List(c.Request.Context(), q, page, perPage)
	if err != nil {
		_ = c.Error(err)
		return
	}

	data := make([]tenantResponse, 0, len(tenants))
	for _, tenant := range tenants {
		data = append(data, toTenantResponse(tenant))
	}

	c.JSON(http.StatusOK, gin.H{
		"currentPage": page,
		"perPage":     perPage,
		"total":       total,
		"data":        data,
	})
}

func (h HandlerSet) GetTenant(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		_ = c.Error(apperror.Validation("invalid url param"))
		return
	}

	tenant, err := h.tenants.GetByID(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, toTenantResponse(tenant))
}

func (h HandlerSet) UpdateTenant(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		_ = c.Error(apperror.Validation("invalid url param"))
		return
	}

	var req tenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperror.Validation(err.Error()))
		return
	}

	if err := h.tenants.Update(c.Request.Context(), id, req.Name, req.Address); err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (h HandlerSet) DeleteTenant(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		_ = c.Error(apperror.Validation("invalid url param"))
		return
	}

	if err := h.tenants.Delete(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id})
}
