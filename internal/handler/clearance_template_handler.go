package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campusconnect-api/internal/dto"
	"github.com/noah-isme/campusconnect-api/internal/models"
	appErrors "github.com/noah-isme/campusconnect-api/pkg/errors"
	"github.com/noah-isme/campusconnect-api/pkg/response"
)

type clearanceTemplateService interface {
	List(ctx context.Context) ([]dto.ClearanceTemplateItem, error)
	Get(ctx context.Context, department string) (*dto.ClearanceTemplateItem, error)
	Update(ctx context.Context, department string, req dto.UpdateClearanceTemplateRequest, actor *models.JWTClaims) (*dto.ClearanceTemplateItem, error)
}

// ClearanceTemplateHandler manages per-department approval chains.
type ClearanceTemplateHandler struct {
	service clearanceTemplateService
}

// NewClearanceTemplateHandler constructs the handler.
func NewClearanceTemplateHandler(service clearanceTemplateService) *ClearanceTemplateHandler {
	return &ClearanceTemplateHandler{service: service}
}

// List godoc
// @Summary List clearance step templates
// @Tags Clearance Templates
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /clearances/templates [get]
func (h *ClearanceTemplateHandler) List(c *gin.Context) {
	items, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Get godoc
// @Summary Get the step template applied to a department
// @Tags Clearance Templates
// @Produce json
// @Param department path string true "Department"
// @Success 200 {object} response.Envelope
// @Router /clearances/templates/{department} [get]
func (h *ClearanceTemplateHandler) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), c.Param("department"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Update godoc
// @Summary Replace a department's step template
// @Tags Clearance Templates
// @Accept json
// @Produce json
// @Param department path string true "Department"
// @Param payload body dto.UpdateClearanceTemplateRequest true "Steps"
// @Success 200 {object} response.Envelope
// @Router /clearances/templates/{department} [put]
func (h *ClearanceTemplateHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpdateClearanceTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid clearance template payload"))
		return
	}
	item, err := h.service.Update(c.Request.Context(), c.Param("department"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}
