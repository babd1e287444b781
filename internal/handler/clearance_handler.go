package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campusconnect-api/internal/dto"
	"github.com/noah-isme/campusconnect-api/internal/models"
	appErrors "github.com/noah-isme/campusconnect-api/pkg/errors"
	"github.com/noah-isme/campusconnect-api/pkg/response"
)

type clearanceService interface {
	Submit(ctx context.Context, req dto.SubmitClearanceRequest, actor *models.JWTClaims) (*models.ClearanceRequest, error)
	GetStudentStatus(ctx context.Context, studentID string, actor *models.JWTClaims) (*models.ClearanceRequest, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.ClearanceRequest, error)
	PendingActions(ctx context.Context, actor *models.JWTClaims) ([]models.ClearanceRequest, error)
	List(ctx context.Context, query dto.ClearanceQuery, actor *models.JWTClaims) ([]models.ClearanceRequest, *models.Pagination, error)
	Summary(ctx context.Context, actor *models.JWTClaims) (*models.ClearanceSummary, error)
	Action(ctx context.Context, requestID, stepID string, req dto.ClearanceStepActionRequest, actor dto.StepActor) (*models.ClearanceRequest, error)
	Certificate(ctx context.Context, studentID string, actor *models.JWTClaims) (*models.ClearanceRequest, []byte, error)
	History(ctx context.Context, id string, limit int, actor *models.JWTClaims) ([]models.AuditLog, error)
}

// ClearanceHandler exposes REST endpoints for the clearance workflow.
type ClearanceHandler struct {
	service clearanceService
}

// NewClearanceHandler constructs the handler.
func NewClearanceHandler(service clearanceService) *ClearanceHandler {
	return &ClearanceHandler{service: service}
}

// Submit godoc
// @Summary Submit a clearance request
// @Tags Clearances
// @Accept json
// @Produce json
// @Param payload body dto.SubmitClearanceRequest true "Student snapshot"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /clearances [post]
func (h *ClearanceHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.SubmitClearanceRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid clearance payload"))
			return
		}
	}
	request, err := h.service.Submit(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// Me godoc
// @Summary Get the caller's clearance status
// @Tags Clearances
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /clearances/me [get]
func (h *ClearanceHandler) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	h.writeStatus(c, claims.UserID, claims)
}

// StudentStatus godoc
// @Summary Get a student's clearance status
// @Tags Clearances
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /clearances/students/{studentId} [get]
func (h *ClearanceHandler) StudentStatus(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	h.writeStatus(c, c.Param("studentId"), claims)
}

func (h *ClearanceHandler) writeStatus(c *gin.Context, studentID string, claims *models.JWTClaims) {
	request, err := h.service.GetStudentStatus(c.Request.Context(), studentID, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	if request == nil {
		response.Null(c)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Pending godoc
// @Summary List requests awaiting the caller's decision
// @Tags Clearances
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /clearances/pending [get]
func (h *ClearanceHandler) Pending(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	requests, err := h.service.PendingActions(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil, map[string]interface{}{"count": len(requests)})
}

// List godoc
// @Summary List all clearance requests
// @Tags Clearances
// @Produce json
// @Param status query string false "Derived overall status"
// @Param department query string false "Student department"
// @Param search query string false "Matches student id, name or roll number"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /clearances [get]
func (h *ClearanceHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	query := dto.ClearanceQuery{
		Status:     models.ClearanceStatus(strings.ToUpper(strings.TrimSpace(c.Query("status")))),
		Department: strings.TrimSpace(c.Query("department")),
		Search:     strings.TrimSpace(c.Query("search")),
		Page:       parseQueryInt(c, "page", 1),
		PageSize:   parseQueryInt(c, "page_size", 0),
	}
	requests, pagination, err := h.service.List(c.Request.Context(), query, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, pagination)
}

// Summary godoc
// @Summary Count clearance requests per overall status
// @Tags Clearances
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /clearances/summary [get]
func (h *ClearanceHandler) Summary(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	summary, err := h.service.Summary(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Get godoc
// @Summary Get clearance request detail
// @Tags Clearances
// @Produce json
// @Param id path string true "Clearance request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /clearances/{id} [get]
func (h *ClearanceHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	request, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Action godoc
// @Summary Approve or reject a clearance step
// @Tags Clearances
// @Accept json
// @Produce json
// @Param id path string true "Clearance request ID"
// @Param stepId path string true "Step ID"
// @Param payload body dto.ClearanceStepActionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /clearances/{id}/steps/{stepId}/action [post]
func (h *ClearanceHandler) Action(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ClearanceStepActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid step action payload"))
		return
	}
	request, err := h.service.Action(c.Request.Context(), c.Param("id"), c.Param("stepId"), req, dto.ActorFromClaims(claims))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// History godoc
// @Summary List the audit trail of a clearance request
// @Tags Clearances
// @Produce json
// @Param id path string true "Clearance request ID"
// @Param limit query int false "Maximum entries"
// @Success 200 {object} response.Envelope
// @Router /clearances/{id}/history [get]
func (h *ClearanceHandler) History(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	logs, err := h.service.History(c.Request.Context(), c.Param("id"), parseQueryInt(c, "limit", 0), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}

// Certificate godoc
// @Summary Download the clearance certificate
// @Tags Clearances
// @Produce application/pdf
// @Param studentId path string true "Student ID"
// @Success 200 {file} binary
// @Failure 412 {object} response.Envelope
// @Router /clearances/students/{studentId}/certificate [get]
func (h *ClearanceHandler) Certificate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	request, doc, err := h.service.Certificate(c.Request.Context(), c.Param("studentId"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, "application/pdf", fmt.Sprintf("clearance-%s.pdf", request.StudentID), doc)
}
