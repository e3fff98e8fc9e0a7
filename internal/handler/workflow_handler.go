package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/SOL-ICT/hrm-erp-sub019/internal/dto"
	"github.com/SOL-ICT/hrm-erp-sub019/internal/models"
	"github.com/SOL-ICT/hrm-erp-sub019/internal/service"
	appErrors "github.com/SOL-ICT/hrm-erp-sub019/pkg/errors"
	"github.com/SOL-ICT/hrm-erp-sub019/pkg/response"
)

// WorkflowHandler wires HTTP endpoints to the workflow service.
type WorkflowHandler struct {
	service *service.WorkflowService
}

// NewWorkflowHandler creates a new handler.
func NewWorkflowHandler(svc *service.WorkflowService) *WorkflowHandler {
	return &WorkflowHandler{service: svc}
}

// Create registers a workflow with its ordered levels.
func (h *WorkflowHandler) Create(c *gin.Context) {
	var req dto.CreateWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid workflow payload"))
		return
	}

	workflow, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, workflow)
}

// List returns workflows, optionally restricted to active ones.
func (h *WorkflowHandler) List(c *gin.Context) {
	workflows, err := h.service.List(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, workflows, nil)
}

// Get returns one workflow with its levels. The path segment is either the
// workflow UUID or its unique code.
func (h *WorkflowHandler) Get(c *gin.Context) {
	ref := c.Param("id")

	var (
		workflow *models.ApprovalWorkflow
		err      error
	)
	if _, parseErr := uuid.Parse(ref); parseErr == nil {
		workflow, err = h.service.Get(c.Request.Context(), ref)
	} else {
		workflow, err = h.service.GetByCode(c.Request.Context(), ref)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, workflow, nil)
}

// Deactivate retires a workflow.
func (h *WorkflowHandler) Deactivate(c *gin.Context) {
	if err := h.service.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
