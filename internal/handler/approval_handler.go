package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/SOL-ICT/hrm-erp-sub019/internal/dto"
	"github.com/SOL-ICT/hrm-erp-sub019/internal/models"
	"github.com/SOL-ICT/hrm-erp-sub019/internal/service"
	appErrors "github.com/SOL-ICT/hrm-erp-sub019/pkg/errors"
	"github.com/SOL-ICT/hrm-erp-sub019/pkg/response"
)

// ApprovalHandler wires HTTP endpoints to the approval service.
type ApprovalHandler struct {
	service *service.ApprovalService
	exports *service.ExportService
}

// NewApprovalHandler creates a new handler.
func NewApprovalHandler(svc *service.ApprovalService, exports *service.ExportService) *ApprovalHandler {
	return &ApprovalHandler{service: svc, exports: exports}
}

// Create opens an approval request for a business entity.
func (h *ApprovalHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.CreateApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid approval payload"))
		return
	}

	approval, err := h.service.CreateApproval(c.Request.Context(), req, claims.UserID, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, approval)
}

// List returns approvals matching query filters.
func (h *ApprovalHandler) List(c *gin.Context) {
	query := dto.ApprovalQuery{
		Kind:         models.ApprovableKind(strings.ToUpper(c.Query("kind"))),
		ApprovalType: c.Query("approvalType"),
		ModuleName:   c.Query("module"),
		RequestedBy:  c.Query("requestedBy"),
		ApproverID:   c.Query("approverId"),
		OverdueOnly:  c.Query("overdue") == "true",
	}
	for _, raw := range strings.Split(c.Query("status"), ",") {
		raw = strings.ToUpper(strings.TrimSpace(raw))
		if raw != "" {
			query.Status = append(query.Status, models.ApprovalStatus(raw))
		}
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		query.Limit = limit
	}
	if offset, err := strconv.Atoi(c.DefaultQuery("offset", "0")); err == nil {
		query.Offset = offset
	}

	approvals, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, approvals, nil)
}

// Get returns one approval.
func (h *ApprovalHandler) Get(c *gin.Context) {
	approval, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, approval, nil)
}

// Submit assigns the current approver.
func (h *ApprovalHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.SubmitApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid submit payload"))
		return
	}

	approval, err := h.service.SubmitForApproval(c.Request.Context(), c.Param("id"), req.ApproverID, req.Notes, claims.UserID, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, approval, nil)
}

// Approve records an approve decision by the current approver.
func (h *ApprovalHandler) Approve(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid approve payload"))
		return
	}

	approval, err := h.service.ApproveRequest(c.Request.Context(), c.Param("id"), claims.UserID, req.Version, req.Comments, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, approval, nil)
}

// Reject records a reject decision by the current approver.
func (h *ApprovalHandler) Reject(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reject payload"))
		return
	}

	approval, err := h.service.RejectRequest(c.Request.Context(), c.Param("id"), claims.UserID, req.Version, req.Reason, req.Comments, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, approval, nil)
}

// Comment appends a comment without changing state.
func (h *ApprovalHandler) Comment(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid comment payload"))
		return
	}

	if err := h.service.Comment(c.Request.Context(), c.Param("id"), claims.UserID, req.Comment, requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Escalate reassigns a pending approval to another approver.
func (h *ApprovalHandler) Escalate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.EscalateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid escalate payload"))
		return
	}

	approval, err := h.service.Escalate(c.Request.Context(), c.Param("id"), claims.UserID, req.EscalateTo, req.Reason, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, approval, nil)
}

// History returns the audit trail of an approval in insertion order.
func (h *ApprovalHandler) History(c *gin.Context) {
	entries, err := h.service.GetApprovalHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// ExportHistory streams the audit trail as a CSV or PDF download.
func (h *ApprovalHandler) ExportHistory(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "exports are disabled"))
		return
	}

	format, err := service.ParseExportFormat(c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.exports.RenderHistory(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+result.Filename)
	c.Data(http.StatusOK, result.ContentType, result.Payload)
}
