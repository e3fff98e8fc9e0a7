package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/SOL-ICT/hrm-erp-sub019/internal/service"
	appErrors "github.com/SOL-ICT/hrm-erp-sub019/pkg/errors"
	"github.com/SOL-ICT/hrm-erp-sub019/pkg/response"
)

// DashboardHandler serves aggregate approval statistics.
type DashboardHandler struct {
	service       *service.DashboardService
	notifications *service.NotificationService
}

// NewDashboardHandler creates a new handler.
func NewDashboardHandler(svc *service.DashboardService, notifications *service.NotificationService) *DashboardHandler {
	return &DashboardHandler{service: svc, notifications: notifications}
}

// Summary returns the approvals dashboard aggregation.
func (h *DashboardHandler) Summary(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Notifications returns recent notifications for the authenticated user.
func (h *DashboardHandler) Notifications(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	limit := 20
	if parsed, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil && parsed > 0 {
		limit = parsed
	}

	notifications, err := h.notifications.ListForRecipient(c.Request.Context(), claims.UserID, limit)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications"))
		return
	}
	response.JSON(c, http.StatusOK, notifications, nil)
}
