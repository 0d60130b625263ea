package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/studyshare/studyshare-backend/internal/common"
	"github.com/studyshare/studyshare-backend/internal/domain"
	"github.com/studyshare/studyshare-backend/internal/middleware"
	"github.com/studyshare/studyshare-backend/internal/service"
	"github.com/studyshare/studyshare-backend/pkg/ginutil"
)

// NotificationHandler handles notification HTTP requests
type NotificationHandler struct {
	service service.NotificationService
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(service service.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// ListUnread handles GET /api/notifications
func (h *NotificationHandler) ListUnread(c *gin.Context) {
	items, err := h.service.ListUnread(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		common.HandleServiceError(c, err, "Failed to fetch notifications")
		return
	}
	common.SuccessResponse(c, items)
}

// CountUnread handles GET /api/notifications/count
func (h *NotificationHandler) CountUnread(c *gin.Context) {
	count, err := h.service.CountUnread(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		common.HandleServiceError(c, err, "Failed to count notifications")
		return
	}
	common.SuccessResponse(c, domain.NotificationCount{Count: count})
}

// MarkAsRead handles PATCH /api/notifications/mark-as-read/:id
func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	id, err := ginutil.ParamUint(c, "id")
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid notification ID", err)
		return
	}

	n, err := h.service.MarkRead(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		common.HandleServiceError(c, err, "Failed to mark notification as read")
		return
	}
	common.SuccessResponse(c, n)
}

// MarkAllAsRead handles PATCH /api/notifications/mark-all-as-read
func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	updated, err := h.service.MarkAllRead(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		common.HandleServiceError(c, err, "Failed to mark notifications as read")
		return
	}
	common.SuccessResponse(c, gin.H{"updated": updated})
}

// ListInsights handles GET /api/notifications/insights/:userId
func (h *NotificationHandler) ListInsights(c *gin.Context) {
	userID := c.Param("userId")
	if userID != middleware.GetUserID(c) {
		common.ErrorResponse(c, http.StatusForbidden, "insights are only visible to their recipient", nil)
		return
	}

	items, err := h.service.ListInsights(c.Request.Context(), userID)
	if err != nil {
		common.HandleServiceError(c, err, "Failed to fetch insights")
		return
	}
	common.SuccessResponse(c, items)
}

// CreateInsight handles POST /api/notifications/insights (producer API key)
func (h *NotificationHandler) CreateInsight(c *gin.Context) {
	var req domain.CreateInsightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.BindError(c, err)
		return
	}

	n, err := h.service.CreateInsight(c.Request.Context(), &req)
	if err != nil {
		common.HandleServiceError(c, err, "Failed to create insight")
		return
	}
	common.CreatedResponse(c, n)
}

// CreateFriendRequest handles POST /api/notifications/friend-requests (producer API key)
func (h *NotificationHandler) CreateFriendRequest(c *gin.Context) {
	var req domain.CreateFriendRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.BindError(c, err)
		return
	}

	n, err := h.service.CreateFriendRequest(c.Request.Context(), &req)
	if err != nil {
		common.HandleServiceError(c, err, "Failed to create friend request")
		return
	}
	common.CreatedResponse(c, n)
}
