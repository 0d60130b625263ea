package handler

import (
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/studyshare/studyshare-backend/internal/common"
	"github.com/studyshare/studyshare-backend/internal/domain"
	"github.com/studyshare/studyshare-backend/internal/middleware"
	"github.com/studyshare/studyshare-backend/internal/service"
	"github.com/studyshare/studyshare-backend/pkg/ginutil"
)

// GroupChatHandler handles group chat HTTP requests
type GroupChatHandler struct {
	chats       service.GroupChatService
	ledger      service.ReadLedgerService
	maxFileSize int64
}

// NewGroupChatHandler creates a new GroupChatHandler. maxFileSizeMB bounds each uploaded file.
func NewGroupChatHandler(chats service.GroupChatService, ledger service.ReadLedgerService, maxFileSizeMB int) *GroupChatHandler {
	return &GroupChatHandler{
		chats:       chats,
		ledger:      ledger,
		maxFileSize: int64(maxFileSizeMB) << 20,
	}
}

// CreateGroupChat handles POST /api/group-chats
// @Summary Create a group chat
// @Tags group-chats
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param name formData string true "Chat name"
// @Param picture formData file false "Group picture"
// @Success 201 {object} common.APIResponse{data=domain.GroupChatResponse}
// @Router /group-chats [post]
func (h *GroupChatHandler) CreateGroupChat(c *gin.Context) {
	var picture *domain.Upload
	if header, err := c.FormFile("picture"); err == nil {
		upload, closeFn, err := h.open(header)
		if err != nil {
			common.HandleServiceError(c, err, "Failed to read picture")
			return
		}
		defer closeFn()
		picture = upload
	}

	chat, err := h.chats.CreateGroupChat(c.Request.Context(), middleware.GetUserID(c), c.PostForm("name"), picture)
	if err != nil {
		common.HandleServiceError(c, err, "Failed to create group chat")
		return
	}
	common.CreatedResponse(c, chat)
}

// ListGroupChats handles GET /api/group-chats
func (h *GroupChatHandler) ListGroupChats(c *gin.Context) {
	chats, err := h.chats.ListForUser(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		common.HandleServiceError(c, err, "Failed to fetch group chats")
		return
	}
	common.SuccessResponse(c, chats)
}

// UnreadChats handles GET /api/group-chats/unread
func (h *GroupChatHandler) UnreadChats(c *gin.Context) {
	ids, err := h.ledger.UnreadChatIDs(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		common.HandleServiceError(c, err, "Failed to fetch unread chats")
		return
	}
	common.SuccessResponse(c, domain.UnreadChats{UnreadGroupChatIDs: ids})
}

// UnreadCount handles GET /api/group-chats/unread-count
func (h *GroupChatHandler) UnreadCount(c *gin.Context) {
	count, err := h.ledger.UnreadChatCount(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		common.HandleServiceError(c, err, "Failed to count unread chats")
		return
	}
	common.SuccessResponse(c, domain.UnreadChatCount{Count: count})
}

// AddMembers handles POST /api/group-chats/:groupId/add-members
func (h *GroupChatHandler) AddMembers(c *gin.Context) {
	groupID, ok := groupParam(c)
	if !ok {
		return
	}

	var req domain.AddMembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.BindError(c, err)
		return
	}

	chat, err := h.chats.AddMembers(c.Request.Context(), middleware.GetUserID(c), groupID, req.UserIDs)
	if err != nil {
		common.HandleServiceError(c, err, "Failed to add members")
		return
	}
	common.SuccessResponse(c, chat)
}

// RemoveMember handles POST /api/group-chats/:groupId/remove-member
func (h *GroupChatHandler) RemoveMember(c *gin.Context) {
	groupID, ok := groupParam(c)
	if !ok {
		return
	}

	var req domain.RemoveMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.BindError(c, err)
		return
	}

	chat, err := h.chats.RemoveMember(c.Request.Context(), middleware.GetUserID(c), groupID, req.UserIDToRemove)
	if err != nil {
		common.HandleServiceError(c, err, "Failed to remove member")
		return
	}
	common.SuccessResponse(c, chat)
}

// ListMembers handles GET /api/group-chats/:groupId/members
func (h *GroupChatHandler) ListMembers(c *gin.Context) {
	groupID, ok := groupParam(c)
	if !ok {
		return
	}

	members, err := h.chats.ListMembers(c.Request.Context(), middleware.GetUserID(c), groupID)
	if err != nil {
		common.HandleServiceError(c, err, "Failed to fetch members")
		return
	}
	common.SuccessResponse(c, members)
}

// ListMessages handles GET /api/group-chats/:groupId/messages
func (h *GroupChatHandler) ListMessages(c *gin.Context) {
	groupID, ok := groupParam(c)
	if !ok {
		return
	}

	messages, err := h.chats.ListMessages(c.Request.Context(), middleware.GetUserID(c), groupID)
	if err != nil {
		common.HandleServiceError(c, err, "Failed to fetch messages")
		return
	}
	common.SuccessResponse(c, messages)
}

// SendMessage handles POST /api/group-chats/:groupId/messages
// @Summary Send a message with optional attachments
// @Tags group-chats
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param groupId path int true "Group chat ID"
// @Param content formData string false "Message text"
// @Param files formData file false "Attachments (repeatable)"
// @Success 201 {object} common.APIResponse{data=domain.Message}
// @Router /group-chats/{groupId}/messages [post]
func (h *GroupChatHandler) SendMessage(c *gin.Context) {
	groupID, ok := groupParam(c)
	if !ok {
		return
	}

	senderID := middleware.GetUserID(c)
	if claimed := c.PostForm("senderId"); claimed != "" && claimed != senderID {
		common.ErrorResponse(c, http.StatusForbidden, "cannot send on behalf of another user", nil)
		return
	}

	var uploads []*domain.Upload
	if form, err := c.MultipartForm(); err == nil {
		for _, header := range form.File["files"] {
			upload, closeFn, err := h.open(header)
			if err != nil {
				common.HandleServiceError(c, err, "Failed to read attachment")
				return
			}
			defer closeFn()
			uploads = append(uploads, upload)
		}
	}

	message, err := h.chats.SendMessage(c.Request.Context(), groupID, senderID, c.PostForm("content"), uploads)
	if err != nil {
		common.HandleServiceError(c, err, "Failed to send message")
		return
	}
	common.CreatedResponse(c, message)
}

// MarkRead handles POST /api/group-chats/:groupId/read
func (h *GroupChatHandler) MarkRead(c *gin.Context) {
	groupID, ok := groupParam(c)
	if !ok {
		return
	}

	if err := h.ledger.MarkChatRead(c.Request.Context(), middleware.GetUserID(c), groupID); err != nil {
		common.HandleServiceError(c, err, "Failed to mark chat as read")
		return
	}
	c.Status(http.StatusNoContent)
}

// LastMessage handles GET /api/group-chats/:groupId/last-message
func (h *GroupChatHandler) LastMessage(c *gin.Context) {
	groupID, ok := groupParam(c)
	if !ok {
		return
	}

	message, err := h.chats.LastMessage(c.Request.Context(), middleware.GetUserID(c), groupID)
	if err != nil {
		common.HandleServiceError(c, err, "Failed to fetch last message")
		return
	}
	common.SuccessResponse(c, domain.LastMessageResponse{LastMessage: message})
}

func groupParam(c *gin.Context) (uint, bool) {
	groupID, err := ginutil.ParamUint(c, "groupId")
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid group chat ID", err)
		return 0, false
	}
	return groupID, true
}

// open turns a multipart file into an Upload, enforcing the size limit
func (h *GroupChatHandler) open(header *multipart.FileHeader) (*domain.Upload, func(), error) {
	if h.maxFileSize > 0 && header.Size > h.maxFileSize {
		return nil, nil, common.NewValidationError("file exceeds the upload size limit", header.Filename)
	}
	f, err := header.Open()
	if err != nil {
		return nil, nil, err
	}
	upload := &domain.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        f,
	}
	return upload, func() { f.Close() }, nil
}
