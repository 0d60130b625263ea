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

// IdempotencyKeyHeader carries the vote nonce when the body does not
const IdempotencyKeyHeader = "Idempotency-Key"

type CommentHandler struct {
	service service.CommentService
}

func NewCommentHandler(service service.CommentService) *CommentHandler {
	return &CommentHandler{service: service}
}

// CreateComment handles POST /api/comment
func (h *CommentHandler) CreateComment(c *gin.Context) {
	var req domain.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.BindError(c, err)
		return
	}

	authorID := middleware.GetUserID(c)
	if req.UserID != "" && req.UserID != authorID {
		common.ErrorResponse(c, http.StatusForbidden, "cannot comment on behalf of another user", nil)
		return
	}
	req.UserID = authorID

	comment, err := h.service.PostComment(c.Request.Context(), &req)
	if err != nil {
		common.HandleServiceError(c, err, "Failed to create comment")
		return
	}

	common.CreatedResponse(c, comment)
}

// UpdateComment handles PUT /api/comment/:id
func (h *CommentHandler) UpdateComment(c *gin.Context) {
	id, err := ginutil.ParamUint(c, "id")
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid comment ID", err)
		return
	}

	var req domain.UpdateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.BindError(c, err)
		return
	}

	comment, err := h.service.EditComment(c.Request.Context(), middleware.GetUserID(c), id, &req)
	if err != nil {
		common.HandleServiceError(c, err, "Failed to update comment")
		return
	}

	common.SuccessResponse(c, comment)
}

// DeleteComment handles DELETE /api/comment/:id
func (h *CommentHandler) DeleteComment(c *gin.Context) {
	id, err := ginutil.ParamUint(c, "id")
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid comment ID", err)
		return
	}

	comment, err := h.service.SoftDeleteComment(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		common.HandleServiceError(c, err, "Failed to delete comment")
		return
	}

	common.SuccessResponse(c, comment)
}

// ListComments handles GET /api/comment/all?fileId=
func (h *CommentHandler) ListComments(c *gin.Context) {
	comments, err := h.service.ListComments(c.Request.Context(), c.Query("fileId"))
	if err != nil {
		common.HandleServiceError(c, err, "Failed to fetch comments")
		return
	}

	common.SuccessResponse(c, comments)
}

// Vote handles POST /api/comment/:id/vote
// @Summary Toggle the caller's vote on a comment
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Comment ID"
// @Param Idempotency-Key header string false "Replays the first result for a retried request"
// @Param body body domain.VoteRequest true "Vote"
// @Success 200 {object} common.APIResponse{data=domain.VoteResult}
// @Failure 404 {object} common.APIResponse
// @Router /comment/{id}/vote [post]
func (h *CommentHandler) Vote(c *gin.Context) {
	id, err := ginutil.ParamUint(c, "id")
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid comment ID", err)
		return
	}

	var req domain.VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.BindError(c, err)
		return
	}

	nonce := req.Nonce
	if nonce == "" {
		nonce = c.GetHeader(IdempotencyKeyHeader)
	}

	result, err := h.service.ApplyVote(c.Request.Context(), id, middleware.GetUserID(c), req.VoteType, nonce)
	if err != nil {
		common.HandleServiceError(c, err, "Failed to apply vote")
		return
	}

	common.SuccessResponse(c, result)
}
