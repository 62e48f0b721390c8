package handler

import (
	"net/http"

	"supportdesk/backend/internal/models"

	"github.com/gin-gonic/gin"
)

type createConversationRequest struct {
	AnonymousID string `json:"anonymous_id" binding:"required,max=128"`
	Name        string `json:"name" binding:"required"`
	Email       string `json:"email" binding:"required"`
}

type updateStatusRequest struct {
	AnonymousID string `json:"anonymous_id" binding:"required"`
	Status      string `json:"status" binding:"required"`
}

type sendMessageRequest struct {
	AnonymousID   string `json:"anonymous_id" binding:"required"`
	Text          string `json:"text"`
	AttachmentURL string `json:"attachment_url"`
}

type ownerRequest struct {
	AnonymousID string `json:"anonymous_id" binding:"required"`
}

type listConversationsQuery struct {
	AnonymousID string `form:"anonymous_id" binding:"required"`
	Status      string `form:"status"`
}

type listMessagesQuery struct {
	AnonymousID string `form:"anonymous_id" binding:"required"`
	Limit       int    `form:"limit" binding:"omitempty,min=0"`
	Before      uint   `form:"before"`
}

func (h *Handler) CreateConversation(c *gin.Context) {
	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	res, err := h.Service.CreateConversation(c.Request.Context(), req.AnonymousID, req.Name, req.Email)
	if err != nil {
		h.respondError(c, "create_conversation", err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) ListConversations(c *gin.Context) {
	var q listConversationsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}

	convs, err := h.Service.ListConversations(c.Request.Context(), q.AnonymousID, q.Status)
	if err != nil {
		h.respondError(c, "list_conversations", err)
		return
	}
	if convs == nil {
		convs = []models.Conversation{}
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

func (h *Handler) GetConversation(c *gin.Context) {
	detail, err := h.Service.GetConversation(c.Request.Context(), c.Param("id"), c.Query("anonymous_id"))
	if err != nil {
		h.respondError(c, "get_conversation", err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// UpdateStatus changes the workflow status. Requesting the current status is a no-op
// answered with an empty message list.
func (h *Handler) UpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	res, err := h.Service.UpdateStatus(c.Request.Context(), c.Param("id"), req.AnonymousID, req.Status)
	if err != nil {
		h.respondError(c, "update_status", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ListMessages(c *gin.Context) {
	var q listMessagesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}

	page, err := h.Service.ListMessages(c.Request.Context(), c.Param("id"), q.AnonymousID, q.Limit, q.Before)
	if err != nil {
		h.respondError(c, "list_messages", err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// SendMessage runs the full orchestration for one user message. Upstream failures
// never fail this call; only validation, access and persistence errors do.
func (h *Handler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	res, err := h.Service.HandleUserMessage(c.Request.Context(), c.Param("id"), req.AnonymousID, req.Text, req.AttachmentURL)
	if err != nil {
		h.respondError(c, "handle_user_message", err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) MarkRead(c *gin.Context) {
	var req ownerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	unread, err := h.Service.MarkRead(c.Request.Context(), c.Param("id"), req.AnonymousID)
	if err != nil {
		h.respondError(c, "mark_read", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": unread})
}
