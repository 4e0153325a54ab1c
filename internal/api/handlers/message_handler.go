package handlers

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"idleassets/api/internal/api/middleware"
	"idleassets/api/internal/models"
	"idleassets/api/internal/services"
	"idleassets/api/internal/tasks"
)

// MessageHandler handles conversations and their messages.
type MessageHandler struct {
	messages   services.IMessageService
	taskClient tasks.Enqueuer
}

func NewMessageHandler(messages services.IMessageService, taskClient tasks.Enqueuer) *MessageHandler {
	return &MessageHandler{messages: messages, taskClient: taskClient}
}

// StartConversationRequest is the body of POST /v1/conversations. Content,
// when present, is sent as the first message.
type StartConversationRequest struct {
	ListingID   string `json:"listing_id" binding:"required"`
	RecipientID string `json:"recipient_id" binding:"required"`
	Content     string `json:"content"`
}

// SendMessageRequest is the body of POST /v1/conversations/:id/messages.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// ListConversations handles GET /v1/conversations
func (h *MessageHandler) ListConversations(c *gin.Context) {
	conversations, err := h.messages.ListConversations(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err, "Failed to list conversations")
		return
	}
	c.JSON(http.StatusOK, conversations)
}

// StartConversation handles POST /v1/conversations
func (h *MessageHandler) StartConversation(c *gin.Context) {
	var req StartConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "listing_id and recipient_id are required")
		return
	}

	ctx := c.Request.Context()
	userID := middleware.UserID(c)
	conversation, err := h.messages.StartConversation(ctx, userID, req.RecipientID, req.ListingID)
	if err != nil {
		respondError(c, err, "Failed to start conversation")
		return
	}

	if strings.TrimSpace(req.Content) != "" {
		msg, err := h.messages.SendMessage(ctx, conversation.ID, userID, req.Content)
		if err != nil {
			respondError(c, err, "Failed to send message")
			return
		}
		h.messageSent(ctx, msg)
	}
	c.JSON(http.StatusCreated, conversation)
}

// ListMessages handles GET /v1/conversations/:id/messages
func (h *MessageHandler) ListMessages(c *gin.Context) {
	messages, err := h.messages.ListMessages(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		respondError(c, err, "Failed to list messages")
		return
	}
	c.JSON(http.StatusOK, messages)
}

// SendMessage handles POST /v1/conversations/:id/messages
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid message body")
		return
	}

	ctx := c.Request.Context()
	msg, err := h.messages.SendMessage(ctx, c.Param("id"), middleware.UserID(c), req.Content)
	if err != nil {
		respondError(c, err, "Failed to send message")
		return
	}
	h.messageSent(ctx, msg)
	c.JSON(http.StatusCreated, msg)
}

// MarkRead handles POST /v1/conversations/:id/read
func (h *MessageHandler) MarkRead(c *gin.Context) {
	n, err := h.messages.MarkConversationRead(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		respondError(c, err, "Failed to mark conversation read")
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": n})
}

func (h *MessageHandler) messageSent(ctx context.Context, msg *models.Message) {
	task, err := tasks.NewMessageSentTask(tasks.MessageSentPayload{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Preview:        msg.Content,
	})
	if err := tasks.Enqueue(ctx, h.taskClient, task, err); err != nil {
		log.Printf("MessageHandler: notification for message %s not queued: %v", msg.ID, err)
	}
}
