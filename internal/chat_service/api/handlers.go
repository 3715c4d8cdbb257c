package api

import (
	"errors"
	"net/http"

	"mnemochat/internal/chat_service/service"
	"mnemochat/internal/models"

	"github.com/gin-gonic/gin"
)

// Handler bundles the chat service HTTP endpoints.
type Handler struct {
	service *service.ChatService
}

// NewHandler creates a new Handler instance.
func NewHandler(s *service.ChatService) *Handler {
	return &Handler{service: s}
}

// ChatRequest is the JSON body of a chat turn.
type ChatRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message" binding:"required"`
}

// Chat runs one conversation turn for the authenticated user.
func (h *Handler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	res, err := h.service.Chat(c.Request.Context(), userID, req.ConversationID, req.Message)
	if err != nil {
		if errors.Is(err, service.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, res)
}

// ListConversations returns the user's conversation history, newest first.
func (h *Handler) ListConversations(c *gin.Context) {
	userID := c.GetString("userID")

	convs, err := h.service.ListConversations(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if convs == nil {
		convs = []*models.Conversation{}
	}

	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

// GetConversation returns one conversation with its messages.
func (h *Handler) GetConversation(c *gin.Context) {
	userID := c.GetString("userID")
	convID := c.Param("id")

	conv, err := h.service.GetConversation(c.Request.Context(), userID, convID)
	if err != nil {
		if errors.Is(err, service.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, conv)
}

// GetSettings returns the user's chat settings.
func (h *Handler) GetSettings(c *gin.Context) {
	userID := c.GetString("userID")

	settings, err := h.service.GetSettings(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, settings)
}

// UpdateSettings validates and stores new chat settings.
func (h *Handler) UpdateSettings(c *gin.Context) {
	var settings models.ChatSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	if err := h.service.UpdateSettings(c.Request.Context(), userID, settings); err != nil {
		if errors.Is(err, service.ErrInvalidSettings) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, settings)
}

// ListFacts returns what the assistant remembers about the user.
func (h *Handler) ListFacts(c *gin.Context) {
	userID := c.GetString("userID")

	facts, err := h.service.ListFacts(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	contents := make([]string, 0, len(facts))
	for _, f := range facts {
		contents = append(contents, f.Content)
	}

	c.JSON(http.StatusOK, gin.H{"facts": contents})
}
