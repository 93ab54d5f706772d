package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/atomhudson/allrentr-chat/internal/service"
)

type ChatHandler interface {
	CreateConversation(c *gin.Context)
	ListConversations(c *gin.Context)
	GetMessages(c *gin.Context)
	DecideContact(c *gin.Context)
	DeleteConversation(c *gin.Context)
}

type chatHandler struct {
	service service.ChatService
}

func NewChatHandler(service service.ChatService) ChatHandler {
	return &chatHandler{
		service: service,
	}
}

type createConversationRequest struct {
	ListingID string `json:"listingId" binding:"required"`
	OwnerID   string `json:"ownerId" binding:"required"`
}

// CreateConversation returns the existing conversation for the listing
// and caller, creating it when none exists yet. The caller is always
// the leaser; owners never open conversations.
func (h *chatHandler) CreateConversation(c *gin.Context) {
	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	leaserID := c.GetString("userId")
	if leaserID == req.OwnerID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot open a conversation with yourself"})
		return
	}

	conv, created, err := h.service.GetOrCreateConversation(c.Request.Context(), req.ListingID, req.OwnerID, leaserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open conversation"})
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}

	c.JSON(status, gin.H{
		"conversation": conv,
		"created":      created,
	})
}

func (h *chatHandler) ListConversations(c *gin.Context) {
	userID := c.GetString("userId")

	convs, err := h.service.ListConversations(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list conversations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversations": convs,
	})
}

func (h *chatHandler) GetMessages(c *gin.Context) {
	conversationID := c.Param("conversationId")
	page := c.DefaultQuery("page", "1")
	pageNumber, err := strconv.ParseInt(page, 10, 64)
	if err != nil || pageNumber < 1 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid page number",
		})
		return
	}

	result, err := h.service.GetMessages(c.Request.Context(), conversationID, c.GetString("userId"), pageNumber)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages":   result.Data,
		"page":       result.Page,
		"totalPages": result.TotalPages,
		"total":      result.Total,
	})
}

type decideContactRequest struct {
	Approve *bool `json:"approve" binding:"required"`
}

func (h *chatHandler) DecideContact(c *gin.Context) {
	var req decideContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conv, err := h.service.DecideContact(c.Request.Context(), c.Param("conversationId"), c.GetString("userId"), *req.Approve)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversation": conv,
	})
}

func (h *chatHandler) DeleteConversation(c *gin.Context) {
	err := h.service.DeleteConversation(c.Request.Context(), c.Param("conversationId"), c.GetString("userId"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *chatHandler) writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrConversationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
	case errors.Is(err, service.ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant of this conversation"})
	case errors.Is(err, service.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": "only the listing owner can decide a contact request"})
	case errors.Is(err, service.ErrAlreadyDecided):
		c.JSON(http.StatusConflict, gin.H{"error": "contact request already decided"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
