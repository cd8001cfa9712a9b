package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bazaar-chat/internal/commands"
	"bazaar-chat/internal/services"
	"bazaar-chat/internal/transport/httpdto"
	bazaar_errors "bazaar-chat/pkg/errors"
)

type ConversationHandler struct {
	service *services.ConversationService
}

func NewConversationHandler(service *services.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// Start opens (or returns) the conversation between the caller and a peer.
// The same pair always maps to the same conversation.
func (h *ConversationHandler) Start(c *gin.Context) {
	var req httpdto.StartConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "VALIDATION_ERROR"))
		return
	}

	initiatorID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	peerID, err := uuid.Parse(req.PeerID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid peer_id", "VALIDATION_ERROR"))
		return
	}

	itemID := uuid.NullUUID{}
	if req.ItemID != "" {
		parsed, err := uuid.Parse(req.ItemID)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid item_id", "VALIDATION_ERROR"))
			return
		}
		itemID = uuid.NullUUID{UUID: parsed, Valid: true}
	}

	conv, err := h.service.CreateOrGet(c.Request.Context(), commands.StartConversationCommand{
		InitiatorID: initiatorID,
		PeerID:      peerID,
		ItemID:      itemID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromConversation(conv)))
}

func (h *ConversationHandler) List(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	items, total, err := h.service.ListForUser(c.Request.Context(), userID, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ListConversationsResponse{
		Conversations: httpdto.FromConversationSummarySlice(items),
		Total:         total,
	}))
}

func (h *ConversationHandler) GetByID(c *gin.Context) {
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation id", "VALIDATION_ERROR"))
		return
	}
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	conv, err := h.service.GetByID(c.Request.Context(), conversationID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !conv.HasParticipant(userID) {
		respondError(c, bazaar_errors.ErrForbidden)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromConversation(conv)))
}

// MarkRead zeroes the caller's unread counter. Safe to repeat.
func (h *ConversationHandler) MarkRead(c *gin.Context) {
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation id", "VALIDATION_ERROR"))
		return
	}
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	if err := h.service.MarkRead(c.Request.Context(), commands.MarkReadCommand{
		ConversationID: conversationID,
		UserID:         userID,
	}); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.MarkReadResponse{UnreadCount: 0}))
}
