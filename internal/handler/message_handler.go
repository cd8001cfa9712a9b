package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bazaar-chat/internal/commands"
	"bazaar-chat/internal/domain/message"
	"bazaar-chat/internal/services"
	"bazaar-chat/internal/transport/httpdto"
)

type MessageHandler struct {
	service *services.MessageService
}

func NewMessageHandler(service *services.MessageService) *MessageHandler {
	return &MessageHandler{service: service}
}

func (h *MessageHandler) Send(c *gin.Context) {
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation id", "VALIDATION_ERROR"))
		return
	}
	senderID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	var req httpdto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "VALIDATION_ERROR"))
		return
	}
	// OFFER and SYSTEM messages are produced by the offer lifecycle;
	// clients can only append text.
	if req.Type != "" && req.Type != message.TypeText {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("unsupported message type", "VALIDATION_ERROR"))
		return
	}

	res, err := h.service.HandleSendMessage(c.Request.Context(), commands.SendMessageCommand{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        req.Content,
		Type:           message.TypeText,
		ClientMsgID:    req.ClientMessageID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	msg, _ := res.Payload.(message.Message)
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromMessage(msg)))
}

// List returns messages strictly after after_seq, oldest first.
func (h *MessageHandler) List(c *gin.Context) {
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

	afterSeq, _ := strconv.ParseInt(c.Query("after_seq"), 10, 64)
	limit, _ := strconv.Atoi(c.Query("limit"))

	items, err := h.service.GetConversationMessages(c.Request.Context(), conversationID, afterSeq, limit, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ListMessagesResponse{
		Messages: httpdto.FromMessageSlice(items),
	}))
}
