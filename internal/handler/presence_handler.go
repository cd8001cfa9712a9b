package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bazaar-chat/internal/services"
	"bazaar-chat/internal/transport/httpdto"
)

type PresenceHandler struct {
	service *services.PresenceService
}

func NewPresenceHandler(service *services.PresenceService) *PresenceHandler {
	return &PresenceHandler{service: service}
}

// StartTyping records a typing signal; repeated calls extend the window.
func (h *PresenceHandler) StartTyping(c *gin.Context) {
	h.signal(c, h.service.SetTyping)
}

func (h *PresenceHandler) StopTyping(c *gin.Context) {
	h.signal(c, h.service.ClearTyping)
}

func (h *PresenceHandler) TypingUsers(c *gin.Context) {
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

	ids, err := h.service.TypingUsers(c.Request.Context(), conversationID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.TypingUsersResponse{UserIDs: out}))
}

func (h *PresenceHandler) signal(c *gin.Context, apply func(ctx context.Context, conversationID, userID uuid.UUID) error) {
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

	if err := apply(c.Request.Context(), conversationID, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}
