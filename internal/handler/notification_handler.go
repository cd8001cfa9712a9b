package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bazaar-chat/internal/services"
	"bazaar-chat/internal/transport/httpdto"
)

type NotificationHandler struct {
	service *services.NotificationService
}

func NewNotificationHandler(service *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// UnreadTotal is the aggregate badge count across all conversations.
func (h *NotificationHandler) UnreadTotal(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	total, err := h.service.UnreadTotal(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.UnreadTotalResponse{Total: total}))
}
