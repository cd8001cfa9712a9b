package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bazaar-chat/internal/commands"
	"bazaar-chat/internal/domain/offer"
	"bazaar-chat/internal/services"
	"bazaar-chat/internal/transport/httpdto"
)

type OfferHandler struct {
	service    *services.OfferService
	defaultTTL time.Duration
}

func NewOfferHandler(service *services.OfferService, defaultTTL time.Duration) *OfferHandler {
	if defaultTTL <= 0 {
		defaultTTL = 24 * time.Hour
	}
	return &OfferHandler{service: service, defaultTTL: defaultTTL}
}

func (h *OfferHandler) Create(c *gin.Context) {
	senderID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	var req httpdto.CreateOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "VALIDATION_ERROR"))
		return
	}
	conversationID, err := uuid.Parse(req.ConversationID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation_id", "VALIDATION_ERROR"))
		return
	}

	o, err := h.service.Create(c.Request.Context(), commands.CreateOfferCommand{
		ConversationID: conversationID,
		SenderID:       senderID,
		Kind:           req.Kind,
		OriginalPrice:  req.OriginalPrice,
		OfferedPrice:   req.OfferedPrice,
		BarterItems:    httpdto.ToBarterItems(req.BarterItems),
		TTL:            h.ttl(req.TTLSeconds),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromOffer(o)))
}

func (h *OfferHandler) GetByID(c *gin.Context) {
	offerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid offer id", "VALIDATION_ERROR"))
		return
	}
	o, err := h.service.GetByID(c.Request.Context(), offerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromOffer(o)))
}

func (h *OfferHandler) Accept(c *gin.Context)   { h.transition(c, h.service.Accept) }
func (h *OfferHandler) Reject(c *gin.Context)   { h.transition(c, h.service.Reject) }
func (h *OfferHandler) Withdraw(c *gin.Context) { h.transition(c, h.service.Withdraw) }

func (h *OfferHandler) Counter(c *gin.Context) {
	parentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid offer id", "VALIDATION_ERROR"))
		return
	}
	actorID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	var req httpdto.CounterOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "VALIDATION_ERROR"))
		return
	}
	conversationID := uuid.Nil
	if req.ConversationID != "" {
		conversationID, err = uuid.Parse(req.ConversationID)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation_id", "VALIDATION_ERROR"))
			return
		}
	}

	o, err := h.service.Counter(c.Request.Context(), commands.CounterOfferCommand{
		ParentOfferID:  parentID,
		ConversationID: conversationID,
		ActorID:        actorID,
		Kind:           req.Kind,
		OriginalPrice:  req.OriginalPrice,
		OfferedPrice:   req.OfferedPrice,
		BarterItems:    httpdto.ToBarterItems(req.BarterItems),
		TTL:            h.ttl(req.TTLSeconds),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromOffer(o)))
}

func (h *OfferHandler) transition(c *gin.Context, apply func(ctx context.Context, offerID, actorID uuid.UUID) (offer.Offer, error)) {
	offerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid offer id", "VALIDATION_ERROR"))
		return
	}
	actorID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	o, err := apply(c.Request.Context(), offerID, actorID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromOffer(o)))
}

func (h *OfferHandler) ttl(seconds int64) time.Duration {
	if seconds <= 0 {
		return h.defaultTTL
	}
	return time.Duration(seconds) * time.Second
}
