package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"bazaar-chat/internal/events"
	"bazaar-chat/internal/middleware"
	"bazaar-chat/internal/transport/httpdto"
)

type clientCommand struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
}

type Handler struct {
	verifier   *middleware.TokenVerifier
	hub        *Hub
	authorizer *ChannelAuthorizer
}

func NewHandler(verifier *middleware.TokenVerifier, hub *Hub, authorizer *ChannelAuthorizer) *Handler {
	return &Handler{verifier: verifier, hub: hub, authorizer: authorizer}
}

// Connect upgrades the request, attaches the client to its own user channel
// and then serves subscribe/unsubscribe commands until the socket closes.
func (h *Handler) Connect(c *gin.Context) {
	userID, err := h.verifier.Verify(c.Query("token"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := NewClient(conn, userID)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.hub.Register(client)
	h.hub.Subscribe(client, events.ChannelPrefixUser+userID.String())
	go client.WriteLoop(ctx)

	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(readWait))
		h.handleCommand(ctx, client, data)
	}

	h.hub.Unregister(client)
}

func (h *Handler) handleCommand(ctx context.Context, client *Client, data []byte) {
	var cmd clientCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		return
	}
	switch cmd.Action {
	case "subscribe":
		ok, err := h.authorizer.CanSubscribe(ctx, client.UserID, cmd.Channel)
		if err != nil || !ok {
			return
		}
		h.hub.Subscribe(client, cmd.Channel)
	case "unsubscribe":
		h.hub.Unsubscribe(client, cmd.Channel)
	}
}
