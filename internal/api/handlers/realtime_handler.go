package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"idleassets/api/internal/api/middleware"
	"idleassets/api/internal/config"
	"idleassets/api/internal/feed"
	"idleassets/api/internal/realtime"
	"idleassets/api/internal/services"
)

const subscribeTimeout = 5 * time.Second

// RealtimeHandler upgrades authorized clients to a websocket carrying one
// channel's insert events.
type RealtimeHandler struct {
	cfg      *config.Config
	messages services.IMessageService
	stream   feed.Stream[json.RawMessage]
	upgrader websocket.Upgrader
}

func NewRealtimeHandler(cfg *config.Config, messages services.IMessageService, stream feed.Stream[json.RawMessage]) *RealtimeHandler {
	return &RealtimeHandler{
		cfg:      cfg,
		messages: messages,
		stream:   stream,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origins are enforced by the CORS middleware and the bearer token.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Connect handles GET /v1/realtime?channel=<kind>:<id>
func (h *RealtimeHandler) Connect(c *gin.Context) {
	channel := c.Query("channel")
	if err := h.authorize(c.Request.Context(), channel, middleware.UserID(c)); err != nil {
		respondError(c, err, "Failed to authorize channel")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), subscribeTimeout)
	sub, err := h.stream.Subscribe(ctx, channel)
	cancel()
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Realtime service unavailable"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader has already written the error response.
		log.Printf("RealtimeHandler: upgrade failed for %s: %v", channel, err)
		_ = sub.Close()
		return
	}
	realtime.Forward(conn, channel, sub, h.cfg.WsPingInterval, h.cfg.WsWriteTimeout)
}

// authorize allows a user's own notifications channel and the message
// channels of conversations they take part in.
func (h *RealtimeHandler) authorize(ctx context.Context, channel, userID string) error {
	kind, id, err := realtime.ParseChannel(channel)
	if err != nil {
		return fmt.Errorf("%w: %v", services.ErrInvalidInput, err)
	}
	switch kind {
	case realtime.KindNotifications:
		if id != userID {
			return services.ErrNotParticipant
		}
		return nil
	case realtime.KindMessages:
		_, err := h.messages.GetConversation(ctx, id, userID)
		return err
	}
	return services.ErrInvalidInput
}
