package realtime

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
	"idleassets/api/internal/feed"
)

const maxInboundMessageSize = 512

// Frame is one event delivered to a websocket client.
type Frame struct {
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Record  json.RawMessage `json:"record"`
}

const EventInsert = "INSERT"

// Forward writes every event from sub to conn as a Frame until either side
// closes. Pings are sent every pingInterval; a peer that stops answering is
// dropped after two missed pongs.
func Forward(conn *websocket.Conn, channel string, sub feed.Subscription[json.RawMessage], pingInterval, writeWait time.Duration) {
	pongWait := 2 * pingInterval
	closed := make(chan struct{})

	// Read pump: consumes control frames and notices disconnects.
	go func() {
		defer close(closed)
		conn.SetReadLimit(maxInboundMessageSize)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("realtime: read error on %s: %v", channel, err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		if err := sub.Close(); err != nil {
			log.Printf("realtime: failed to close subscription %s: %v", channel, err)
		}
		conn.Close()
	}()

	events := sub.Events()
	for {
		select {
		case record, ok := <-events:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "subscription ended"))
				return
			}
			if err := conn.WriteJSON(Frame{Channel: channel, Event: EventInsert, Record: record}); err != nil {
				log.Printf("realtime: write error on %s: %v", channel, err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
