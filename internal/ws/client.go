package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Media travels as upload URLs,
	// not bytes, so frames stay small.
	maxMessageSize = 64 * 1024

	// Per-client outbound buffer. A slow consumer loses pushes beyond this,
	// never blocks the hub.
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one live websocket session, bound at upgrade time to the identity
// from the caller's token. Inbound events are attributed to that identity
// regardless of what their payloads claim.
type Client struct {
	hub *Hub

	conn *websocket.Conn

	send chan *Outbound

	userID   string
	username string
}

// trySend queues an event for delivery without blocking. Delivery is
// fire-and-forget: when the buffer is full the event is dropped and the
// client will resync from history on its next fetch.
func (c *Client) trySend(ev *Outbound) {
	select {
	case c.send <- ev:
	default:
		c.hub.logger.Warn("dropping event for slow client",
			zap.String("user_id", c.userID),
			zap.String("event", ev.Event),
		)
	}
}

// readPump pumps events from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.hub.presence.Refresh(c.userID)
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read error",
					zap.String("user_id", c.userID),
					zap.Error(err),
				)
			}
			break
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.hub.logger.Debug("malformed frame",
				zap.String("user_id", c.userID),
				zap.Error(err),
			)
			continue
		}

		c.hub.inbound <- inboundEvent{client: c, env: env}
	}
}

// writePump pumps events from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			json.NewEncoder(w).Encode(ev)

			// Flush queued events into the same frame batch
			n := len(c.send)
			for range n {
				json.NewEncoder(w).Encode(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs upgrades an authenticated request to a websocket session. The auth
// middleware has already validated the token (via header or ?token= query)
// and stored the identity in the gin context.
func ServeWs(hub *Hub, c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hub.logger.Warn("failed to upgrade websocket", zap.Error(err))
		return
	}

	client := &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan *Outbound, sendBufferSize),
		userID:   userID,
		username: c.GetString("username"),
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}
