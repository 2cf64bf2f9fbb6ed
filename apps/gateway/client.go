package main

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/localmart/realtime/pkg/auth"
	"github.com/localmart/realtime/pkg/model"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024

	// Per-connection outbound buffer.
	sendBufSize = 256

	// How long a fan-out delivery may wait on a full egress buffer before
	// the connection is considered stuck.
	sendTimeout = 2 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // product frontends sit behind the same ingress
	},
}

// Client is one live device connection: the middleman between a websocket
// and the hub. Identity is fixed at handshake; room membership lives in the
// hub's registry.
type Client struct {
	ID       string
	UserID   string
	UserName string
	Role     string

	hub    *Hub
	conn   *websocket.Conn
	egress chan model.Event
	done   chan struct{}
}

// send enqueues an event for the write pump. Returns false if the buffer
// stayed full for sendTimeout or the connection is gone.
func (c *Client) send(ev model.Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.egress <- ev:
		return true
	case <-c.done:
		return false
	case <-time.After(sendTimeout):
		return false
	}
}

// readPump pumps inbound action events from the websocket into the hub.
// One goroutine per connection; exit triggers the atomic unregister.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var ev model.Event
		if err := c.conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("unexpected close",
					zap.String("conn_id", c.ID),
					zap.Error(err))
			}
			return
		}
		c.hub.handleEvent(c, ev)
	}
}

// writePump pumps events from the egress buffer to the websocket and keeps
// the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case ev := <-c.egress:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
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

// serveWs authenticates the handshake and admits the connection. The bearer
// token comes from the Authorization header, or a query param for browser
// websocket clients that cannot set headers.
func serveWs(hub *Hub, authn *auth.Authenticator, w http.ResponseWriter, r *http.Request) {
	tokenString := r.Header.Get("Authorization")
	if tokenString == "" {
		tokenString = r.URL.Query().Get("token")
	}
	claims, err := authn.ValidateToken(auth.BearerToken(tokenString))
	if err != nil {
		hub.logger.Info("handshake rejected", zap.Error(err))
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Warn("upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		ID:       uuid.New().String(),
		UserID:   claims.UserID,
		UserName: claims.UserName,
		Role:     claims.Role,
		hub:      hub,
		conn:     conn,
		egress:   make(chan model.Event, sendBufSize),
		done:     make(chan struct{}),
	}
	hub.register <- client

	go client.writePump()
	go client.readPump()
}
