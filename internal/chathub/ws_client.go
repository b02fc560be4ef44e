package chathub

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"chatgogo/minichat/internal/models"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20 // base64 images

	sendBuffer = 256
)

// WebSocketClient implements Client on top of a gorilla connection.
type WebSocketClient struct {
	UserID  string
	Conn    *websocket.Conn
	Hub     *ManagerService
	Send    chan models.Message
	Limiter *rate.Limiter

	closeOnce sync.Once
	closed    chan struct{}
}

// NewWebSocketClient wraps conn. A nil limiter disables rate limiting.
func NewWebSocketClient(userID string, conn *websocket.Conn, hub *ManagerService, limiter *rate.Limiter) *WebSocketClient {
	return &WebSocketClient{
		UserID:  userID,
		Conn:    conn,
		Hub:     hub,
		Send:    make(chan models.Message, sendBuffer),
		Limiter: limiter,
		closed:  make(chan struct{}),
	}
}

func (c *WebSocketClient) GetUserID() string                     { return c.UserID }
func (c *WebSocketClient) GetSendChannel() chan<- models.Message { return c.Send }

func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close stops the write pump, which sends a close frame and tears the
// connection down.
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("ERROR: reading from %s: %v", c.UserID, err)
			}
			return
		}

		if c.Limiter != nil && !c.Limiter.Allow() {
			c.Hub.Metrics.RateLimited.Inc()
			log.Printf("WARNING: client %s exceeded the frame rate, frame dropped.", c.UserID)
			continue
		}

		var msg models.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("WARNING: invalid JSON from client %s: %v", c.UserID, err)
			continue
		}

		if !c.Hub.Submit(c, msg) {
			return
		}
	}
}

// writePump writes one frame per message; clients decode frames one at a time.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case msg := <-c.Send:
			data, err := json.Marshal(msg)
			if err != nil {
				log.Printf("ERROR: encoding message for %s: %v", c.UserID, err)
				continue
			}
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.closed:
			c.Conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
