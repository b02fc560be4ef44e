package transport

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
	sendBuffer     = 256
	closeGrace     = 2 * time.Second
)

// WebSocketDialer dials ws:// targets with gorilla/websocket.
type WebSocketDialer struct {
	Dialer *websocket.Dialer
	Header http.Header
}

// NewWebSocketDialer returns a dialer with the default handshake timeout.
func NewWebSocketDialer() *WebSocketDialer {
	return &WebSocketDialer{Dialer: websocket.DefaultDialer}
}

// Dial implements Dialer.
func (d *WebSocketDialer) Dial(ctx context.Context, target string, events chan<- Event) Conn {
	ctx, cancel := context.WithCancel(ctx)
	c := &wsConn{
		ctx:    ctx,
		cancel: cancel,
		events: events,
		send:   make(chan []byte, sendBuffer),
	}
	go c.open(d.dialer(), target, d.Header)
	return c
}

func (d *WebSocketDialer) dialer() *websocket.Dialer {
	if d.Dialer == nil {
		return websocket.DefaultDialer
	}
	return d.Dialer
}

type wsConn struct {
	ctx    context.Context
	cancel context.CancelFunc
	events chan<- Event

	mu      sync.Mutex
	ws      *websocket.Conn
	closing bool
	done    bool

	send chan []byte
}

func (c *wsConn) emit(ev Event) {
	ev.Conn = c
	select {
	case c.events <- ev:
	case <-c.ctx.Done():
	}
}

func (c *wsConn) open(dialer *websocket.Dialer, target string, header http.Header) {
	ws, _, err := dialer.DialContext(c.ctx, target, header)
	if err != nil {
		c.emit(Event{Kind: EventFailed, Err: err})
		return
	}

	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		ws.Close()
		return
	}
	c.ws = ws
	c.mu.Unlock()

	c.emit(Event{Kind: EventOpened})
	go c.writePump(ws)
	c.readPump(ws)
}

// Send implements Conn.
func (c *wsConn) Send(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws == nil || c.done || c.closing {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		log.Printf("WARNING: send buffer full, frame rejected")
		return false
	}
}

// Close implements Conn.
func (c *wsConn) Close(code int, reason string) error {
	c.mu.Lock()
	ws := c.ws
	if ws == nil || c.done || c.closing {
		c.mu.Unlock()
		c.Cancel()
		return nil
	}
	c.closing = true
	c.mu.Unlock()

	msg := websocket.FormatCloseMessage(code, reason)
	err := ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	// The peer normally answers the close frame; do not wait for it forever.
	time.AfterFunc(closeGrace, c.Cancel)
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return err
	}
	return nil
}

// Cancel implements Conn.
func (c *wsConn) Cancel() {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return
	}
	c.done = true
	ws := c.ws
	c.mu.Unlock()

	if ws != nil {
		ws.Close()
	}
	c.cancel()
}

func (c *wsConn) readPump(ws *websocket.Conn) {
	defer ws.Close()

	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			c.finish(err)
			return
		}
		c.emit(Event{Kind: EventFrame, Data: message})
	}
}

// finish reports how the read side ended.
func (c *wsConn) finish(err error) {
	c.mu.Lock()
	cancelled := c.done
	c.done = true
	c.mu.Unlock()
	defer c.cancel()

	var closeErr *websocket.CloseError
	switch {
	case errors.As(err, &closeErr):
		c.emit(Event{Kind: EventClosing, Code: closeErr.Code, Reason: closeErr.Text})
		c.emit(Event{Kind: EventClosed, Code: closeErr.Code, Reason: closeErr.Text})
	case cancelled:
		c.emit(Event{Kind: EventClosed, Code: CloseNormal})
	default:
		c.emit(Event{Kind: EventFailed, Err: err})
	}
}

func (c *wsConn) writePump(ws *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data := <-c.send:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("ERROR: write failed: %v", err)
				ws.Close()
				return
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}
