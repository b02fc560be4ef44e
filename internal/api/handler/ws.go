package handler

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"chatgogo/minichat/internal/chathub"
	"chatgogo/minichat/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Mobile and CLI clients send no Origin header.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades GET /chat?username=<name> and registers the
// connection with the hub.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	username := connectionUser(c.Query("username"))
	if !models.ValidUsername(username) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "username must not contain " + strconv.Quote(models.PrivateRoomSeparator)})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		log.Printf("WARNING: websocket upgrade for %s failed: %v", username, err)
		return
	}

	var limiter *rate.Limiter
	if h.FrameRate > 0 {
		limiter = rate.NewLimiter(h.FrameRate, h.FrameBurst)
	}
	client := chathub.NewWebSocketClient(username, conn, h.Hub, limiter)

	select {
	case h.Hub.RegisterCh <- client:
	case <-h.Hub.Done():
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}
	client.Run()
}

// connectionUser names connections that did not say who they are. The
// generated name carries no room id separator.
func connectionUser(username string) string {
	username = strings.TrimSpace(username)
	if username == "" {
		return "anonymous_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	return username
}
