package handler

import (
	"net/http"

	"chatgogo/minichat/internal/chathub"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// Handler serves the HTTP side of the chat server.
type Handler struct {
	Hub *chathub.ManagerService

	// FrameRate and FrameBurst bound inbound frames per connection.
	// A zero FrameRate disables the limit.
	FrameRate  rate.Limit
	FrameBurst int

	Gatherer prometheus.Gatherer
}

func NewHandler(hub *chathub.ManagerService, frameRate float64, frameBurst int, gatherer prometheus.Gatherer) *Handler {
	return &Handler{
		Hub:        hub,
		FrameRate:  rate.Limit(frameRate),
		FrameBurst: frameBurst,
		Gatherer:   gatherer,
	}
}

// NewRouter wires the routes on a fresh gin engine.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.GET("/chat", h.ServeWebSocket)
	r.GET("/healthz", h.Health)
	if h.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.Gatherer, promhttp.HandlerOpts{})))
	}
	return r
}

// Health reports liveness and the number of open connections.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"clients": h.Hub.ConnectedClients(),
	})
}
