// Package metrics holds the Prometheus collectors of the client engine and
// the chat server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Reasons a client drops an inbound frame.
const (
	DropDecode    = "decode"
	DropNotJoined = "not_joined"
	DropOverflow  = "overflow"
)

// Client counts what the connection engine does.
type Client struct {
	FramesReceived prometheus.Counter
	FramesDropped  *prometheus.CounterVec
	Reconnects     prometheus.Counter
	MessagesSent   *prometheus.CounterVec
	State          *prometheus.GaugeVec
}

// NewClient registers the client collectors on reg. A nil reg keeps them
// unregistered, which is what tests and embedded clients want.
func NewClient(reg prometheus.Registerer) *Client {
	m := &Client{
		FramesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "minichat",
			Subsystem: "client",
			Name:      "frames_received_total",
			Help:      "Inbound frames read from the transport.",
		}),
		FramesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "minichat",
			Subsystem: "client",
			Name:      "frames_dropped_total",
			Help:      "Inbound messages not delivered to a room queue.",
		}, []string{"reason"}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "minichat",
			Subsystem: "client",
			Name:      "reconnects_scheduled_total",
			Help:      "Reconnect timers started.",
		}),
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "minichat",
			Subsystem: "client",
			Name:      "messages_sent_total",
			Help:      "Outbound messages by final delivery status.",
		}, []string{"status"}),
		State: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "minichat",
			Subsystem: "client",
			Name:      "connection_state",
			Help:      "1 for the current connection state, 0 otherwise.",
		}, []string{"state"}),
	}
	if reg != nil {
		reg.MustRegister(m.FramesReceived, m.FramesDropped, m.Reconnects, m.MessagesSent, m.State)
	}
	return m
}

// Server counts what the hub does.
type Server struct {
	ConnectedClients prometheus.Gauge
	Broadcasts       prometheus.Counter
	RateLimited      prometheus.Counter
	AuthAttempts     *prometheus.CounterVec
}

func NewServer(reg prometheus.Registerer) *Server {
	m := &Server{
		ConnectedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "minichat",
			Subsystem: "server",
			Name:      "connected_clients",
			Help:      "Open WebSocket connections.",
		}),
		Broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "minichat",
			Subsystem: "server",
			Name:      "broadcasts_total",
			Help:      "Chat messages fanned out to room members.",
		}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "minichat",
			Subsystem: "server",
			Name:      "rate_limited_frames_total",
			Help:      "Inbound frames dropped by the per-connection limiter.",
		}),
		AuthAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "minichat",
			Subsystem: "server",
			Name:      "auth_attempts_total",
			Help:      "LOGIN and REGISTER frames by response.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.ConnectedClients, m.Broadcasts, m.RateLimited, m.AuthAttempts)
	}
	return m
}
