package chatclient

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"chatgogo/minichat/internal/config"
	"chatgogo/minichat/internal/localization"
	"chatgogo/minichat/internal/metrics"
	"chatgogo/minichat/internal/models"
	"chatgogo/minichat/internal/transport"
)

// SettingsSource supplies the server address and reconnect delay. They are
// read again on every connect attempt.
type SettingsSource interface {
	Server() (host string, port int)
	ReconnectInterval() time.Duration
}

// ConnectionManager owns the transport connection and the connection state.
// All of its state is touched only by the loop goroutine; other goroutines
// reach it through commands.
type ConnectionManager struct {
	dialer     transport.Dialer
	settings   SettingsSource
	dispatcher *Dispatcher
	rooms      *RoomRegistry
	metrics    *metrics.Client

	events   chan transport.Event
	commands chan func()
	state    *stateFeed

	ctx     context.Context
	running atomic.Bool
	done    chan struct{}

	identityMu sync.RWMutex
	identity   string

	// Loop-owned.
	conn         transport.Conn
	stopped      bool
	reconnect    *time.Timer
	reconnectGen uint64
}

func newConnectionManager(dialer transport.Dialer, settings SettingsSource, d *Dispatcher, rooms *RoomRegistry, m *metrics.Client) *ConnectionManager {
	cm := &ConnectionManager{
		dialer:     dialer,
		settings:   settings,
		dispatcher: d,
		rooms:      rooms,
		metrics:    m,
		events:     make(chan transport.Event, 64),
		commands:   make(chan func()),
		state:      newStateFeed(),
		done:       make(chan struct{}),
	}
	cm.setState(ConnectionState{Kind: StateDisconnected})
	return cm
}

func (m *ConnectionManager) start(ctx context.Context) {
	m.ctx = ctx
	m.running.Store(true)
	go m.run(ctx)
}

func (m *ConnectionManager) run(ctx context.Context) {
	defer close(m.done)
	defer m.running.Store(false)
	defer m.shutdown()

	for {
		select {
		case ev := <-m.events:
			m.handleEvent(ev)
		case fn := <-m.commands:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

func (m *ConnectionManager) shutdown() {
	m.cancelReconnect()
	if m.conn != nil {
		m.conn.Cancel()
		m.conn = nil
	}
	m.setState(ConnectionState{Kind: StateDisconnected})
}

// do runs fn on the loop and waits for it.
func (m *ConnectionManager) do(ctx context.Context, fn func()) error {
	if !m.running.Load() {
		return ErrNotRunning
	}
	done := make(chan struct{})
	cmd := func() {
		fn()
		close(done)
	}
	select {
	case m.commands <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	case <-m.done:
		return ErrNotRunning
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.done:
		return ErrNotRunning
	}
}

func (m *ConnectionManager) Username() string {
	m.identityMu.RLock()
	defer m.identityMu.RUnlock()
	return m.identity
}

func (m *ConnectionManager) State() ConnectionState {
	return m.state.get()
}

func (m *ConnectionManager) States(ctx context.Context) <-chan ConnectionState {
	return m.state.subscribe(ctx)
}

// Connect sets the identity and opens a connection. It returns once the
// attempt started; the outcome shows up as state changes.
func (m *ConnectionManager) Connect(ctx context.Context, username string) error {
	m.identityMu.Lock()
	m.identity = username
	m.identityMu.Unlock()

	return m.do(ctx, func() {
		m.stopped = false
		m.connect()
	})
}

// Disconnect closes the connection for good: no reconnect follows until the
// next Connect.
func (m *ConnectionManager) Disconnect(ctx context.Context) error {
	return m.do(ctx, func() {
		m.stopped = true
		m.cancelReconnect()
		if m.conn != nil {
			if err := m.conn.Close(transport.CloseNormal, "User disconnected"); err != nil {
				log.Printf("WARNING: close handshake failed: %v", err)
				m.conn.Cancel()
			}
			m.conn = nil
		}
		m.setState(ConnectionState{Kind: StateDisconnected})
		m.rooms.Clear()
	})
}

// Transmit hands data to the live connection. It reports whether the
// transport accepted the frame.
func (m *ConnectionManager) Transmit(ctx context.Context, data []byte) (bool, error) {
	var (
		sent bool
		err  error
	)
	if derr := m.do(ctx, func() {
		if m.state.get().Kind != StateConnected || m.conn == nil {
			err = ErrNotConnected
			return
		}
		sent = m.conn.Send(data)
	}); derr != nil {
		return false, derr
	}
	return sent, err
}

// EnsureReconnect schedules a reconnect unless one is pending, the client is
// connected, or the user disconnected on purpose.
func (m *ConnectionManager) EnsureReconnect(ctx context.Context) error {
	return m.do(ctx, func() {
		if m.stopped || m.Username() == "" || m.reconnect != nil {
			return
		}
		if m.state.get().Kind == StateConnected {
			return
		}
		m.scheduleReconnect()
	})
}

// PendingReconnects returns the number of reconnect timers waiting to fire.
func (m *ConnectionManager) PendingReconnects(ctx context.Context) (int, error) {
	n := 0
	err := m.do(ctx, func() {
		if m.reconnect != nil {
			n = 1
		}
	})
	return n, err
}

func (m *ConnectionManager) connect() {
	m.cancelReconnect()
	if m.conn != nil {
		m.conn.Cancel()
		m.conn = nil
	}

	host, port := m.settings.Server()
	target := url.URL{
		Scheme:   "ws",
		Host:     net.JoinHostPort(host, strconv.Itoa(port)),
		Path:     config.ChatPath,
		RawQuery: url.Values{"username": {m.Username()}}.Encode(),
	}

	log.Printf("INFO: connecting to %s", target.String())
	m.setState(ConnectionState{Kind: StateConnecting})
	m.conn = m.dialer.Dial(m.ctx, target.String(), m.events)
}

func (m *ConnectionManager) handleEvent(ev transport.Event) {
	if m.conn == nil || ev.Conn != m.conn {
		return
	}

	switch ev.Kind {
	case transport.EventOpened:
		m.setState(ConnectionState{Kind: StateConnected})
		m.cancelReconnect()
		m.dispatcher.Notice(models.PublicRoomID, localization.KeyConnected)
		m.sendJoined()

	case transport.EventFrame:
		m.dispatcher.HandleFrame(m.Username(), ev.Data)

	case transport.EventFailed:
		reason := "connection failed"
		if ev.Err != nil {
			reason = ev.Err.Error()
		}
		log.Printf("ERROR: connection failed: %s", reason)
		m.conn.Cancel()
		m.conn = nil
		m.setState(ConnectionState{Kind: StateFailed, Reason: reason})
		m.dispatcher.Notice(m.rooms.CurrentOrPublic(), localization.KeyConnectionFailed, reason)
		m.scheduleReconnect()

	case transport.EventClosing:
		log.Printf("INFO: server is closing the connection (%d %s)", ev.Code, ev.Reason)
		if err := m.conn.Close(transport.CloseNormal, ""); err != nil {
			m.conn.Cancel()
		}
		m.conn = nil
		m.setState(ConnectionState{Kind: StateDisconnected})
		m.dispatcher.Notice(m.rooms.CurrentOrPublic(), localization.KeyDisconnected)
		if ev.Code != transport.CloseNormal {
			m.scheduleReconnect()
		}

	case transport.EventClosed:
		m.conn = nil
		m.setState(ConnectionState{Kind: StateDisconnected})
		if ev.Code != transport.CloseNormal {
			m.scheduleReconnect()
		}
	}
}

// sendJoined announces the user in the public room. It is not stored.
func (m *ConnectionManager) sendJoined() {
	joined := models.NewMessage(models.PublicRoomID, m.Username(), "joined", models.TypeText)
	data, err := json.Marshal(joined)
	if err != nil {
		log.Printf("ERROR: encode joined message: %v", err)
		return
	}
	if !m.conn.Send(data) {
		log.Printf("WARNING: joined message was not sent")
	}
}

func (m *ConnectionManager) scheduleReconnect() {
	m.cancelReconnect()

	interval := m.settings.ReconnectInterval()
	if interval <= 0 {
		interval = config.DefaultReconnectInterval
	}
	gen := m.reconnectGen
	m.reconnect = time.AfterFunc(interval, func() {
		select {
		case m.commands <- func() { m.reconnectFired(gen) }:
		case <-m.done:
		}
	})
	m.metrics.Reconnects.Inc()
	log.Printf("INFO: reconnecting in %s", interval)
}

func (m *ConnectionManager) cancelReconnect() {
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
	m.reconnectGen++
}

func (m *ConnectionManager) reconnectFired(gen uint64) {
	if gen != m.reconnectGen {
		return
	}
	m.reconnect = nil
	if m.state.get().Kind == StateConnected {
		return
	}
	m.connect()
}

func (m *ConnectionManager) setState(s ConnectionState) {
	m.state.set(s)
	for kind, name := range stateNames {
		v := 0.0
		if kind == s.Kind {
			v = 1
		}
		m.metrics.State.WithLabelValues(name).Set(v)
	}
}
