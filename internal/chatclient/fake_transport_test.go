package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"chatgogo/minichat/internal/models"
	"chatgogo/minichat/internal/storage"
	"chatgogo/minichat/internal/transport"

	"github.com/stretchr/testify/require"
)

// fakeConn records frames and lets the test play the server.
type fakeConn struct {
	events chan<- transport.Event

	mu        sync.Mutex
	sent      [][]byte
	reject    bool
	closed    bool
	closeCode int
	cancelled bool
}

func (c *fakeConn) Send(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reject || c.closed || c.cancelled {
		return false
	}
	c.sent = append(c.sent, data)
	return true
}

func (c *fakeConn) Close(code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.closeCode = code
	return nil
}

func (c *fakeConn) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled = true
}

func (c *fakeConn) setReject(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reject = v
}

func (c *fakeConn) closeState() (closed bool, code int, cancelled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed, c.closeCode, c.cancelled
}

func (c *fakeConn) frames() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Message, 0, len(c.sent))
	for _, data := range c.sent {
		var m models.Message
		if json.Unmarshal(data, &m) == nil {
			out = append(out, m)
		}
	}
	return out
}

func (c *fakeConn) lastFrame(t models.MessageType) (models.Message, bool) {
	frames := c.frames()
	for i := len(frames) - 1; i >= 0; i-- {
		if frames[i].Type == t {
			return frames[i], true
		}
	}
	return models.Message{}, false
}

func (c *fakeConn) open() { c.events <- transport.Event{Kind: transport.EventOpened, Conn: c} }
func (c *fakeConn) fail(err error) {
	c.events <- transport.Event{Kind: transport.EventFailed, Conn: c, Err: err}
}
func (c *fakeConn) closing(code int) {
	c.events <- transport.Event{Kind: transport.EventClosing, Conn: c, Code: code}
}
func (c *fakeConn) closedWith(code int) {
	c.events <- transport.Event{Kind: transport.EventClosed, Conn: c, Code: code}
}
func (c *fakeConn) raw(data []byte) {
	c.events <- transport.Event{Kind: transport.EventFrame, Conn: c, Data: data}
}
func (c *fakeConn) deliver(m models.Message) {
	data, _ := json.Marshal(m)
	c.raw(data)
}

type fakeDialer struct {
	mu      sync.Mutex
	conns   []*fakeConn
	targets []string
}

func (d *fakeDialer) Dial(_ context.Context, target string, events chan<- transport.Event) transport.Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := &fakeConn{events: events}
	d.conns = append(d.conns, c)
	d.targets = append(d.targets, target)
	return c
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *fakeDialer) target(i int) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.targets[i]
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

type staticSettings struct {
	host     string
	port     int
	interval time.Duration
}

func (s staticSettings) Server() (string, int)            { return s.host, s.port }
func (s staticSettings) ReconnectInterval() time.Duration { return s.interval }

type harness struct {
	svc    *Service
	dialer *fakeDialer
	store  *storage.Service
}

func newHarness(t *testing.T, interval time.Duration) *harness {
	t.Helper()
	return newHarnessWith(t, interval, nil)
}

func newHarnessWith(t *testing.T, interval time.Duration, configure func(*Options)) *harness {
	t.Helper()
	db, err := storage.Open(storage.DriverSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, storage.MigrateClient(db))
	store := storage.NewStorageService(db)

	dialer := &fakeDialer{}
	opts := Options{
		Dialer:           dialer,
		Store:            store,
		Settings:         staticSettings{host: "chat.test", port: 8080, interval: interval},
		AuthTimeout:      200 * time.Millisecond,
		UserCheckTimeout: 200 * time.Millisecond,
	}
	if configure != nil {
		configure(&opts)
	}
	svc, err := NewService(opts)
	require.NoError(t, err)
	svc.Start(context.Background())
	t.Cleanup(svc.Close)

	return &harness{svc: svc, dialer: dialer, store: store}
}

// connect logs in as username and completes the handshake.
func (h *harness) connect(t *testing.T, username string) *fakeConn {
	t.Helper()
	require.NoError(t, h.svc.Connect(context.Background(), username))
	conn := h.dialer.last()
	require.NotNil(t, conn)
	conn.open()
	h.waitState(t, StateConnected)
	return conn
}

func (h *harness) waitState(t *testing.T, kind StateKind) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.svc.State().Kind == kind
	}, 2*time.Second, 5*time.Millisecond, "state never became %s", kind)
}

// sync waits until the loop processed everything queued before it.
func (h *harness) sync(t *testing.T) {
	t.Helper()
	_, err := h.svc.PendingReconnects(context.Background())
	require.NoError(t, err)
}

func (h *harness) rows(t *testing.T, roomID string) []models.Message {
	t.Helper()
	rows, err := h.store.MessagesByRoom(roomID)
	require.NoError(t, err)
	return rows
}

var errNetwork = errors.New("network is unreachable")
