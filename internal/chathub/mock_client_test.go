package chathub_test

import (
	"sync"
	"testing"
	"time"

	"chatgogo/minichat/internal/models"

	"github.com/stretchr/testify/require"
)

type MockClient struct {
	userID      string
	RecvChannel chan models.Message

	mu     sync.Mutex
	closed bool
}

func newMockClient(userID string) *MockClient {
	return newMockClientBuffered(userID, 16)
}

func newMockClientBuffered(userID string, size int) *MockClient {
	return &MockClient{
		userID:      userID,
		RecvChannel: make(chan models.Message, size),
	}
}

func (c *MockClient) GetUserID() string                     { return c.userID }
func (c *MockClient) GetSendChannel() chan<- models.Message { return c.RecvChannel }
func (c *MockClient) Run()                                  {}

func (c *MockClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *MockClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// next waits for the next frame delivered to the client.
func (c *MockClient) next(t *testing.T) models.Message {
	t.Helper()
	select {
	case msg := <-c.RecvChannel:
		return msg
	case <-time.After(time.Second):
		require.FailNow(t, "no message delivered", "client %s", c.userID)
		return models.Message{}
	}
}

// nextOfType skips frames until one of type typ arrives.
func (c *MockClient) nextOfType(t *testing.T, typ models.MessageType) models.Message {
	t.Helper()
	for {
		msg := c.next(t)
		if msg.Type == typ {
			return msg
		}
	}
}

// drain discards whatever is queued.
func (c *MockClient) drain() {
	for {
		select {
		case <-c.RecvChannel:
		default:
			return
		}
	}
}

func (c *MockClient) assertQuiet(t *testing.T) {
	t.Helper()
	select {
	case msg := <-c.RecvChannel:
		require.FailNow(t, "unexpected message", "client %s got %+v", c.userID, msg)
	case <-time.After(100 * time.Millisecond):
	}
}
