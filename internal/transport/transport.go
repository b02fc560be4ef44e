// Package transport is the message-oriented full-duplex connection the chat
// client runs over. Connections report everything that happens to them as
// Events on a single channel so that one loop can own the connection state.
package transport

import (
	"context"
	"fmt"
)

// EventKind tags an Event.
type EventKind int

const (
	EventOpened EventKind = iota
	EventFrame
	EventFailed
	EventClosing
	EventClosed
)

func (k EventKind) String() string {
	switch k {
	case EventOpened:
		return "opened"
	case EventFrame:
		return "frame"
	case EventFailed:
		return "failed"
	case EventClosing:
		return "closing"
	case EventClosed:
		return "closed"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is one thing that happened to a Conn. Conn identifies the source so
// that a consumer can ignore events of connections it has already dropped.
type Event struct {
	Kind EventKind
	Conn Conn
	// Data is set for EventFrame.
	Data []byte
	// Err is set for EventFailed.
	Err error
	// Code and Reason are set for EventClosing and EventClosed.
	Code   int
	Reason string
}

// Standard close codes used by the chat protocol.
const (
	CloseNormal    = 1000
	CloseGoingAway = 1001
	CloseAbnormal  = 1006
)

// Conn is a live or opening connection.
type Conn interface {
	// Send queues a frame. It reports false when the frame cannot be queued,
	// for example before the connection opened or after it failed.
	Send(data []byte) bool
	// Close starts a graceful close handshake with code and reason.
	Close(code int, reason string) error
	// Cancel drops the connection immediately without a handshake.
	Cancel()
}

// Dialer opens connections. Dial must not block: the outcome is delivered on
// events, starting with EventOpened or EventFailed.
type Dialer interface {
	Dial(ctx context.Context, target string, events chan<- Event) Conn
}
