package chatclient

import (
	"context"
	"sync"
)

// StateKind is the phase of the connection state machine.
type StateKind int

const (
	StateDisconnected StateKind = iota
	StateConnecting
	StateConnected
	StateFailed
)

var stateNames = map[StateKind]string{
	StateDisconnected: "DISCONNECTED",
	StateConnecting:   "CONNECTING",
	StateConnected:    "CONNECTED",
	StateFailed:       "FAILED",
}

func (k StateKind) String() string { return stateNames[k] }

// ConnectionState is a StateKind plus the failure reason for StateFailed.
type ConnectionState struct {
	Kind   StateKind
	Reason string
}

func (s ConnectionState) String() string {
	if s.Kind == StateFailed && s.Reason != "" {
		return s.Kind.String() + "(" + s.Reason + ")"
	}
	return s.Kind.String()
}

// stateFeed publishes the latest state. Slow subscribers skip intermediate
// states; they always end up seeing the most recent one.
type stateFeed struct {
	mu      sync.Mutex
	current ConnectionState
	subs    map[chan ConnectionState]struct{}
}

func newStateFeed() *stateFeed {
	return &stateFeed{subs: make(map[chan ConnectionState]struct{})}
}

func (f *stateFeed) get() ConnectionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *stateFeed) set(s ConnectionState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = s
	for ch := range f.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

func (f *stateFeed) subscribe(ctx context.Context) <-chan ConnectionState {
	ch := make(chan ConnectionState, 1)
	f.mu.Lock()
	ch <- f.current
	f.subs[ch] = struct{}{}
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.subs, ch)
		close(ch)
		f.mu.Unlock()
	}()
	return ch
}
