package chatclient

import "sync"

// oneShot is a single outstanding wait for a control-plane reply.
type oneShot[T any] struct {
	mu sync.Mutex
	ch chan T
}

// begin registers the wait. It fails when another wait is outstanding.
func (o *oneShot[T]) begin() (chan T, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ch != nil {
		return nil, false
	}
	o.ch = make(chan T, 1)
	return o.ch, true
}

func (o *oneShot[T]) end(ch chan T) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ch == ch {
		o.ch = nil
	}
}

// deliver hands v to the outstanding wait. Replies nobody waits for are
// dropped and reported as false.
func (o *oneShot[T]) deliver(v T) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ch == nil {
		return false
	}
	select {
	case o.ch <- v:
		return true
	default:
		return false
	}
}
