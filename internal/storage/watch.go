package storage

import (
	"context"
	"log"
	"sync"

	"chatgogo/minichat/internal/models"
)

// watchHub wakes room watchers after writes. Signals coalesce: a watcher that
// is busy re-reading sees at most one pending wakeup.
type watchHub struct {
	mu    sync.Mutex
	rooms map[string]map[chan struct{}]struct{}
}

func newWatchHub() *watchHub {
	return &watchHub{rooms: make(map[string]map[chan struct{}]struct{})}
}

func (h *watchHub) add(roomID string) chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan struct{}, 1)
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[chan struct{}]struct{})
	}
	h.rooms[roomID][ch] = struct{}{}
	return ch
}

func (h *watchHub) remove(roomID string, ch chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms[roomID], ch)
	if len(h.rooms[roomID]) == 0 {
		delete(h.rooms, roomID)
	}
}

func (h *watchHub) notify(roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.rooms[roomID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// WatchRoom streams snapshots of the room history. The channel is closed
// when ctx is done.
func (s *Service) WatchRoom(ctx context.Context, roomID string) <-chan []models.Message {
	out := make(chan []models.Message, 1)
	wake := s.watchers.add(roomID)

	go func() {
		defer close(out)
		defer s.watchers.remove(roomID, wake)

		for {
			history, err := s.MessagesByRoom(roomID)
			if err != nil {
				log.Printf("WARNING: watch of room %s skipped a snapshot: %v", roomID, err)
			} else {
				select {
				case out <- history:
				case <-ctx.Done():
					return
				}
			}

			select {
			case <-wake:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
