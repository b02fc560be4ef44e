package chatclient

import (
	"context"
	"log"
	"sync"

	"chatgogo/minichat/internal/models"
)

type roomQueue struct {
	items  []models.Message
	notify chan struct{}
}

func (q *roomQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// RoomRegistry owns the joined rooms and one inbound queue per room.
// Queues are created on first join and live until Clear. Each queue holds at
// most capacity messages; when full the oldest message is dropped.
type RoomRegistry struct {
	mu       sync.Mutex
	capacity int
	queues   map[string]*roomQueue
	current  *models.Room
	// public is joined by Leave; its Name is localized by the service.
	public models.Room
	// changed is closed and replaced whenever current changes.
	changed chan struct{}

	onOverflow func(roomID string)
}

func NewRoomRegistry(capacity int) *RoomRegistry {
	if capacity <= 0 {
		capacity = 1000
	}
	return &RoomRegistry{
		capacity: capacity,
		queues:   make(map[string]*roomQueue),
		changed:  make(chan struct{}),
		public:   models.PublicRoom(),
	}
}

// Join makes room current and creates its queue if needed. Joining a room
// again keeps everything already queued for it.
func (r *RoomRegistry) Join(room models.Room) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.queues[room.ID]; !ok {
		r.queues[room.ID] = &roomQueue{notify: make(chan struct{}, 1)}
	}
	r.setCurrent(&room)
}

// Leave switches back to the public room. Queues are kept.
func (r *RoomRegistry) Leave() {
	r.Join(r.public)
}

// Clear drops every queue and the current room.
func (r *RoomRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queues = make(map[string]*roomQueue)
	r.setCurrent(nil)
}

func (r *RoomRegistry) setCurrent(room *models.Room) {
	r.current = room
	close(r.changed)
	r.changed = make(chan struct{})
}

// Current returns the joined room, if any.
func (r *RoomRegistry) Current() (models.Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return models.Room{}, false
	}
	return *r.current, true
}

// CurrentOrPublic returns the id of the current room, or the public room id.
func (r *RoomRegistry) CurrentOrPublic() string {
	if room, ok := r.Current(); ok {
		return room.ID
	}
	return models.PublicRoomID
}

// Pending returns how many messages wait in the queue of roomID.
func (r *RoomRegistry) Pending(roomID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if q, ok := r.queues[roomID]; ok {
		return len(q.items)
	}
	return 0
}

// Enqueue appends msg to its room's queue. It returns false when the room has
// no queue.
func (r *RoomRegistry) Enqueue(msg models.Message) bool {
	r.mu.Lock()
	q, ok := r.queues[msg.RoomID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	overflow := len(q.items) >= r.capacity
	if overflow {
		q.items[0] = models.Message{}
		q.items = q.items[1:]
	}
	q.items = append(q.items, msg)
	q.signal()
	r.mu.Unlock()

	if overflow {
		log.Printf("WARNING: queue of room %s is full, dropped its oldest message", msg.RoomID)
		if r.onOverflow != nil {
			r.onOverflow(msg.RoomID)
		}
	}
	return true
}

func (r *RoomRegistry) pushFront(roomID string, q *roomQueue, msg models.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.queues[roomID] != q {
		return
	}
	q.items = append([]models.Message{msg}, q.items...)
	q.signal()
}

// take pops the head of the current room's queue.
func (r *RoomRegistry) take() (roomID string, q *roomQueue, msg models.Message, ok bool, changed <-chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	changed = r.changed
	if r.current == nil {
		return "", nil, msg, false, changed
	}
	roomID = r.current.ID
	q = r.queues[roomID]
	if q == nil || len(q.items) == 0 {
		return roomID, q, msg, false, changed
	}
	msg = q.items[0]
	q.items[0] = models.Message{}
	q.items = q.items[1:]
	return roomID, q, msg, true, changed
}

// CurrentRoomMessages streams the queue of whichever room is current,
// following room switches immediately. A message taken from a room that stops
// being current before delivery goes back to the head of its queue.
// Messages are consumed: each one reaches a single subscriber.
func (r *RoomRegistry) CurrentRoomMessages(ctx context.Context) <-chan models.Message {
	out := make(chan models.Message)
	go func() {
		defer close(out)
		for {
			roomID, q, msg, ok, changed := r.take()
			if ok {
				select {
				case <-changed:
					r.pushFront(roomID, q, msg)
					continue
				default:
				}
				select {
				case out <- msg:
				case <-changed:
					r.pushFront(roomID, q, msg)
				case <-ctx.Done():
					r.pushFront(roomID, q, msg)
					return
				}
				continue
			}

			var notify chan struct{}
			if q != nil {
				notify = q.notify
			}
			select {
			case <-notify:
			case <-changed:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
