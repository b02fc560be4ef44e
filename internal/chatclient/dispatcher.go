package chatclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"chatgogo/minichat/internal/localization"
	"chatgogo/minichat/internal/metrics"
	"chatgogo/minichat/internal/models"
	"chatgogo/minichat/internal/storage"
)

// Dispatcher routes decoded inbound messages. It runs on the connection loop.
type Dispatcher struct {
	rooms     *RoomRegistry
	store     *MessageStore
	contacts  storage.ContactGateway
	auth      *oneShot[string]
	userCheck *oneShot[bool]
	metrics   *metrics.Client

	loc  *localization.Localizer
	lang string
}

// HandleFrame decodes one frame and dispatches it. Malformed frames are
// logged and dropped.
func (d *Dispatcher) HandleFrame(self string, data []byte) {
	d.metrics.FramesReceived.Inc()

	var msg models.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("WARNING: dropped malformed frame (%d bytes): %v", len(data), err)
		d.metrics.FramesDropped.WithLabelValues(metrics.DropDecode).Inc()
		return
	}
	if err := d.Dispatch(self, msg); err != nil {
		log.Printf("ERROR: Failed to handle %s message %d for room %s: %v", msg.Type, msg.ID, msg.RoomID, err)
	}
}

// Dispatch routes msg by type. self is the local username.
func (d *Dispatcher) Dispatch(self string, msg models.Message) error {
	switch msg.Type {
	case models.TypeAuthResponse:
		if !d.auth.deliver(msg.Content) {
			log.Printf("WARNING: auth response %q arrived with no login pending", msg.Content)
		}
		return nil

	case models.TypeUserResponse:
		exists := strings.EqualFold(strings.TrimSpace(msg.Content), "true")
		if !d.userCheck.deliver(exists) {
			log.Printf("WARNING: user check response arrived with no lookup pending")
		}
		return nil

	case models.TypeContactAdded:
		return d.contactAdded(msg)

	case models.TypeCheckUser:
		// Clients do not serve lookups; show it as a notice.
		msg.Type = models.TypeSystemNotification
		return d.chat(self, msg)

	case models.TypeText, models.TypeImage, models.TypeSystemNotification:
		return d.chat(self, msg)

	case models.TypeLogin, models.TypeRegister:
		return d.deliver(msg)

	default:
		return d.deliver(msg)
	}
}

func (d *Dispatcher) chat(self string, msg models.Message) error {
	if self != "" && msg.SenderID == self {
		return d.store.Acknowledge(msg.ID)
	}
	// Peers put their SENDING copy on the wire.
	msg.Status = models.StatusSent

	err := d.deliver(msg)
	if peer, ok := privatePeer(msg.RoomID, self); ok && peer == msg.SenderID {
		err = errors.Join(err, d.touchContact(peer, msg))
	}
	return err
}

// deliver persists msg if its type belongs in history and appends it to its
// room queue. A persistence error is returned but the queue is still fed.
func (d *Dispatcher) deliver(msg models.Message) error {
	var err error
	if msg.Type.Persistable() {
		err = d.store.Save(msg)
	}
	d.enqueue(msg)
	return err
}

func (d *Dispatcher) enqueue(msg models.Message) {
	if d.rooms.Enqueue(msg) {
		return
	}
	log.Printf("INFO: room %s not joined, message %d kept in history only", msg.RoomID, msg.ID)
	d.metrics.FramesDropped.WithLabelValues(metrics.DropNotJoined).Inc()
}

func (d *Dispatcher) contactAdded(msg models.Message) error {
	adder := msg.SenderID
	existing, err := d.contacts.GetContactByUsername(adder)
	if err != nil {
		return fmt.Errorf("look up contact %s: %w", adder, err)
	}
	if existing == nil {
		contact := models.Contact{
			Username: adder,
			Nickname: adder,
			AddedAt:  time.Now().UnixMilli(),
		}
		if err := d.contacts.UpsertContact(&contact); err != nil {
			return fmt.Errorf("create contact %s: %w", adder, err)
		}
	}

	// The server addresses it to the system room, which is never joined.
	msg.RoomID = d.rooms.CurrentOrPublic()
	msg.SenderID = models.SystemSender
	msg.Content = d.loc.Format(d.lang, localization.KeyContactAdded, adder)
	msg.Status = models.StatusSent
	return d.deliver(msg)
}

func (d *Dispatcher) touchContact(peer string, msg models.Message) error {
	preview := msg.Content
	if msg.Type == models.TypeImage {
		preview = "[image]"
	}
	if err := d.contacts.UpdateContactLastMessage(peer, preview, msg.Timestamp); err != nil {
		return fmt.Errorf("update contact %s: %w", peer, err)
	}
	if room, ok := d.rooms.Current(); ok && room.ID == msg.RoomID {
		return nil
	}
	if err := d.contacts.IncrementUnreadCount(peer); err != nil {
		return fmt.Errorf("count unread for %s: %w", peer, err)
	}
	return nil
}

// Notice emits a localized local notice into roomID.
func (d *Dispatcher) Notice(roomID, key string, args ...interface{}) {
	content := d.loc.Format(d.lang, key, args...)
	msg := models.NewMessage(roomID, models.SystemSender, content, models.TypeSystemNotification)
	msg.Status = models.StatusSent
	if err := d.deliver(msg); err != nil {
		log.Printf("ERROR: Failed to store notice for room %s: %v", roomID, err)
	}
}

// privatePeer returns the other participant of a private room id.
func privatePeer(roomID, self string) (string, bool) {
	a, b, ok := models.PrivateRoomParticipants(roomID)
	switch {
	case !ok:
		return "", false
	case a == self:
		return b, true
	case b == self:
		return a, true
	default:
		return "", false
	}
}
