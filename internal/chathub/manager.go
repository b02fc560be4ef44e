package chathub

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"chatgogo/minichat/internal/localization"
	"chatgogo/minichat/internal/metrics"
	"chatgogo/minichat/internal/models"
	"chatgogo/minichat/internal/storage"
)

// Auth responses sent back on AUTH_RESPONSE frames.
const (
	LoginSuccess        = "LOGIN_SUCCESS"
	LoginFailed         = "LOGIN_FAILED"
	RegistrationSuccess = "REGISTRATION_SUCCESS"
	UsernameExists      = "USERNAME_EXISTS"
	AuthError           = "AUTH_ERROR"
)

// reply is a control-plane answer for a single connection.
type reply struct {
	client  Client
	message models.Message
}

// ManagerService is the hub: it owns the registered clients and routes every
// frame. Only the Run goroutine touches Clients.
type ManagerService struct {
	Clients map[string]Client

	IncomingCh   chan ClientMessage
	RegisterCh   chan Client
	UnregisterCh chan Client

	Users   storage.UserStore
	Broker  Broker
	Metrics *metrics.Server

	Localizer *localization.Localizer
	Language  string

	replies   chan reply
	connected atomic.Int64
	done      chan struct{}
}

// NewManagerService creates a hub. A nil broker keeps fan-out in process.
func NewManagerService(users storage.UserStore, broker Broker, m *metrics.Server, loc *localization.Localizer) *ManagerService {
	if broker == nil {
		broker = NewLocalBroker()
	}
	if m == nil {
		m = metrics.NewServer(nil)
	}
	return &ManagerService{
		Clients:      make(map[string]Client),
		IncomingCh:   make(chan ClientMessage),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		Users:        users,
		Broker:       broker,
		Metrics:      m,
		Localizer:    loc,
		Language:     localization.DefaultLanguage,
		replies:      make(chan reply, 64),
		done:         make(chan struct{}),
	}
}

// ConnectedClients is safe to call from any goroutine.
func (m *ManagerService) ConnectedClients() int {
	return int(m.connected.Load())
}

// Done is closed when Run returns.
func (m *ManagerService) Done() <-chan struct{} {
	return m.done
}

// Submit hands a frame read by a client to the hub.
func (m *ManagerService) Submit(c Client, msg models.Message) bool {
	select {
	case m.IncomingCh <- ClientMessage{Client: c, Message: msg}:
		return true
	case <-m.done:
		return false
	}
}

// Unregister removes c. It is safe to call after Run returned.
func (m *ManagerService) Unregister(c Client) {
	select {
	case m.UnregisterCh <- c:
	case <-m.done:
	}
}

// Run processes registrations, frames and broker traffic until ctx is done.
func (m *ManagerService) Run(ctx context.Context) error {
	defer close(m.done)

	broadcasts, err := m.Broker.Subscribe(ctx)
	if err != nil {
		return err
	}
	log.Println("INFO: chat hub started.")

	for {
		select {
		case client := <-m.RegisterCh:
			m.register(ctx, client)

		case client := <-m.UnregisterCh:
			m.unregister(ctx, client)

		case in := <-m.IncomingCh:
			m.handleIncoming(ctx, in)

		case r := <-m.replies:
			m.reply(r)

		case msg, ok := <-broadcasts:
			if !ok {
				m.closeAll()
				if ctx.Err() != nil {
					return nil
				}
				return ErrBrokerClosed
			}
			m.deliver(msg)

		case <-ctx.Done():
			m.closeAll()
			return nil
		}
	}
}

func (m *ManagerService) register(ctx context.Context, client Client) {
	id := client.GetUserID()
	if !models.ValidUsername(id) {
		log.Printf("WARNING: refusing connection with invalid username %q.", id)
		client.Close()
		return
	}
	if old, ok := m.Clients[id]; ok && old != client {
		log.Printf("WARNING: %s connected again, closing the previous connection.", id)
		old.Close()
		m.connected.Add(-1)
		m.Metrics.ConnectedClients.Dec()
	}
	m.Clients[id] = client
	m.connected.Add(1)
	m.Metrics.ConnectedClients.Inc()
	log.Printf("INFO: client %s registered.", id)

	m.announce(ctx, localization.KeyUserJoined, id)
}

func (m *ManagerService) unregister(ctx context.Context, client Client) {
	id := client.GetUserID()
	current, ok := m.Clients[id]
	client.Close()
	if !ok || current != client {
		return
	}
	delete(m.Clients, id)
	m.connected.Add(-1)
	m.Metrics.ConnectedClients.Dec()
	log.Printf("INFO: client %s unregistered.", id)

	m.announce(ctx, localization.KeyUserLeft, id)
}

func (m *ManagerService) closeAll() {
	for id, client := range m.Clients {
		client.Close()
		delete(m.Clients, id)
	}
	m.connected.Store(0)
	m.Metrics.ConnectedClients.Set(0)
}

func (m *ManagerService) announce(ctx context.Context, key, username string) {
	content := username
	if m.Localizer != nil {
		content = m.Localizer.Format(m.Language, key, username)
	}
	msg := models.NewMessage(models.PublicRoomID, models.SystemSender, content, models.TypeSystemNotification)
	msg.Status = models.StatusSent
	m.publish(ctx, msg)
}

func (m *ManagerService) publish(ctx context.Context, msg models.Message) {
	if err := m.Broker.Publish(ctx, msg); err != nil {
		log.Printf("ERROR: Failed to publish message %d to room %s: %v", msg.ID, msg.RoomID, err)
	}
}

func (m *ManagerService) handleIncoming(ctx context.Context, in ClientMessage) {
	msg := in.Message
	sender := in.Client.GetUserID()

	switch msg.Type {
	case models.TypeLogin, models.TypeRegister:
		go m.authenticate(ctx, in.Client, msg)

	case models.TypeCheckUser:
		go m.checkUser(ctx, in.Client, msg)

	case models.TypeContactAdded:
		msg.SenderID = sender
		m.publish(ctx, msg)

	case models.TypeText, models.TypeImage, models.TypeSystemNotification:
		if !models.IsParticipant(msg.RoomID, sender) {
			log.Printf("WARNING: %s is not a participant of room %q, message %d dropped.", sender, msg.RoomID, msg.ID)
			return
		}
		msg.SenderID = sender
		m.publish(ctx, msg)

	case models.TypeUserResponse, models.TypeAuthResponse:
		log.Printf("WARNING: client %s sent a server-only %s frame, dropped.", sender, msg.Type)

	default:
		log.Printf("WARNING: client %s sent unknown message type %q, dropped.", sender, msg.Type)
	}
}

// authenticate runs off the hub goroutine: password hashing is slow.
func (m *ManagerService) authenticate(ctx context.Context, client Client, msg models.Message) {
	result := AuthError
	username, password, ok := strings.Cut(msg.Content, ":")

	switch {
	case !ok || !models.ValidUsername(username) || password == "":
		log.Printf("WARNING: malformed %s frame from %s.", msg.Type, client.GetUserID())

	case msg.Type == models.TypeLogin:
		valid, err := m.Users.Authenticate(username, password)
		switch {
		case err != nil:
			log.Printf("ERROR: login of %s failed: %v", username, err)
		case valid:
			result = LoginSuccess
		default:
			result = LoginFailed
		}

	default:
		err := m.Users.CreateUser(username, password)
		switch {
		case err == nil:
			result = RegistrationSuccess
		case errors.Is(err, storage.ErrUsernameTaken):
			result = UsernameExists
		default:
			log.Printf("ERROR: registration of %s failed: %v", username, err)
		}
	}

	m.Metrics.AuthAttempts.WithLabelValues(result).Inc()
	resp := models.NewMessage(models.AuthRoomID, models.SystemSender, result, models.TypeAuthResponse)
	m.queueReply(ctx, client, resp)
}

func (m *ManagerService) checkUser(ctx context.Context, client Client, msg models.Message) {
	exists, err := m.Users.UserExists(strings.TrimSpace(msg.Content))
	if err != nil {
		log.Printf("ERROR: lookup of %q failed: %v", msg.Content, err)
	}
	content := "false"
	if exists {
		content = "true"
	}
	resp := models.NewMessage(models.SystemRoomID, models.SystemSender, content, models.TypeUserResponse)
	m.queueReply(ctx, client, resp)
}

func (m *ManagerService) queueReply(ctx context.Context, client Client, msg models.Message) {
	select {
	case m.replies <- reply{client: client, message: msg}:
	case <-ctx.Done():
	case <-m.done:
	}
}

// reply answers a single connection if it is still registered.
func (m *ManagerService) reply(r reply) {
	if m.Clients[r.client.GetUserID()] != r.client {
		return
	}
	m.send(r.client, r.message)
}

// deliver sends a broadcast message to every local client taking part in it.
func (m *ManagerService) deliver(msg models.Message) {
	delivered := false
	for id, client := range m.Clients {
		if !recipient(msg, id) {
			continue
		}
		m.send(client, msg)
		delivered = true
	}
	if delivered && msg.Type != models.TypeContactAdded {
		m.Metrics.Broadcasts.Inc()
	}
}

func recipient(msg models.Message, username string) bool {
	if msg.Type == models.TypeContactAdded {
		return msg.Content == username
	}
	return models.IsParticipant(msg.RoomID, username)
}

// send drops clients that cannot keep up.
func (m *ManagerService) send(client Client, msg models.Message) {
	select {
	case client.GetSendChannel() <- msg:
	default:
		id := client.GetUserID()
		log.Printf("WARNING: client %s is too slow, disconnecting.", id)
		if m.Clients[id] == client {
			delete(m.Clients, id)
			m.connected.Add(-1)
			m.Metrics.ConnectedClients.Dec()
		}
		client.Close()
	}
}
