// Package chatclient is the connection and message delivery engine of the
// chat client. A Service owns one persistent connection, multiplexes rooms
// over it, and keeps the local history in step with what the server echoes.
package chatclient

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"slices"
	"time"

	"chatgogo/minichat/internal/config"
	"chatgogo/minichat/internal/localization"
	"chatgogo/minichat/internal/metrics"
	"chatgogo/minichat/internal/models"
	"chatgogo/minichat/internal/storage"
	"chatgogo/minichat/internal/transport"
)

// Options wires a Service. Dialer, Store and Settings are required.
type Options struct {
	Dialer   transport.Dialer
	Store    storage.Storage
	Settings SettingsSource

	Localizer *localization.Localizer
	Language  string
	Metrics   *metrics.Client

	QueueCapacity    int
	AuthTimeout      time.Duration
	UserCheckTimeout time.Duration
}

// Service is the chat client. Create it with NewService, run it with Start.
type Service struct {
	store      storage.Storage
	rooms      *RoomRegistry
	messages   *MessageStore
	dispatcher *Dispatcher
	conn       *ConnectionManager
	sender     *OutboundSender

	cancel context.CancelFunc
}

func NewService(opts Options) (*Service, error) {
	if opts.Dialer == nil || opts.Store == nil || opts.Settings == nil {
		return nil, fmt.Errorf("chatclient: dialer, store and settings are required")
	}
	if opts.Localizer == nil {
		loc, err := localization.NewLocalizer()
		if err != nil {
			return nil, err
		}
		opts.Localizer = loc
	}
	if !slices.Contains(opts.Localizer.Languages(), opts.Language) {
		if opts.Language != "" {
			log.Printf("WARNING: no translations for %q, using %q", opts.Language, localization.DefaultLanguage)
		}
		opts.Language = localization.DefaultLanguage
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewClient(nil)
	}
	if opts.AuthTimeout <= 0 {
		opts.AuthTimeout = config.DefaultAuthTimeout
	}
	if opts.UserCheckTimeout <= 0 {
		opts.UserCheckTimeout = config.DefaultUserCheckTimeout
	}

	rooms := NewRoomRegistry(opts.QueueCapacity)
	rooms.public.Name = opts.Localizer.GetString(opts.Language, localization.KeyPublicRoom)
	rooms.onOverflow = func(string) {
		opts.Metrics.FramesDropped.WithLabelValues(metrics.DropOverflow).Inc()
	}
	messages := NewMessageStore(opts.Store)
	auth := &oneShot[string]{}
	userCheck := &oneShot[bool]{}

	d := &Dispatcher{
		rooms:     rooms,
		store:     messages,
		contacts:  opts.Store,
		auth:      auth,
		userCheck: userCheck,
		metrics:   opts.Metrics,
		loc:       opts.Localizer,
		lang:      opts.Language,
	}
	conn := newConnectionManager(opts.Dialer, opts.Settings, d, rooms, opts.Metrics)

	return &Service{
		store:      opts.Store,
		rooms:      rooms,
		messages:   messages,
		dispatcher: d,
		conn:       conn,
		sender: &OutboundSender{
			conn:             conn,
			store:            messages,
			auth:             auth,
			userCheck:        userCheck,
			metrics:          opts.Metrics,
			authTimeout:      opts.AuthTimeout,
			userCheckTimeout: opts.UserCheckTimeout,
		},
	}, nil
}

// Start runs the connection loop until ctx is done or Close is called.
func (s *Service) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.conn.start(ctx)
}

// Close stops the loop and drops the connection.
func (s *Service) Close() {
	if s.cancel != nil {
		s.cancel()
		<-s.conn.done
	}
}

// Connect joins the public room as username and starts connecting.
func (s *Service) Connect(ctx context.Context, username string) error {
	if !models.ValidUsername(username) {
		return ErrInvalidUsername
	}
	s.rooms.Join(s.rooms.public)
	return s.conn.Connect(ctx, username)
}

func (s *Service) Disconnect(ctx context.Context) error {
	return s.conn.Disconnect(ctx)
}

func (s *Service) Username() string { return s.conn.Username() }

func (s *Service) State() ConnectionState { return s.conn.State() }

// States streams connection state changes until ctx is done.
func (s *Service) States(ctx context.Context) <-chan ConnectionState {
	return s.conn.States(ctx)
}

func (s *Service) PendingReconnects(ctx context.Context) (int, error) {
	return s.conn.PendingReconnects(ctx)
}

func (s *Service) Send(ctx context.Context, msg models.Message) (models.Message, error) {
	return s.sender.Send(ctx, msg)
}

// SendText sends content to roomID as the current user.
func (s *Service) SendText(ctx context.Context, roomID, content string) (models.Message, error) {
	return s.Send(ctx, models.NewMessage(roomID, s.Username(), content, models.TypeText))
}

// SendImage sends already encoded image bytes as base64.
func (s *Service) SendImage(ctx context.Context, roomID string, image []byte) (models.Message, error) {
	content := base64.StdEncoding.EncodeToString(image)
	return s.Send(ctx, models.NewMessage(roomID, s.Username(), content, models.TypeImage))
}

func (s *Service) Login(ctx context.Context, username, password string) error {
	return s.sender.Login(ctx, username, password)
}

func (s *Service) Register(ctx context.Context, username, password string) error {
	return s.sender.Register(ctx, username, password)
}

func (s *Service) CheckUserExists(ctx context.Context, username string) (bool, error) {
	return s.sender.CheckUserExists(ctx, username)
}

// JoinRoom makes room current and remembers it. Opening a private room
// clears the peer's unread counter.
func (s *Service) JoinRoom(room models.Room) error {
	s.rooms.Join(room)
	if err := s.store.SaveRoom(&room); err != nil {
		return fmt.Errorf("save room %s: %w", room.ID, err)
	}
	if peer, ok := privatePeer(room.ID, s.Username()); ok && room.Kind == models.RoomPrivate {
		return s.store.ClearUnreadCount(peer)
	}
	return nil
}

// LeaveRoom returns to the public room.
func (s *Service) LeaveRoom() { s.rooms.Leave() }

func (s *Service) CurrentRoom() (models.Room, bool) { return s.rooms.Current() }

// CurrentRoomMessages streams live messages of whichever room is current.
func (s *Service) CurrentRoomMessages(ctx context.Context) <-chan models.Message {
	return s.rooms.CurrentRoomMessages(ctx)
}

// CreatePrivateRoom builds the room shared with peer.
func (s *Service) CreatePrivateRoom(peer string) (models.Room, error) {
	self := s.Username()
	if self == "" {
		return models.Room{}, ErrNotLoggedIn
	}
	if !models.ValidUsername(peer) {
		return models.Room{}, ErrInvalidUsername
	}
	return models.NewPrivateRoom(self, peer), nil
}

// Rooms lists the rooms opened so far.
func (s *Service) Rooms() ([]models.Room, error) {
	return s.store.ListRooms()
}

func (s *Service) MessagesForRoom(ctx context.Context, roomID string) <-chan []models.Message {
	return s.messages.MessagesForRoom(ctx, roomID)
}

func (s *Service) MessagesAfter(roomID string, timestamp int64) ([]models.Message, error) {
	return s.messages.MessagesAfter(roomID, timestamp)
}

func (s *Service) ClearRoom(roomID string) error {
	return s.messages.Clear(roomID)
}
