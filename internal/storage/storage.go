package storage

import (
	"context"

	"chatgogo/minichat/internal/models"

	"gorm.io/gorm"
)

// MessageGateway is the message half of the client's durable store.
type MessageGateway interface {
	// InsertOrUpdateMessage upserts by message id.
	InsertOrUpdateMessage(msg *models.Message) error
	// GetMessageByID returns nil, nil when the id is unknown.
	GetMessageByID(id int64) (*models.Message, error)
	// MessagesByRoom returns the room history ordered by timestamp, then id.
	MessagesByRoom(roomID string) ([]models.Message, error)
	MessagesAfter(roomID string, timestamp int64) ([]models.Message, error)
	// WatchRoom emits the full ordered history now and after every change to
	// the room, until ctx is done.
	WatchRoom(ctx context.Context, roomID string) <-chan []models.Message
	ClearRoomMessages(roomID string) error
}

// ContactGateway is the contact half of the client's durable store.
type ContactGateway interface {
	UpsertContact(contact *models.Contact) error
	// GetContactByUsername returns nil, nil when there is no such contact.
	GetContactByUsername(username string) (*models.Contact, error)
	ListContacts() ([]models.Contact, error)
	DeleteContact(username string) error
	UpdateContactLastMessage(username, message string, timestamp int64) error
	IncrementUnreadCount(username string) error
	ClearUnreadCount(username string) error
}

// RoomGateway keeps the rooms the user has opened.
type RoomGateway interface {
	SaveRoom(room *models.Room) error
	ListRooms() ([]models.Room, error)
}

// Storage is everything the chat client persists.
type Storage interface {
	MessageGateway
	ContactGateway
	RoomGateway
}

// UserStore is the server's account store.
type UserStore interface {
	// CreateUser returns ErrUsernameTaken when the name is registered already.
	CreateUser(username, password string) error
	Authenticate(username, password string) (bool, error)
	UserExists(username string) (bool, error)
	DeleteUser(username string) error
}

// Service implements Storage and UserStore on gorm.
type Service struct {
	DB  *gorm.DB
	Ctx context.Context

	watchers *watchHub
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB) *Service {
	return &Service{
		DB:       db,
		Ctx:      context.Background(),
		watchers: newWatchHub(),
	}
}

func (s *Service) db() *gorm.DB {
	return s.DB.WithContext(s.Ctx)
}
