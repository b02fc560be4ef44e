package chatclient

import (
	"context"

	"chatgogo/minichat/internal/models"

	"github.com/stretchr/testify/mock"
)

// MockStorage is a mock implementation of the storage.Storage interface.
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) InsertOrUpdateMessage(msg *models.Message) error {
	args := m.Called(msg)
	return args.Error(0)
}

func (m *MockStorage) GetMessageByID(id int64) (*models.Message, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockStorage) MessagesByRoom(roomID string) ([]models.Message, error) {
	args := m.Called(roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockStorage) MessagesAfter(roomID string, timestamp int64) ([]models.Message, error) {
	args := m.Called(roomID, timestamp)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockStorage) WatchRoom(ctx context.Context, roomID string) <-chan []models.Message {
	args := m.Called(ctx, roomID)
	return args.Get(0).(<-chan []models.Message)
}

func (m *MockStorage) ClearRoomMessages(roomID string) error {
	args := m.Called(roomID)
	return args.Error(0)
}

func (m *MockStorage) UpsertContact(contact *models.Contact) error {
	args := m.Called(contact)
	return args.Error(0)
}

func (m *MockStorage) GetContactByUsername(username string) (*models.Contact, error) {
	args := m.Called(username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Contact), args.Error(1)
}

func (m *MockStorage) ListContacts() ([]models.Contact, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Contact), args.Error(1)
}

func (m *MockStorage) DeleteContact(username string) error {
	args := m.Called(username)
	return args.Error(0)
}

func (m *MockStorage) UpdateContactLastMessage(username, message string, timestamp int64) error {
	args := m.Called(username, message, timestamp)
	return args.Error(0)
}

func (m *MockStorage) IncrementUnreadCount(username string) error {
	args := m.Called(username)
	return args.Error(0)
}

func (m *MockStorage) ClearUnreadCount(username string) error {
	args := m.Called(username)
	return args.Error(0)
}

func (m *MockStorage) SaveRoom(room *models.Room) error {
	args := m.Called(room)
	return args.Error(0)
}

func (m *MockStorage) ListRooms() ([]models.Room, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Room), args.Error(1)
}
