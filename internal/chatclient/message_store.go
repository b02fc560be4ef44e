package chatclient

import (
	"context"
	"fmt"

	"chatgogo/minichat/internal/models"
	"chatgogo/minichat/internal/storage"
)

// MessageStore reconciles messages seen on the wire with the durable store.
// It is the only writer of message status.
type MessageStore struct {
	gateway storage.MessageGateway
}

func NewMessageStore(gateway storage.MessageGateway) *MessageStore {
	return &MessageStore{gateway: gateway}
}

// Save inserts msg if its id is new and rewrites it when only the status
// moved. Saving the same message twice leaves one row.
func (s *MessageStore) Save(msg models.Message) error {
	existing, err := s.gateway.GetMessageByID(msg.ID)
	if err != nil {
		return fmt.Errorf("load message %d: %w", msg.ID, err)
	}
	if existing != nil && existing.Status == msg.Status {
		return nil
	}
	if err := s.gateway.InsertOrUpdateMessage(&msg); err != nil {
		return fmt.Errorf("save message %d: %w", msg.ID, err)
	}
	return nil
}

// UpdateStatus persists msg with status replaced and returns the stored copy.
func (s *MessageStore) UpdateStatus(msg models.Message, status models.MessageStatus) (models.Message, error) {
	updated := msg.WithStatus(status)
	if err := s.gateway.InsertOrUpdateMessage(&updated); err != nil {
		return updated, fmt.Errorf("update status of message %d: %w", msg.ID, err)
	}
	return updated, nil
}

// Acknowledge marks the stored copy of an echoed message SENT. Echoes of
// messages that were never stored locally are ignored.
func (s *MessageStore) Acknowledge(id int64) error {
	existing, err := s.gateway.GetMessageByID(id)
	if err != nil {
		return fmt.Errorf("load message %d: %w", id, err)
	}
	if existing == nil || existing.Status == models.StatusSent {
		return nil
	}
	_, err = s.UpdateStatus(*existing, models.StatusSent)
	return err
}

// MessagesForRoom streams the ordered history of roomID until ctx is done.
// Subscribing again restarts the stream.
func (s *MessageStore) MessagesForRoom(ctx context.Context, roomID string) <-chan []models.Message {
	return s.gateway.WatchRoom(ctx, roomID)
}

func (s *MessageStore) MessagesAfter(roomID string, timestamp int64) ([]models.Message, error) {
	return s.gateway.MessagesAfter(roomID, timestamp)
}

func (s *MessageStore) Clear(roomID string) error {
	return s.gateway.ClearRoomMessages(roomID)
}
