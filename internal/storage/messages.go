package storage

import (
	"errors"
	"log"

	"chatgogo/minichat/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InsertOrUpdateMessage writes msg, replacing any row with the same id.
func (s *Service) InsertOrUpdateMessage(msg *models.Message) error {
	err := s.db().Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(msg).Error
	if err != nil {
		log.Printf("ERROR: Failed to upsert message %d for room %s: %v", msg.ID, msg.RoomID, err)
		return err
	}
	s.watchers.notify(msg.RoomID)
	return nil
}

func (s *Service) GetMessageByID(id int64) (*models.Message, error) {
	var msg models.Message
	err := s.db().Where("id = ?", id).First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *Service) MessagesByRoom(roomID string) ([]models.Message, error) {
	var history []models.Message
	if err := s.db().Where("room_id = ?", roomID).
		Order("timestamp asc").Order("id asc").
		Find(&history).Error; err != nil {
		log.Printf("ERROR: Failed to get history for room %s: %v", roomID, err)
		return nil, err
	}
	return history, nil
}

// MessagesAfter returns the messages of roomID strictly newer than timestamp.
func (s *Service) MessagesAfter(roomID string, timestamp int64) ([]models.Message, error) {
	var history []models.Message
	if err := s.db().Where("room_id = ? AND timestamp > ?", roomID, timestamp).
		Order("timestamp asc").Order("id asc").
		Find(&history).Error; err != nil {
		return nil, err
	}
	return history, nil
}

func (s *Service) ClearRoomMessages(roomID string) error {
	if err := s.db().Where("room_id = ?", roomID).Delete(&models.Message{}).Error; err != nil {
		return err
	}
	s.watchers.notify(roomID)
	return nil
}
