package storage

import (
	"errors"

	"chatgogo/minichat/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (s *Service) UpsertContact(contact *models.Contact) error {
	return s.db().Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		UpdateAll: true,
	}).Create(contact).Error
}

func (s *Service) GetContactByUsername(username string) (*models.Contact, error) {
	var contact models.Contact
	err := s.db().Where("username = ?", username).First(&contact).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

// ListContacts returns contacts with the most recent conversation first.
func (s *Service) ListContacts() ([]models.Contact, error) {
	var contacts []models.Contact
	err := s.db().Order("last_message_time desc").Order("username asc").Find(&contacts).Error
	return contacts, err
}

func (s *Service) DeleteContact(username string) error {
	return s.db().Where("username = ?", username).Delete(&models.Contact{}).Error
}

func (s *Service) UpdateContactLastMessage(username, message string, timestamp int64) error {
	return s.db().Model(&models.Contact{}).
		Where("username = ?", username).
		Updates(map[string]interface{}{
			"last_message":      message,
			"last_message_time": timestamp,
		}).Error
}

func (s *Service) IncrementUnreadCount(username string) error {
	return s.db().Model(&models.Contact{}).
		Where("username = ?", username).
		Update("unread_count", gorm.Expr("unread_count + 1")).Error
}

func (s *Service) ClearUnreadCount(username string) error {
	return s.db().Model(&models.Contact{}).
		Where("username = ?", username).
		Update("unread_count", 0).Error
}
