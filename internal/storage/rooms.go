package storage

import (
	"chatgogo/minichat/internal/models"

	"gorm.io/gorm/clause"
)

// SaveRoom records a room the user opened; re-saving keeps the original CreatedAt.
func (s *Service) SaveRoom(room *models.Room) error {
	return s.db().Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"kind", "name", "participants"}),
	}).Create(room).Error
}

func (s *Service) ListRooms() ([]models.Room, error) {
	var rooms []models.Room
	err := s.db().Order("created_at asc").Find(&rooms).Error
	return rooms, err
}
