package storage

import (
	"errors"
	"log"

	"chatgogo/minichat/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var ErrUsernameTaken = errors.New("username already registered")

// CreateUser registers a new account with a bcrypt-hashed password.
func (s *Service) CreateUser(username, password string) error {
	exists, err := s.UserExists(username)
	if err != nil {
		return err
	}
	if exists {
		return ErrUsernameTaken
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	user := models.User{Username: username, PasswordHash: string(hashed)}
	if err := s.db().Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrUsernameTaken
		}
		log.Printf("ERROR: Failed to create user %s: %v", username, err)
		return err
	}
	log.Printf("INFO: New user %s registered (ID: %s).", username, user.ID)
	return nil
}

// Authenticate reports whether password matches the stored hash. Unknown
// users are a plain false, not an error.
func (s *Service) Authenticate(username, password string) (bool, error) {
	var user models.User
	err := s.db().Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	return err == nil, nil
}

func (s *Service) UserExists(username string) (bool, error) {
	var count int64
	if err := s.db().Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Service) DeleteUser(username string) error {
	return s.db().Where("username = ?", username).Delete(&models.User{}).Error
}
