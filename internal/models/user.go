package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is an account registered on the chat server.
// Credentials arrive in plaintext over the LOGIN/REGISTER frames; only the
// bcrypt hash is stored.
type User struct {
	ID           string    `gorm:"primaryKey" json:"id"` // UUID
	Username     string    `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// BeforeCreate is a GORM hook that assigns a UUID when the ID is empty.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}
