package chatclient

import (
	"context"
	"fmt"
	"time"

	"chatgogo/minichat/internal/models"
)

// AddContact checks that username exists on the server, stores it as a
// contact and tells the server, which notifies the other side.
func (s *Service) AddContact(ctx context.Context, username string) (models.Contact, error) {
	self := s.conn.Username()
	if self == "" {
		return models.Contact{}, ErrNotLoggedIn
	}

	existing, err := s.store.GetContactByUsername(username)
	if err != nil {
		return models.Contact{}, err
	}
	if existing != nil {
		return *existing, ErrContactExists
	}

	exists, err := s.sender.CheckUserExists(ctx, username)
	if err != nil {
		return models.Contact{}, err
	}
	if !exists {
		return models.Contact{}, ErrUserNotFound
	}

	contact := models.Contact{
		Username: username,
		Nickname: username,
		AddedAt:  time.Now().UnixMilli(),
	}
	if err := s.store.UpsertContact(&contact); err != nil {
		return models.Contact{}, fmt.Errorf("store contact %s: %w", username, err)
	}

	notice := models.NewMessage(models.SystemRoomID, self, username, models.TypeContactAdded)
	if _, err := s.sender.Send(ctx, notice); err != nil {
		return contact, err
	}
	return contact, nil
}

func (s *Service) RemoveContact(username string) error {
	existing, err := s.store.GetContactByUsername(username)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrContactNotFound
	}
	return s.store.DeleteContact(username)
}

func (s *Service) RenameContact(username, nickname string) error {
	existing, err := s.store.GetContactByUsername(username)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrContactNotFound
	}
	existing.Nickname = nickname
	return s.store.UpsertContact(existing)
}

// Contacts lists contacts, most recent conversation first.
func (s *Service) Contacts() ([]models.Contact, error) {
	return s.store.ListContacts()
}

// MarkRead resets the unread counter of a contact.
func (s *Service) MarkRead(username string) error {
	return s.store.ClearUnreadCount(username)
}
