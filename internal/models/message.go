package models

import (
	"sync/atomic"
	"time"
)

// MessageType is the wire tag that decides how a frame is routed.
type MessageType string

const (
	TypeText               MessageType = "TEXT"
	TypeImage              MessageType = "IMAGE"
	TypeCheckUser          MessageType = "CHECK_USER"
	TypeUserResponse       MessageType = "USER_RESPONSE"
	TypeContactAdded       MessageType = "CONTACT_ADDED"
	TypeSystemNotification MessageType = "SYSTEM_NOTIFICATION"
	TypeRegister           MessageType = "REGISTER"
	TypeLogin              MessageType = "LOGIN"
	TypeAuthResponse       MessageType = "AUTH_RESPONSE"
)

// MessageStatus tracks delivery of messages the local client originated.
type MessageStatus string

const (
	StatusSending MessageStatus = "SENDING"
	StatusSent    MessageStatus = "SENT"
	StatusFailed  MessageStatus = "FAILED"
)

// Reserved room ids and sender names.
const (
	PublicRoomID = "public"
	AuthRoomID   = "auth"
	SystemRoomID = "system"

	SystemSender = "System"
)

// Message is a single frame of the chat protocol and a row of the local history.
// Timestamp is unix milliseconds; history is ordered by (Timestamp, ID).
type Message struct {
	// ID is assigned by the originating client and is the upsert key.
	ID int64 `gorm:"primaryKey;autoIncrement:false" json:"id"`
	// RoomID is the target room ("public", a private pair id, or a control-plane id).
	RoomID string `gorm:"type:text;not null;index:idx_room_time,priority:1" json:"roomId"`
	// SenderID is the username of the sender, or "System" for local notices.
	SenderID string `gorm:"type:text;not null" json:"senderId"`
	// Content depends on Type: text, "true"/"false", base64 image, "user:pass".
	Content string `gorm:"type:text;not null" json:"content"`
	// Timestamp is the creation time in unix milliseconds.
	Timestamp int64         `gorm:"not null;index:idx_room_time,priority:2" json:"timestamp"`
	Type      MessageType   `gorm:"type:text;not null" json:"type"`
	Status    MessageStatus `gorm:"type:text;not null" json:"status"`
}

// TableName implements the GORM tabler interface.
func (Message) TableName() string { return "messages" }

var lastID atomic.Int64

// NextID returns a message id derived from the wall clock in milliseconds.
// Ids never repeat within one process even when two messages share a millisecond.
func NextID() int64 {
	for {
		now := time.Now().UnixMilli()
		prev := lastID.Load()
		if now <= prev {
			now = prev + 1
		}
		if lastID.CompareAndSwap(prev, now) {
			return now
		}
	}
}

// NewMessage builds an outbound message in SENDING state.
func NewMessage(roomID, senderID, content string, t MessageType) Message {
	return Message{
		ID:        NextID(),
		RoomID:    roomID,
		SenderID:  senderID,
		Content:   content,
		Timestamp: time.Now().UnixMilli(),
		Type:      t,
		Status:    StatusSending,
	}
}

// WithStatus returns a copy of m carrying status s.
func (m Message) WithStatus(s MessageStatus) Message {
	m.Status = s
	return m
}

// Persistable reports whether messages of this type belong in the room history.
// Protocol frames (auth, user lookups) are never stored.
func (t MessageType) Persistable() bool {
	switch t {
	case TypeText, TypeImage, TypeSystemNotification, TypeContactAdded:
		return true
	default:
		return false
	}
}
