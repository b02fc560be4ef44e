package models

// Contact is a peer the local user talks to privately.
type Contact struct {
	Username        string `gorm:"primaryKey" json:"username"`
	Nickname        string `json:"nickname"`
	LastMessage     string `json:"lastMessage"`
	LastMessageTime int64  `gorm:"index" json:"lastMessageTime"`
	UnreadCount     int    `gorm:"not null;default:0" json:"unreadCount"`
	AddedAt         int64  `json:"addedAt"`
}

// TableName implements the GORM tabler interface.
func (Contact) TableName() string { return "contacts" }
