package models

import (
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"
)

// RoomKind distinguishes the broadcast room from one-to-one rooms.
type RoomKind string

const (
	RoomPublic  RoomKind = "PUBLIC"
	RoomPrivate RoomKind = "PRIVATE"
)

// PrivateRoomSeparator joins the two usernames of a private room id.
const PrivateRoomSeparator = "-"

// Room is a logical channel multiplexed over the single connection.
type Room struct {
	// ID is "public" or the sorted pair of participant usernames.
	ID   string   `gorm:"primaryKey" json:"id"`
	Kind RoomKind `gorm:"type:text;not null" json:"kind"`
	// Name is what the UI shows: the peer's username for private rooms.
	Name string `json:"name"`
	// Participants is empty for the public room.
	Participants pq.StringArray `gorm:"type:text" json:"participants"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// TableName implements the GORM tabler interface.
func (Room) TableName() string { return "rooms" }

// PublicRoom returns the shared broadcast room.
func PublicRoom() Room {
	return Room{
		ID:           PublicRoomID,
		Kind:         RoomPublic,
		Name:         "Public room",
		Participants: pq.StringArray{},
	}
}

// PrivateRoomID derives the id both peers compute for their conversation,
// independent of who opens it first.
func PrivateRoomID(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, PrivateRoomSeparator)
}

// NewPrivateRoom builds the room self uses to talk to peer.
func NewPrivateRoom(self, peer string) Room {
	return Room{
		ID:           PrivateRoomID(self, peer),
		Kind:         RoomPrivate,
		Name:         peer,
		Participants: pq.StringArray{self, peer},
	}
}

// ValidUsername reports whether name can take part in a private room: it must
// be non-empty and must not contain PrivateRoomSeparator.
func ValidUsername(name string) bool {
	return name != "" && !strings.Contains(name, PrivateRoomSeparator)
}

// PrivateRoomParticipants splits a private room id into its two usernames.
// Only ids PrivateRoomID can produce are accepted.
func PrivateRoomParticipants(roomID string) (a, b string, ok bool) {
	a, b, ok = strings.Cut(roomID, PrivateRoomSeparator)
	if !ok || !ValidUsername(a) || !ValidUsername(b) || a > b {
		return "", "", false
	}
	return a, b, true
}

// IsParticipant reports whether username takes part in roomID. Everyone is
// in the public room; control-plane ids have no participants.
func IsParticipant(roomID, username string) bool {
	if roomID == PublicRoomID {
		return true
	}
	a, b, ok := PrivateRoomParticipants(roomID)
	return ok && (username == a || username == b)
}
