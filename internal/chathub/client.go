package chathub

import "chatgogo/minichat/internal/models"

// Client is one live connection registered with the hub.
type Client interface {
	// GetUserID returns the username the connection was opened with.
	GetUserID() string

	// GetSendChannel returns the channel the hub writes outbound frames to.
	GetSendChannel() chan<- models.Message

	// Run starts the client's read and write pumps.
	Run()
	// Close shuts the connection down. It is safe to call more than once.
	Close()
}

// ClientMessage is a frame read from a client.
type ClientMessage struct {
	Client  Client
	Message models.Message
}
