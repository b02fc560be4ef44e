package config

import "time"

const (
	// Client connection
	DefaultHost              = "10.0.2.2"
	DefaultPort              = 8080
	DefaultReconnectInterval = 5 * time.Second
	MinReconnectInterval     = 1 * time.Second
	ChatPath                 = "/chat"

	// Client waits
	DefaultAuthTimeout      = 2 * time.Second
	DefaultUserCheckTimeout = 5 * time.Second

	// Client storage
	DefaultClientDatabase = "minichat.db"
	DefaultQueueCapacity  = 1000
	DefaultLocale         = "en"

	// Server
	DefaultServerAddr     = ":8080"
	DefaultServerDriver   = "postgres"
	DefaultServerDSN      = "host=localhost user=user password=password dbname=minichat port=5432 sslmode=disable"
	DefaultFrameRate      = 20.0
	DefaultFrameBurst     = 40
	DefaultBroadcastTopic = "chat:broadcast"
)
