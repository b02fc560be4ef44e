package config

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrInvalidPort      = errors.New("port must be between 1 and 65535")
	ErrEmptyHost        = errors.New("host must not be empty")
	ErrIntervalTooShort = fmt.Errorf("reconnect interval must be at least %s", MinReconnectInterval)
)

// Settings holds the server address and reconnect interval the user can edit
// while the client runs. The connection engine reads them on every connect.
type Settings struct {
	mu       sync.RWMutex
	host     string
	port     int
	interval time.Duration
}

// NewSettings seeds Settings from a loaded configuration without validating
// the interval, so that a hand-written config is honoured as is.
func NewSettings(cfg ClientConfig) *Settings {
	return &Settings{
		host:     cfg.Host,
		port:     cfg.Port,
		interval: cfg.ReconnectInterval(),
	}
}

func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}
	return nil
}

// Server returns the current host and port.
func (s *Settings) Server() (string, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.host, s.port
}

func (s *Settings) ReconnectInterval() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.interval
}

// SetServer validates and stores a new server address.
func (s *Settings) SetServer(host string, port int) error {
	if host == "" {
		return ErrEmptyHost
	}
	if err := ValidatePort(port); err != nil {
		return err
	}
	s.mu.Lock()
	s.host, s.port = host, port
	s.mu.Unlock()
	return nil
}

// SetReconnectInterval enforces the one second floor.
func (s *Settings) SetReconnectInterval(d time.Duration) error {
	if d < MinReconnectInterval {
		return ErrIntervalTooShort
	}
	s.mu.Lock()
	s.interval = d
	s.mu.Unlock()
	return nil
}
