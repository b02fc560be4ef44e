package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"chatgogo/minichat/internal/metrics"
	"chatgogo/minichat/internal/models"
)

// Auth responses the server answers LOGIN and REGISTER with.
const (
	LoginSuccess        = "LOGIN_SUCCESS"
	LoginFailed         = "LOGIN_FAILED"
	RegistrationSuccess = "REGISTRATION_SUCCESS"
	UsernameExists      = "USERNAME_EXISTS"
)

// OutboundSender stores outbound messages before they hit the wire and
// tracks their delivery status.
type OutboundSender struct {
	conn      *ConnectionManager
	store     *MessageStore
	auth      *oneShot[string]
	userCheck *oneShot[bool]
	metrics   *metrics.Client

	authTimeout      time.Duration
	userCheckTimeout time.Duration
}

// Send stores msg as SENDING, transmits it and marks it SENT or FAILED.
// Without a live connection the message is stored as FAILED right away and
// ErrNotConnected is returned. The final copy of msg is always returned.
func (s *OutboundSender) Send(ctx context.Context, msg models.Message) (models.Message, error) {
	if s.conn.State().Kind != StateConnected {
		return s.fail(ctx, msg, ErrNotConnected)
	}

	pending := msg.WithStatus(models.StatusSending)
	if err := s.store.Save(pending); err != nil {
		return pending, err
	}

	data, err := json.Marshal(pending)
	if err != nil {
		return s.fail(ctx, pending, fmt.Errorf("encode message %d: %w", msg.ID, err))
	}

	sent, err := s.conn.Transmit(ctx, data)
	if err != nil {
		return s.fail(ctx, pending, err)
	}
	if !sent {
		return s.fail(ctx, pending, ErrSendFailed)
	}

	delivered, err := s.store.UpdateStatus(pending, models.StatusSent)
	if err != nil {
		return delivered, err
	}
	s.metrics.MessagesSent.WithLabelValues(string(models.StatusSent)).Inc()
	return delivered, nil
}

func (s *OutboundSender) fail(ctx context.Context, msg models.Message, cause error) (models.Message, error) {
	log.Printf("WARNING: message %d for room %s not sent: %v", msg.ID, msg.RoomID, cause)
	s.metrics.MessagesSent.WithLabelValues(string(models.StatusFailed)).Inc()

	failed, err := s.store.UpdateStatus(msg, models.StatusFailed)
	if errors.Is(cause, ErrNotConnected) {
		if rerr := s.conn.EnsureReconnect(ctx); rerr != nil && !errors.Is(rerr, ErrNotRunning) {
			log.Printf("WARNING: could not schedule reconnect: %v", rerr)
		}
	}
	return failed, errors.Join(cause, err)
}

// Login authenticates username with the server.
func (s *OutboundSender) Login(ctx context.Context, username, password string) error {
	resp, err := s.authenticate(ctx, models.TypeLogin, username, password)
	if err != nil {
		return err
	}
	switch resp {
	case LoginSuccess:
		return nil
	case LoginFailed:
		return ErrInvalidCredentials
	default:
		return &AuthError{Response: resp}
	}
}

// Register creates an account on the server.
func (s *OutboundSender) Register(ctx context.Context, username, password string) error {
	resp, err := s.authenticate(ctx, models.TypeRegister, username, password)
	if err != nil {
		return err
	}
	switch resp {
	case RegistrationSuccess:
		return nil
	case UsernameExists:
		return ErrUsernameExists
	default:
		return &AuthError{Response: resp}
	}
}

func (s *OutboundSender) authenticate(ctx context.Context, t models.MessageType, username, password string) (string, error) {
	if s.conn.State().Kind != StateConnected {
		return "", ErrNotConnected
	}
	wait, ok := s.auth.begin()
	if !ok {
		return "", ErrAuthInFlight
	}
	defer s.auth.end(wait)

	msg := models.NewMessage(models.AuthRoomID, username, username+":"+password, t)
	return awaitReply(ctx, s, msg, wait, s.authTimeout, ErrAuthTimeout)
}

// CheckUserExists asks the server whether username is registered.
func (s *OutboundSender) CheckUserExists(ctx context.Context, username string) (bool, error) {
	if s.conn.State().Kind != StateConnected {
		return false, ErrNotConnected
	}
	wait, ok := s.userCheck.begin()
	if !ok {
		return false, ErrUserCheckInFlight
	}
	defer s.userCheck.end(wait)

	self := s.conn.Username()
	if self == "" {
		self = "unknown"
	}
	msg := models.NewMessage(models.SystemRoomID, self, username, models.TypeCheckUser)
	return awaitReply(ctx, s, msg, wait, s.userCheckTimeout, ErrUserCheckTimeout)
}

// awaitReply transmits a control message and waits for its reply on wait.
// The wait is bounded by timeout whatever happens to the connection.
func awaitReply[T any](ctx context.Context, s *OutboundSender, msg models.Message, wait <-chan T, timeout time.Duration, errTimeout error) (T, error) {
	var zero T
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	data, err := json.Marshal(msg)
	if err != nil {
		return zero, err
	}
	sent, err := s.conn.Transmit(ctx, data)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return zero, errTimeout
		}
		return zero, err
	}
	if !sent {
		return zero, ErrSendFailed
	}

	select {
	case v := <-wait:
		return v, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, errTimeout
		}
		return zero, ctx.Err()
	}
}
