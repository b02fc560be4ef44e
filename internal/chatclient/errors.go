package chatclient

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected       = errors.New("not connected to the chat server")
	ErrNotLoggedIn        = errors.New("user not logged in")
	ErrNotRunning         = errors.New("chat service is not running")
	ErrSendFailed         = errors.New("transport rejected the frame")
	ErrAuthTimeout        = errors.New("authentication timed out")
	ErrAuthInFlight       = errors.New("another login or registration is pending")
	ErrUserCheckTimeout   = errors.New("user lookup timed out")
	ErrUserCheckInFlight  = errors.New("another user lookup is pending")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameExists     = errors.New("username already exists")
	ErrContactExists      = errors.New("user is already a contact")
	ErrContactNotFound    = errors.New("contact not found")
	ErrUserNotFound       = errors.New("user does not exist")
	ErrInvalidUsername    = errors.New("username must be non-empty and must not contain \"-\"")
)

// AuthError carries an auth response the client does not recognise.
type AuthError struct {
	Response string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: server answered %q", e.Response)
}
