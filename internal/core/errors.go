package core

import (
	"errors"
	"fmt"
)

var (
	// ErrLogin, ErrRoom and ErrMessage classify the typed errors below for errors.Is.
	ErrLogin   = errors.New("login error")
	ErrRoom    = errors.New("room error")
	ErrMessage = errors.New("message error")

	ErrMembershipRevoked = errors.New("room membership revoked")
	ErrUserNotFound      = errors.New("user not found")
	ErrRoomNotFound      = errors.New("room not found")
	ErrNotLoggedIn       = errors.New("not logged in")
	ErrLogoutFailed      = errors.New("logout failed")
)

// LoginError carries the reason the backend refused a login.
type LoginError struct {
	Reason string
}

func (e *LoginError) Error() string {
	return e.Reason
}

func (e *LoginError) Is(target error) bool {
	return target == ErrLogin
}

// RoomError reports a room operation the backend did not confirm.
type RoomError struct {
	Room   string
	Reason string
}

func (e *RoomError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Room)
}

func (e *RoomError) Is(target error) bool {
	return target == ErrRoom
}

// MessageError reports a message that was most likely not delivered.
type MessageError struct {
	Reason string
}

func (e *MessageError) Error() string {
	return e.Reason
}

func (e *MessageError) Is(target error) bool {
	return target == ErrMessage
}
