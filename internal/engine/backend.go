package engine

import (
	"context"

	"github.com/vovakirdan/chatgate/internal/core"
)

// Backend is the chat service the engine mirrors. Calls block until the
// transport returns; the engine adds no retries of its own.
type Backend interface {
	PingLoginPage(ctx context.Context) error
	// Login and LoginAnonymously return the page the service answered with.
	Login(ctx context.Context, email, password string) (string, error)
	LoginAnonymously(ctx context.Context, nick string, gender core.Gender) (string, error)
	// Logout returns the body of the logout page.
	Logout(ctx context.Context) (string, error)

	RoomList(ctx context.Context) ([]core.RoomSummary, error)
	Join(ctx context.Context, roomName string) error
	// Part returns the page shown after leaving the room.
	Part(ctx context.Context, roomID int) (string, error)
	RoomUsers(ctx context.Context, roomID int) ([]*core.User, error)
	RoomAdmins(ctx context.Context, roomID int) ([]string, error)
	RoomInfo(ctx context.Context, roomID int) (core.RoomInfo, error)
	RoomText(ctx context.Context, roomID int, cursor string) (*core.RoomText, error)
	SendMessage(ctx context.Context, roomID int, cursor, text string, toUserID int) (*core.RoomText, error)

	PingHeader(ctx context.Context) error
	PingRoomUserTime(ctx context.Context, roomID int) error

	// GetUserByID returns core.ErrUserNotFound for unknown ids.
	GetUserByID(ctx context.Context, id int) (*core.User, error)
	GetUserProfile(ctx context.Context, id int) (*core.Profile, error)

	PendingMessageCount(ctx context.Context) (int, error)
	StoredMessageSenders(ctx context.Context) ([]*core.User, error)
	StoredMessages(ctx context.Context, userID int) ([]core.StoredMessage, error)
}
