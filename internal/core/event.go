package core

import "time"

// Bridge receives the events the synchronization engine derives from the
// backend. Callbacks may run while the engine holds its lock, so
// implementations must not call back into the engine.
type Bridge interface {
	// RoomMessage delivers a chat line said in a joined room.
	RoomMessage(room *Room, user *User, text string)
	// PrivateMessage delivers a whisper or a stored offline message.
	// sentAt is zero for live whispers.
	PrivateMessage(user *User, text string, sentAt time.Time)
	UserJoined(room *Room, user *User)
	UserLeft(room *Room, user *User)
	// UserMode reports a mode change such as "+h".
	UserMode(room *Room, user *User, mode string)
	SystemMessage(room *Room, text string)
	// Kicked reports that our own membership in room was revoked.
	Kicked(room *Room)
}
