package core

// Event discriminators sent by the backend in RoomEvent.Kind.
const (
	EventEnter       = "enter"
	EventLeave       = "leave"
	EventAutoLeave   = "auto_leave"
	EventCli         = "cli"
	EventUser        = "user"
	EventFriend      = "friend"
	EventUserSetting = "userSetting"
	EventAdmin       = "admin"
)

// StatusUserNotInRoom is the status message the backend returns once our
// membership in a room has been revoked.
const StatusUserNotInRoom = "User in room NOT_FOUND"

// RoomSummary is one entry of the room list.
type RoomSummary struct {
	ID          int
	Name        string
	Description string
	UserCount   int
	OperatorID  int
}

// RoomInfo is the mutable metadata of a room.
type RoomInfo struct {
	Description string
	OperatorID  int
}

// RoomEvent is a raw entry of a room's message stream. An empty Kind is a
// standard chat message.
type RoomEvent struct {
	Kind    string
	Text    string
	Whisper string
	UserID  int
	To      int
	Nick    string
	User    *User
}

// IsWhisper reports whether the event carries the whisper marker.
func (e RoomEvent) IsWhisper() bool {
	return e.Whisper != ""
}

// RoomText is the response of a room text fetch or a send.
type RoomText struct {
	OK            bool
	StatusMessage string
	Cursor        string
	Events        []RoomEvent
}
