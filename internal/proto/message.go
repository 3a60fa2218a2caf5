// Package proto holds the JSON shapes exchanged with the chat service and
// their mapping onto core types.
package proto

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/vovakirdan/chatgate/internal/core"
)

// StatusOK is the status code of a successful API response.
const StatusOK = 200

// StoredTimeLayout is the layout of StoredMessage.TimeCreate.
const StoredTimeLayout = time.RFC1123

// Cursor is the chat index of a room. The service sends it either as a
// number or as a string.
type Cursor string

func (c *Cursor) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*c = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = Cursor(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*c = Cursor(n.String())
	return nil
}

// Response is the common envelope of the /api and /json endpoints.
type Response struct {
	Status        int         `json:"status"`
	StatusMessage string      `json:"statusMessage"`
	Profile       *Profile    `json:"profile,omitempty"`
	User          *User       `json:"user,omitempty"`
	Users         []User      `json:"users,omitempty"`
	Admins        []Admin     `json:"admins,omitempty"`
	Data          *RoomData   `json:"data,omitempty"`
	Room          *RoomInfo   `json:"room,omitempty"`
	Rooms         []RoomEntry `json:"rooms,omitempty"`
}

// OK reports a 200 status.
func (r *Response) OK() bool {
	return r.Status == StatusOK
}

// RoomText maps a getText response.
func (r *Response) RoomText() *core.RoomText {
	out := &core.RoomText{
		OK:            r.OK(),
		StatusMessage: r.StatusMessage,
	}
	if r.Data == nil {
		return out
	}
	out.Cursor = string(r.Data.Index)
	out.Events = make([]core.RoomEvent, 0, len(r.Data.Data))
	for _, m := range r.Data.Data {
		out.Events = append(out.Events, m.Event())
	}
	return out
}

// User is a chat identity.
type User struct {
	ID         int         `json:"id"`
	Name       string      `json:"name"`
	Gender     string      `json:"gender"`
	Anonymous  bool        `json:"anonymous"`
	Idle       int         `json:"idle"`
	AdminID    int         `json:"adminId"`
	Karma      int         `json:"karma"`
	Online     bool        `json:"online,omitempty"`
	ProfileURL string      `json:"profileUrl,omitempty"`
	Rooms      []RoomEntry `json:"rooms,omitempty"`
}

func (u User) Core() *core.User {
	out := &core.User{
		ID:          u.ID,
		Nick:        u.Name,
		Gender:      core.ParseGender(u.Gender),
		Anonymous:   u.Anonymous,
		IdleSeconds: u.Idle,
		Karma:       u.Karma,
		Online:      u.Online,
		ProfileURL:  u.ProfileURL,
	}
	if u.AdminID != 0 {
		id := u.AdminID
		out.GlobalAdminID = &id
	}
	for _, r := range u.Rooms {
		out.Rooms = append(out.Rooms, r.Name)
	}
	return out
}

// Users maps a user list.
func Users(in []User) []*core.User {
	out := make([]*core.User, 0, len(in))
	for _, u := range in {
		out = append(out, u.Core())
	}
	return out
}

// Admin is an entry of the room admin list.
type Admin struct {
	ID   int    `json:"id"`
	Nick string `json:"nick"`
}

// Profile is the public profile of a user.
type Profile struct {
	Age              string `json:"age"`
	ProfileViewCount string `json:"profileViewCount"`
	ImageURL         string `json:"imageUrl"`
	KarmaLevel       int    `json:"karmaLevel"`
}

func (p Profile) Core() *core.Profile {
	return &core.Profile{
		Age:       p.Age,
		ViewCount: p.ProfileViewCount,
		ImageURL:  p.ImageURL,
		Karma:     p.KarmaLevel,
	}
}

// RoomData is the payload of getText.
type RoomData struct {
	Index Cursor        `json:"index"`
	Data  []RoomMessage `json:"data"`
	User  []User        `json:"user"`
}

// RoomMessage is a single entry of a room stream. S is absent for chat lines.
type RoomMessage struct {
	S    *string         `json:"s,omitempty"`
	T    string          `json:"t"`
	W    json.RawMessage `json:"w,omitempty"`
	UID  int             `json:"uid"`
	To   int             `json:"to"`
	User *User           `json:"user,omitempty"`
	Nick string          `json:"nick,omitempty"`
}

func (m RoomMessage) Event() core.RoomEvent {
	ev := core.RoomEvent{
		Text:   m.T,
		UserID: m.UID,
		To:     m.To,
		Nick:   m.Nick,
	}
	if m.S != nil {
		ev.Kind = *m.S
	}
	if len(m.W) > 0 && string(m.W) != "null" {
		ev.Whisper = string(m.W)
	}
	if m.User != nil {
		ev.User = m.User.Core()
	}
	return ev
}

// RoomInfo is the detail of a single room.
type RoomInfo struct {
	AdminUserID *int   `json:"adminUserId"`
	Description string `json:"description"`
}

func (r RoomInfo) Core() core.RoomInfo {
	info := core.RoomInfo{Description: r.Description, OperatorID: core.NoOperator}
	if r.AdminUserID != nil {
		info.OperatorID = *r.AdminUserID
	}
	return info
}

// RoomEntry is an item of the room list.
type RoomEntry struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	UserCount   int    `json:"userCount"`
	AdminUserID int    `json:"adminUserId"`
	Locked      string `json:"locked,omitempty"`
	Permanent   bool   `json:"permanent,omitempty"`
	Web         string `json:"web,omitempty"`
}

func (r RoomEntry) Summary() core.RoomSummary {
	op := r.AdminUserID
	if op == 0 {
		op = core.NoOperator
	}
	return core.RoomSummary{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		UserCount:   r.UserCount,
		OperatorID:  op,
	}
}

// Header is the response of getHeader.
type Header struct {
	Data struct {
		MsgCount     int `json:"msg_count"`
		RequestCount int `json:"request_count"`
	} `json:"data"`
}

// StoredUsers lists the senders of stored messages.
type StoredUsers struct {
	Data []User `json:"data"`
}

// StoredMessages lists the stored messages exchanged with one user.
type StoredMessages struct {
	Data []StoredMessage `json:"data"`
}

// StoredMessage is an offline message.
type StoredMessage struct {
	FromSelf   bool   `json:"from_lo"`
	SenderID   *int   `json:"user_id_hi"`
	TimeCreate string `json:"time_create"`
	Text       string `json:"whisp"`
}

// Core maps m. A missing or malformed timestamp becomes the Unix epoch and a
// missing sender falls back to fallbackSender.
func (m StoredMessage) Core(fallbackSender int) core.StoredMessage {
	out := core.StoredMessage{
		Text:     m.Text,
		SenderID: fallbackSender,
		FromSelf: m.FromSelf,
		SentAt:   time.Unix(0, 0).UTC(),
	}
	if m.SenderID != nil {
		out.SenderID = *m.SenderID
	}
	if t, err := time.Parse(StoredTimeLayout, m.TimeCreate); err == nil {
		out.SentAt = t
	}
	return out
}
