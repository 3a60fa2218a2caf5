package core

import (
	"sync"
	"time"
)

// NoOperator marks a room without a half-operator.
const NoOperator = -1

// Room is a joined (or joinable) chat room and the roster IRC believes is present.
// Mutable fields are guarded by an internal lock so the session can render a
// room while the engine's pollers keep updating it.
type Room struct {
	ID int

	mu           sync.RWMutex
	name         string
	description  string
	userCount    int
	admins       []string
	operatorID   int
	cursor       string
	lastText     string
	lastActivity time.Time
	members      []*User
}

// NewRoom constructs a room without members.
func NewRoom(id int, name, description string) *Room {
	return &Room{
		ID:           id,
		name:         name,
		description:  description,
		operatorID:   NoOperator,
		lastActivity: time.Now(),
	}
}

// NewRoomFromSummary builds a room from a room list entry.
func NewRoomFromSummary(s RoomSummary) *Room {
	r := NewRoom(s.ID, s.Name, s.Description)
	r.userCount = s.UserCount
	r.operatorID = s.OperatorID
	return r
}

func (r *Room) Name() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.name
}

func (r *Room) Description() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.description
}

// UserCount returns the member count reported by the room list, or the local
// roster size once members are known.
func (r *Room) UserCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.members) > 0 {
		return len(r.members)
	}
	return r.userCount
}

func (r *Room) OperatorID() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.operatorID
}

// Admins returns a copy of the admin nicknames.
func (r *Room) Admins() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.admins))
	copy(out, r.admins)
	return out
}

// IsAdmin reports whether nick is in the fetched admin list.
func (r *Room) IsAdmin(nick string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.admins {
		if a == nick {
			return true
		}
	}
	return false
}

func (r *Room) SetAdmins(admins []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.admins = append([]string(nil), admins...)
}

// ApplyInfo updates the metadata fetched from the room info endpoint.
func (r *Room) ApplyInfo(info RoomInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.description = info.Description
	r.operatorID = info.OperatorID
}

func (r *Room) Cursor() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cursor
}

func (r *Room) SetCursor(cursor string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cursor = cursor
}

// LastText is the last text this session sent to the room.
func (r *Room) LastText() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastText
}

func (r *Room) LastActivity() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastActivity
}

// Touch records a successful send.
func (r *Room) Touch(at time.Time, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastActivity = at
	r.lastText = text
}

// AddMember inserts a user. Returns true if newly added.
func (r *Room) AddMember(u *User) bool {
	if u == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.members {
		if m.ID == u.ID {
			return false
		}
	}
	r.members = append(r.members, u)
	return true
}

// RemoveMember deletes a user by id. Returns the removed user or nil.
func (r *Room) RemoveMember(id int) *User {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, m := range r.members {
		if m.ID == id {
			r.members = append(r.members[:i], r.members[i+1:]...)
			return m
		}
	}
	return nil
}

func (r *Room) HasMember(id int) bool {
	return r.MemberByID(id) != nil
}

func (r *Room) MemberByID(id int) *User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.members {
		if m.ID == id {
			return m
		}
	}
	return nil
}

func (r *Room) MemberByNick(nick string) *User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.members {
		if m.Nick == nick {
			return m
		}
	}
	return nil
}

// Members returns a snapshot of the roster in arrival order.
func (r *Room) Members() []*User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*User, len(r.members))
	copy(out, r.members)
	return out
}
