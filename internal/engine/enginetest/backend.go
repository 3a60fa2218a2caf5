// Package enginetest provides in-memory doubles of the engine collaborators.
package enginetest

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/vovakirdan/chatgate/internal/core"
)

const (
	// LoggedPage carries the logged-in navigation marker.
	LoggedPage = `<html><body><ul class="nav"><li id="nav-user"><a href="/profile">me</a></li></ul></body></html>`
	// LogoutPage confirms a logout.
	LogoutPage = `<html><body><p>Úspěšné odhlášení</p></body></html>`
)

// AlertPage renders a login page with an alert block.
func AlertPage(text string) string {
	return fmt.Sprintf(`<html><body><form><div class="alert">
		%s
	</div></form></body></html>`, text)
}

// Sent is a message recorded by SendMessage.
type Sent struct {
	RoomID int
	Cursor string
	Text   string
}

// Backend is a scriptable engine.Backend. Exported fields may be set before
// the backend is used; afterwards use the methods.
type Backend struct {
	mu sync.Mutex

	Rooms      []core.RoomSummary
	Users      map[int]*core.User
	Profiles   map[int]*core.Profile
	Members    map[int][]*core.User
	Admins     map[int][]string
	Infos      map[int]core.RoomInfo
	LoginPage  string
	PartPage   string
	LogoutText string

	Pending int
	Senders []*core.User
	Stored  map[int][]core.StoredMessage

	// Errors forces a method (by name) to fail.
	Errors map[string]error

	texts map[int][]*core.RoomText
	sends map[int][]*core.RoomText
	sent  []Sent
	calls map[string]int
	seq   int
}

// NewBackend returns a backend that accepts every login, part and logout.
func NewBackend() *Backend {
	return &Backend{
		Users:      make(map[int]*core.User),
		Profiles:   make(map[int]*core.Profile),
		Members:    make(map[int][]*core.User),
		Admins:     make(map[int][]string),
		Infos:      make(map[int]core.RoomInfo),
		Stored:     make(map[int][]core.StoredMessage),
		Errors:     make(map[string]error),
		LoginPage:  LoggedPage,
		PartPage:   LoggedPage,
		LogoutText: LogoutPage,
		texts:      make(map[int][]*core.RoomText),
		sends:      make(map[int][]*core.RoomText),
		calls:      make(map[string]int),
	}
}

// AddRoom registers a room and its initial roster.
func (b *Backend) AddRoom(id int, name string, members ...*core.User) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Rooms = append(b.Rooms, core.RoomSummary{ID: id, Name: name, UserCount: len(members), OperatorID: core.NoOperator})
	b.Members[id] = members
	for _, m := range members {
		b.Users[m.ID] = m
	}
}

// AddUser makes u resolvable by id.
func (b *Backend) AddUser(u *core.User) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Users[u.ID] = u
}

// SetInfo sets the room info the next RoomInfo call returns.
func (b *Backend) SetInfo(roomID int, info core.RoomInfo) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Infos[roomID] = info
}

// SetLoginPage sets the page both login forms answer with.
func (b *Backend) SetLoginPage(page string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.LoginPage = page
}

// SetError makes method fail with err; a nil err clears it.
func (b *Backend) SetError(method string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.Errors, method)
		return
	}
	b.Errors[method] = err
}

// QueueText queues a response for the next RoomText call of roomID.
func (b *Backend) QueueText(roomID int, resp *core.RoomText) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.texts[roomID] = append(b.texts[roomID], resp)
}

// QueueSend queues a response for the next SendMessage call of roomID.
func (b *Backend) QueueSend(roomID int, resp *core.RoomText) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sends[roomID] = append(b.sends[roomID], resp)
}

func (b *Backend) SentMessages() []Sent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Sent(nil), b.sent...)
}

// Calls reports how often method was invoked.
func (b *Backend) Calls(method string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[method]
}

func (b *Backend) enter(method string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls[method]++
	return b.Errors[method]
}

func (b *Backend) PingLoginPage(ctx context.Context) error {
	return b.enter("PingLoginPage")
}

func (b *Backend) Login(ctx context.Context, email, password string) (string, error) {
	if err := b.enter("Login"); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.LoginPage, nil
}

func (b *Backend) LoginAnonymously(ctx context.Context, nick string, gender core.Gender) (string, error) {
	if err := b.enter("LoginAnonymously"); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.LoginPage, nil
}

func (b *Backend) Logout(ctx context.Context) (string, error) {
	if err := b.enter("Logout"); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.LogoutText, nil
}

func (b *Backend) RoomList(ctx context.Context) ([]core.RoomSummary, error) {
	if err := b.enter("RoomList"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]core.RoomSummary(nil), b.Rooms...), nil
}

func (b *Backend) Join(ctx context.Context, roomName string) error {
	return b.enter("Join")
}

func (b *Backend) Part(ctx context.Context, roomID int) (string, error) {
	if err := b.enter("Part"); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.PartPage, nil
}

func (b *Backend) RoomUsers(ctx context.Context, roomID int) ([]*core.User, error) {
	if err := b.enter("RoomUsers"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*core.User(nil), b.Members[roomID]...), nil
}

func (b *Backend) RoomAdmins(ctx context.Context, roomID int) ([]string, error) {
	if err := b.enter("RoomAdmins"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.Admins[roomID]...), nil
}

func (b *Backend) RoomInfo(ctx context.Context, roomID int) (core.RoomInfo, error) {
	if err := b.enter("RoomInfo"); err != nil {
		return core.RoomInfo{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	info, ok := b.Infos[roomID]
	if !ok {
		info = core.RoomInfo{OperatorID: core.NoOperator}
	}
	return info, nil
}

// RoomText pops a queued response, or reports no news with an unchanged cursor.
func (b *Backend) RoomText(ctx context.Context, roomID int, cursor string) (*core.RoomText, error) {
	if err := b.enter("RoomText"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if q := b.texts[roomID]; len(q) > 0 {
		b.texts[roomID] = q[1:]
		return q[0], nil
	}
	return &core.RoomText{OK: true, Cursor: cursor}, nil
}

// SendMessage records the message and pops a queued response, or advances
// the cursor.
func (b *Backend) SendMessage(ctx context.Context, roomID int, cursor, text string, toUserID int) (*core.RoomText, error) {
	if err := b.enter("SendMessage"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, Sent{RoomID: roomID, Cursor: cursor, Text: text})
	if q := b.sends[roomID]; len(q) > 0 {
		b.sends[roomID] = q[1:]
		return q[0], nil
	}
	b.seq++
	return &core.RoomText{OK: true, Cursor: "s" + strconv.Itoa(b.seq)}, nil
}

func (b *Backend) PingHeader(ctx context.Context) error {
	return b.enter("PingHeader")
}

func (b *Backend) PingRoomUserTime(ctx context.Context, roomID int) error {
	return b.enter("PingRoomUserTime")
}

func (b *Backend) GetUserByID(ctx context.Context, id int) (*core.User, error) {
	if err := b.enter("GetUserByID"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.Users[id]
	if !ok {
		return nil, core.ErrUserNotFound
	}
	return u, nil
}

func (b *Backend) GetUserProfile(ctx context.Context, id int) (*core.Profile, error) {
	if err := b.enter("GetUserProfile"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.Profiles[id]
	if !ok {
		return &core.Profile{}, nil
	}
	return p, nil
}

func (b *Backend) PendingMessageCount(ctx context.Context) (int, error) {
	if err := b.enter("PendingMessageCount"); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Pending, nil
}

func (b *Backend) StoredMessageSenders(ctx context.Context) ([]*core.User, error) {
	if err := b.enter("StoredMessageSenders"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*core.User(nil), b.Senders...), nil
}

func (b *Backend) StoredMessages(ctx context.Context, userID int) ([]core.StoredMessage, error) {
	if err := b.enter("StoredMessages"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]core.StoredMessage(nil), b.Stored[userID]...), nil
}

// Bridge records every callback as a short line such as "joined lobby alice".
type Bridge struct {
	mu     sync.Mutex
	events []string
}

func (r *Bridge) add(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

// Events returns the recorded lines.
func (r *Bridge) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *Bridge) RoomMessage(room *core.Room, user *core.User, text string) {
	r.add("message %s %s %s", room.Name(), user.Nick, text)
}

func (r *Bridge) PrivateMessage(user *core.User, text string, sentAt time.Time) {
	if sentAt.IsZero() {
		r.add("private %s %s", user.Nick, text)
		return
	}
	r.add("private %s %s @%s", user.Nick, text, sentAt.UTC().Format(time.RFC3339))
}

func (r *Bridge) UserJoined(room *core.Room, user *core.User) {
	r.add("joined %s %s", room.Name(), user.Nick)
}

func (r *Bridge) UserLeft(room *core.Room, user *core.User) {
	r.add("left %s %s", room.Name(), user.Nick)
}

func (r *Bridge) UserMode(room *core.Room, user *core.User, mode string) {
	r.add("mode %s %s %s", room.Name(), user.Nick, mode)
}

func (r *Bridge) SystemMessage(room *core.Room, text string) {
	r.add("system %s %s", room.Name(), text)
}

func (r *Bridge) Kicked(room *core.Room) {
	r.add("kicked %s", room.Name())
}
