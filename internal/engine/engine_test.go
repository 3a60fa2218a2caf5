package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/chatgate/internal/core"
	"github.com/vovakirdan/chatgate/internal/engine/enginetest"
)

var (
	bob   = &core.User{ID: 2, Nick: "bob", Gender: core.GenderMale}
	alice = &core.User{ID: 9, Nick: "alice", Gender: core.GenderFemale}
	carol = &core.User{ID: 11, Nick: "carol", Gender: core.GenderFemale}
)

func newTestEngine(t *testing.T, opts Options) (*Engine, *enginetest.Backend, *enginetest.Bridge) {
	t.Helper()
	b := enginetest.NewBackend()
	b.AddRoom(1, "lobby", bob)
	b.AddRoom(2, "dev", bob)
	b.AddUser(alice)
	b.AddUser(carol)
	br := &enginetest.Bridge{}
	e := New(opts, b, br, nil)
	require.NoError(t, e.LoginAnonymously(context.Background(), "bob", core.GenderMale))
	return e, b, br
}

func mustJoin(t *testing.T, e *Engine, name string) *core.Room {
	t.Helper()
	ctx := context.Background()
	r, err := e.RoomByName(ctx, name)
	require.NoError(t, err)
	require.NoError(t, e.Join(ctx, r))
	return r
}

func TestLoginPageMarkers(t *testing.T) {
	ctx := context.Background()

	e, b, _ := newTestEngine(t, Options{})
	assert.True(t, e.LoggedIn())

	b.LoginPage = enginetest.AlertPage("Wrong   password\n given")
	err := e.Login(ctx, "bob@example.com", "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrLogin))
	assert.Equal(t, "Wrong password given", err.Error())
	assert.False(t, e.LoggedIn())

	b.LoginPage = "<html><body>maintenance</body></html>"
	err = e.Login(ctx, "bob@example.com", "pw")
	require.ErrorIs(t, err, core.ErrLogin)
	assert.Equal(t, "Failed to login for unknown reason.", err.Error())
}

func TestRoomListSortedAndLookup(t *testing.T) {
	e, _, _ := newTestEngine(t, Options{})
	ctx := context.Background()

	rooms, err := e.RoomList(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "dev", rooms[0].Name())
	assert.Equal(t, "lobby", rooms[1].Name())
	assert.Empty(t, e.ActiveRoomNames())

	_, err = e.RoomByName(ctx, "nowhere")
	assert.ErrorIs(t, err, core.ErrRoomNotFound)
}

func TestJoinLoadsRosterAndPings(t *testing.T) {
	e, b, br := newTestEngine(t, Options{})
	b.Admins[1] = []string{"carol"}

	r := mustJoin(t, e, "lobby")

	assert.Equal(t, []string{"lobby"}, e.ActiveRoomNames())
	assert.True(t, r.HasMember(bob.ID))
	assert.True(t, r.IsAdmin("carol"))
	assert.Equal(t, 1, b.Calls("PingHeader"))
	assert.Equal(t, 1, b.Calls("PingRoomUserTime"))
	assert.Same(t, r, e.FirstRoom())
	assert.Empty(t, br.Events())

	require.NoError(t, e.Join(context.Background(), r))
	assert.Equal(t, 1, b.Calls("Join"), "joining twice must not hit the backend")
}

func TestPartRequiresConfirmation(t *testing.T) {
	e, b, _ := newTestEngine(t, Options{})
	r := mustJoin(t, e, "lobby")

	b.PartPage = "<html><body>error</body></html>"
	err := e.Part(context.Background(), r)
	require.ErrorIs(t, err, core.ErrRoom)
	assert.Equal(t, "Failed to leave the room: lobby", err.Error())
	assert.Equal(t, []string{"lobby"}, e.ActiveRoomNames())

	b.PartPage = enginetest.LoggedPage
	require.NoError(t, e.Part(context.Background(), r))
	assert.Empty(t, e.ActiveRoomNames())
}

func TestSayUnchangedCursorFails(t *testing.T) {
	e, b, br := newTestEngine(t, Options{})
	r := mustJoin(t, e, "lobby")
	r.SetCursor("7")
	before := r.LastActivity()

	b.QueueSend(1, &core.RoomText{OK: true, Cursor: "7", Events: []core.RoomEvent{{Kind: core.EventCli, Text: "x"}}})
	err := e.Say(context.Background(), r, "hello")

	require.ErrorIs(t, err, core.ErrMessage)
	assert.Equal(t, "7", r.Cursor())
	assert.Equal(t, "", r.LastText())
	assert.Equal(t, before, r.LastActivity())
	assert.Empty(t, br.Events())
}

func TestSayAppliesCursorAndEvents(t *testing.T) {
	e, b, br := newTestEngine(t, Options{})
	r := mustJoin(t, e, "lobby")

	b.QueueSend(1, &core.RoomText{OK: true, Cursor: "8", Events: []core.RoomEvent{{UserID: bob.ID, Text: "hello"}}})
	require.NoError(t, e.Say(context.Background(), r, "hello"))

	assert.Equal(t, "8", r.Cursor())
	assert.Equal(t, "hello", r.LastText())
	assert.Equal(t, []string{"message lobby bob hello"}, br.Events())
	assert.Equal(t, []enginetest.Sent{{RoomID: 1, Cursor: "", Text: "hello"}}, b.SentMessages())
}

func TestCommandPayloads(t *testing.T) {
	e, b, _ := newTestEngine(t, Options{})
	ctx := context.Background()

	err := e.Whisper(ctx, "alice", "psst")
	require.ErrorIs(t, err, core.ErrMessage)

	r := mustJoin(t, e, "lobby")
	require.NoError(t, e.Whisper(ctx, "alice smith", "psst"))
	require.NoError(t, e.Admin(ctx, r, "alice"))
	require.NoError(t, e.Kick(ctx, r, "alice", "spam"))

	sent := b.SentMessages()
	require.Len(t, sent, 3)
	assert.Equal(t, `/w "alice smith" psst`, sent[0].Text)
	assert.Equal(t, "/admin alice", sent[1].Text)
	assert.Equal(t, "/kick alice spam", sent[2].Text)
	assert.Equal(t, "/kick alice spam", r.LastText())
}

func TestClassification(t *testing.T) {
	cases := []struct {
		name  string
		info  *core.RoomInfo
		event core.RoomEvent
		want  []string
	}{
		{name: "enter", event: core.RoomEvent{Kind: core.EventEnter, User: alice}, want: []string{"joined lobby alice"}},
		{name: "enter known member", event: core.RoomEvent{Kind: core.EventEnter, User: bob}},
		{name: "leave", event: core.RoomEvent{Kind: core.EventLeave, UserID: bob.ID}, want: []string{"left lobby bob"}},
		{name: "auto leave", event: core.RoomEvent{Kind: core.EventAutoLeave, UserID: bob.ID}, want: []string{"left lobby bob"}},
		{name: "leave stranger", event: core.RoomEvent{Kind: core.EventLeave, UserID: 404}},
		{name: "cli", event: core.RoomEvent{Kind: core.EventCli, Text: "room closes soon"}, want: []string{"system lobby room closes soon"}},
		{name: "user", event: core.RoomEvent{Kind: core.EventUser, User: alice}},
		{name: "friend", event: core.RoomEvent{Kind: core.EventFriend}},
		{name: "user setting", event: core.RoomEvent{Kind: core.EventUserSetting}},
		{
			name:  "admin grant",
			info:  &core.RoomInfo{Description: "main", OperatorID: bob.ID},
			event: core.RoomEvent{Kind: core.EventAdmin, Nick: "bob"},
			want:  []string{"mode lobby bob +h"},
		},
		{
			name:  "admin other operator",
			info:  &core.RoomInfo{OperatorID: 77},
			event: core.RoomEvent{Kind: core.EventAdmin, Nick: "bob"},
		},
		{name: "admin unknown nick", event: core.RoomEvent{Kind: core.EventAdmin, Nick: "ghost"}},
		{name: "chat", event: core.RoomEvent{UserID: bob.ID, Text: "fish &amp; chips"}, want: []string{"message lobby bob fish & chips"}},
		{name: "chat fetched sender", event: core.RoomEvent{UserID: alice.ID, Text: "hi"}, want: []string{"message lobby alice hi"}},
		{name: "chat unknown sender", event: core.RoomEvent{UserID: 77, Text: "hi"}, want: []string{"system lobby WARNING: Unknown UID: 77 -> hi"}},
		{name: "unknown kind", event: core.RoomEvent{Kind: "fireworks", Text: "boom"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, b, br := newTestEngine(t, Options{})
			r := mustJoin(t, e, "lobby")
			if tc.info != nil {
				b.SetInfo(1, *tc.info)
			}

			b.QueueText(1, &core.RoomText{OK: true, Cursor: "1", Events: []core.RoomEvent{tc.event}})
			require.NoError(t, e.PollMessages(context.Background()))

			assert.Equal(t, tc.want, nilIfEmpty(br.Events()))
			assert.Equal(t, "1", r.Cursor())
		})
	}
}

type cursorBridge struct {
	enginetest.Bridge
	seen []string
}

func (c *cursorBridge) UserJoined(room *core.Room, user *core.User) {
	c.seen = append(c.seen, room.Cursor())
}

func TestCursorAppliedBeforeEvents(t *testing.T) {
	b := enginetest.NewBackend()
	b.AddRoom(1, "lobby")
	br := &cursorBridge{}
	e := New(Options{}, b, br, nil)
	r := mustJoin(t, e, "lobby")

	b.QueueText(1, &core.RoomText{OK: true, Cursor: "5", Events: []core.RoomEvent{
		{Kind: core.EventEnter, User: alice},
		{Kind: core.EventEnter, User: carol},
	}})
	require.NoError(t, e.PollMessages(context.Background()))

	assert.Equal(t, []string{"5", "5"}, br.seen)
	assert.Equal(t, "5", r.Cursor())
}

func TestWhisperDeliveredOnlyInFirstRoom(t *testing.T) {
	e, b, br := newTestEngine(t, Options{})
	mustJoin(t, e, "lobby")
	mustJoin(t, e, "dev")

	whisper := core.RoomEvent{UserID: alice.ID, Text: "psst", Whisper: "1"}
	b.QueueText(2, &core.RoomText{OK: true, Cursor: "d1", Events: []core.RoomEvent{whisper}})
	require.NoError(t, e.PollMessages(context.Background()))
	assert.Empty(t, br.Events())

	b.QueueText(1, &core.RoomText{OK: true, Cursor: "l1", Events: []core.RoomEvent{whisper}})
	require.NoError(t, e.PollMessages(context.Background()))
	assert.Equal(t, []string{"private alice psst"}, br.Events())

	addressed := whisper
	addressed.To = 5
	b.QueueText(1, &core.RoomText{OK: true, Cursor: "l2", Events: []core.RoomEvent{addressed}})
	require.NoError(t, e.PollMessages(context.Background()))
	assert.Len(t, br.Events(), 1)
}

func TestKickRemovesRoomAndStopsPolling(t *testing.T) {
	e, b, br := newTestEngine(t, Options{})
	mustJoin(t, e, "lobby")

	b.QueueText(1, &core.RoomText{OK: false, StatusMessage: core.StatusUserNotInRoom})
	err := e.PollMessages(context.Background())
	require.ErrorIs(t, err, core.ErrMembershipRevoked)

	assert.Equal(t, []string{"kicked lobby"}, br.Events())
	assert.Empty(t, e.ActiveRoomNames())
	assert.Equal(t, 1, b.Calls("RoomText"))

	require.NoError(t, e.PollMessages(context.Background()))
	assert.Equal(t, 1, b.Calls("RoomText"))
	assert.Equal(t, []string{"kicked lobby"}, br.Events())
}

func TestOtherStatusKeepsRoom(t *testing.T) {
	e, b, br := newTestEngine(t, Options{})
	r := mustJoin(t, e, "lobby")
	r.SetCursor("3")

	b.QueueText(1, &core.RoomText{OK: false, StatusMessage: "Internal error"})
	require.Error(t, e.PollMessages(context.Background()))

	assert.Equal(t, []string{"lobby"}, e.ActiveRoomNames())
	assert.Equal(t, "3", r.Cursor())
	assert.Empty(t, br.Events())
}

func TestIdlerRotation(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	opts := Options{
		Idler: Idler{Enabled: true, MaxIdle: time.Minute, Strings: []string{".", ".."}},
		Now:   func() time.Time { return now },
	}
	e, b, br := newTestEngine(t, opts)
	r := mustJoin(t, e, "lobby")

	require.NoError(t, e.PollMessages(context.Background()))
	assert.Empty(t, b.SentMessages(), "fresh room must not idle")

	r.Touch(now.Add(-2*time.Minute), ".")
	require.NoError(t, e.PollMessages(context.Background()))

	sent := b.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "..", sent[0].Text)
	assert.Equal(t, []string{"system lobby IDLER: .."}, br.Events())
	assert.Equal(t, "..", r.LastText())

	now = now.Add(2 * time.Minute)
	require.NoError(t, e.PollMessages(context.Background()))
	sent = b.SentMessages()
	require.Len(t, sent, 2)
	assert.Equal(t, ".", sent[1].Text)
}

func TestNextIdleStringFallback(t *testing.T) {
	e := New(Options{Idler: Idler{Strings: []string{"."}}}, enginetest.NewBackend(), &enginetest.Bridge{}, nil)

	assert.Equal(t, "...", e.nextIdleString("."))
	assert.Equal(t, ".", e.nextIdleString("x"))

	empty := New(Options{}, enginetest.NewBackend(), &enginetest.Bridge{}, nil)
	assert.Equal(t, "...", empty.nextIdleString(""))
}

func TestStoredMessagesCappedAndOrdered(t *testing.T) {
	e, b, br := newTestEngine(t, Options{})
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	b.Pending = 2
	b.Senders = []*core.User{alice, carol}
	b.Stored[alice.ID] = []core.StoredMessage{
		{Text: "old", SenderID: alice.ID, SentAt: base},
		{Text: "mine", SenderID: alice.ID, SentAt: base.Add(time.Hour), FromSelf: true},
	}
	b.Stored[carol.ID] = []core.StoredMessage{
		{Text: "newest", SenderID: carol.ID, SentAt: base.Add(3 * time.Minute)},
		{Text: "mid", SenderID: carol.ID, SentAt: base.Add(2 * time.Minute)},
	}

	require.NoError(t, e.CheckStoredMessages(context.Background()))
	assert.Equal(t, []string{
		"private carol mid @2024-05-01T12:02:00Z",
		"private carol newest @2024-05-01T12:03:00Z",
	}, br.Events())

	b.Pending = 0
	require.NoError(t, e.CheckStoredMessages(context.Background()))
	assert.Equal(t, 1, b.Calls("StoredMessageSenders"))
}

func TestUserProfile(t *testing.T) {
	e, b, _ := newTestEngine(t, Options{})
	ctx := context.Background()
	b.Profiles[bob.ID] = &core.Profile{Age: "30", Karma: 5}

	_, err := e.UserProfile(ctx, "bob")
	require.ErrorIs(t, err, core.ErrUserNotFound, "not a member and not cached yet")

	mustJoin(t, e, "lobby")
	p, err := e.UserProfile(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "bob", p.User.Nick)
	assert.Equal(t, "30", p.Profile.Age)
}

func TestTasksRunUntilLogout(t *testing.T) {
	opts := Options{PresenceInterval: 5 * time.Millisecond, MessageInterval: 5 * time.Millisecond}
	e, b, _ := newTestEngine(t, opts)
	mustJoin(t, e, "lobby")

	e.Start(context.Background())
	require.Eventually(t, func() bool {
		return b.Calls("PingHeader") > 2 && b.Calls("RoomText") > 2
	}, time.Second, 5*time.Millisecond)

	b.LogoutText = "still here"
	require.ErrorIs(t, e.Logout(context.Background()), core.ErrLogoutFailed)
	assert.True(t, e.LoggedIn())

	b.LogoutText = enginetest.LogoutPage
	require.NoError(t, e.Logout(context.Background()))
	assert.False(t, e.LoggedIn())
	assert.Empty(t, e.ActiveRoomNames())

	pings := b.Calls("PingHeader")
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, pings, b.Calls("PingHeader"))
}

func TestTaskFailureDoesNotStopScheduling(t *testing.T) {
	opts := Options{MessageInterval: 5 * time.Millisecond}
	e, b, _ := newTestEngine(t, opts)
	mustJoin(t, e, "lobby")
	b.SetError("RoomText", errors.New("boom"))

	e.Start(context.Background())
	defer e.Stop()

	require.Eventually(t, func() bool { return b.Calls("RoomText") > 3 }, time.Second, 5*time.Millisecond)
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}
