package irc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/chatgate/internal/core"
	"github.com/vovakirdan/chatgate/internal/engine/enginetest"
)

const (
	testHost    = "gate.test"
	lineTimeout = 2 * time.Second
)

var (
	bob   = &core.User{ID: 2, Nick: "bob", Gender: core.GenderMale}
	alice = &core.User{ID: 9, Nick: "alice", Gender: core.GenderFemale}
	carol = &core.User{ID: 10, Nick: "carol", Gender: core.GenderFemale}
	dan   = &core.User{ID: 12, Nick: "dan", Gender: core.GenderMale}
	erin  = &core.User{ID: 14, Nick: "erin", Gender: core.GenderMale, Anonymous: true}
	john  = &core.User{ID: 20, Nick: "John Doe", Gender: core.GenderMale, Rooms: []string{"dev room", "lobby"}}
)

type testClient struct {
	t       *testing.T
	conn    net.Conn
	lines   chan string
	sess    *Session
	backend *enginetest.Backend
	done    chan error
	pings   int
}

// newTestClient connects a session to a backend with two rooms: "lobby"
// (bob, carol, dan as admin, erin as operator) and "dev room". setup runs
// before the session starts.
func newTestClient(t *testing.T, setup func(b *enginetest.Backend)) *testClient {
	t.Helper()

	b := enginetest.NewBackend()
	b.AddRoom(1, "lobby", bob, carol, dan, erin)
	b.AddRoom(2, "dev room")
	b.AddUser(alice)
	b.Rooms[0].Description = "Main hall"
	b.Rooms[0].OperatorID = erin.ID
	b.Admins[1] = []string{"dan"}
	b.Infos[1] = core.RoomInfo{Description: "Main hall", OperatorID: erin.ID}
	if setup != nil {
		setup(b)
	}

	server, client := net.Pipe()
	cfg := SessionConfig{Hostname: testHost, Version: "test", DefaultGender: core.GenderMale}
	sess := NewSession("s1", server, cfg, b, nil)

	c := &testClient{
		t:       t,
		conn:    client,
		lines:   make(chan string, 256),
		sess:    sess,
		backend: b,
		done:    make(chan error, 1),
	}
	go func() { c.done <- sess.Run(context.Background()) }()
	go func() {
		defer close(c.lines)
		sc := bufio.NewScanner(client)
		for sc.Scan() {
			c.lines <- strings.TrimRight(sc.Text(), "\r")
		}
	}()

	t.Cleanup(func() {
		_ = client.Close()
		select {
		case <-c.done:
		case <-time.After(lineTimeout):
			t.Error("session did not stop")
		}
	})
	return c
}

func (c *testClient) send(line string) {
	c.t.Helper()
	_, err := fmt.Fprintf(c.conn, "%s\r\n", line)
	require.NoError(c.t, err)
}

func (c *testClient) mustLine() string {
	c.t.Helper()
	select {
	case line, ok := <-c.lines:
		require.True(c.t, ok, "connection closed")
		return line
	case <-time.After(lineTimeout):
		c.t.Fatal("timed out waiting for a line")
		return ""
	}
}

// sync collects every line the session writes until it answers a PING.
func (c *testClient) sync() []string {
	c.t.Helper()
	c.pings++
	token := fmt.Sprintf("sync-%d", c.pings)
	c.send("PING " + token)

	pong := fmt.Sprintf(":%s PONG %s :%s", testHost, testHost, token)
	var lines []string
	for {
		line := c.mustLine()
		if line == pong {
			return lines
		}
		lines = append(lines, line)
	}
}

// roundtrip sends a command and returns the lines it produced.
func (c *testClient) roundtrip(line string) []string {
	c.t.Helper()
	c.send(line)
	return c.sync()
}

func (c *testClient) login() {
	c.t.Helper()
	lines := c.roundtrip("NICK bob")
	require.NotEmpty(c.t, lines)
	require.Contains(c.t, lines[0], " 001 bob ")
}

func (c *testClient) join(channel string) []string {
	c.t.Helper()
	lines := c.roundtrip("JOIN " + channel)
	require.NotEmpty(c.t, lines)
	return lines
}

func TestCommandsRequireLogin(t *testing.T) {
	c := newTestClient(t, nil)

	assert.Equal(t, []string{":gate.test 451 * :You have not registered"}, c.roundtrip("JOIN #lobby"))
	assert.Equal(t, []string{":gate.test 421 * FOO :Unknown command"}, c.roundtrip("FOO bar"))
	assert.Equal(t, []string{":gate.test 461 * USER :Not enough parameters"}, c.roundtrip("USER"))
	assert.Empty(t, c.roundtrip("TOPIC #lobby :hi"))
	assert.Equal(t, StateUnauthenticated, c.sess.State())
}

func TestPingAnswersWithParams(t *testing.T) {
	c := newTestClient(t, nil)
	c.send("PING :irc.example")
	assert.Equal(t, ":gate.test PONG gate.test :irc.example", c.mustLine())
}

func TestLoginFailureThenRetry(t *testing.T) {
	c := newTestClient(t, func(b *enginetest.Backend) {
		b.LoginPage = enginetest.AlertPage("Nick is taken")
	})

	c.send("USER bobby 0 * :Bob")
	assert.Equal(t, []string{":gate.test 464 bob :Nick is taken"}, c.roundtrip("NICK bob"))
	assert.Equal(t, StateUnauthenticated, c.sess.State())

	c.backend.SetLoginPage(enginetest.LoggedPage)
	lines := c.roundtrip("NICK bob")
	require.NotEmpty(t, lines)
	assert.Equal(t, ":gate.test 001 bob :Welcome to the ChatGate IRC gateway bob", lines[0])
	assert.Contains(t, lines, ":gate.test 372 bob :- Idler enabled: false")
	assert.Contains(t, lines, ":gate.test 376 bob :End of /MOTD command.")
	assert.Equal(t, StateAuthenticated, c.sess.State())
	assert.Equal(t, "bobby", c.sess.Username())
	assert.Equal(t, 2, c.backend.Calls("LoginAnonymously"))
}

func TestPasswordSelectsCredentialedLogin(t *testing.T) {
	c := newTestClient(t, nil)
	c.send("PASS secret")
	c.login()
	assert.Equal(t, 1, c.backend.Calls("Login"))
	assert.Zero(t, c.backend.Calls("LoginAnonymously"))
}

func TestJoinRendersRoster(t *testing.T) {
	c := newTestClient(t, nil)
	c.login()

	assert.Equal(t, []string{
		":bob!bob@gate.test JOIN #lobby",
		":gate.test 332 bob #lobby :Main hall",
		":gate.test 353 bob = #lobby :bob +carol @dan %erin",
		":gate.test 366 bob #lobby :End of /NAMES list.",
	}, c.join("#lobby"))
	assert.Equal(t, []string{"lobby"}, c.sess.Engine().ActiveRoomNames())
}

func TestJoinEncodesSpaces(t *testing.T) {
	c := newTestClient(t, nil)
	c.login()

	lines := c.join("#dev\u00a0room")
	assert.Equal(t, ":bob!bob@gate.test JOIN #dev\u00a0room", lines[0])
	assert.NotNil(t, c.sess.Engine().ActiveRoom("dev room"))
}

func TestJoinUnknownRoomIsIgnored(t *testing.T) {
	c := newTestClient(t, nil)
	c.login()

	assert.Empty(t, c.roundtrip("JOIN #nowhere"))
	assert.Empty(t, c.sess.Engine().ActiveRoomNames())
}

func TestPolledEnterBecomesJoin(t *testing.T) {
	c := newTestClient(t, nil)
	c.login()
	c.join("#lobby")

	c.backend.QueueText(1, &core.RoomText{
		OK:     true,
		Cursor: "5",
		Events: []core.RoomEvent{{Kind: core.EventEnter, UserID: alice.ID, User: alice}},
	})
	require.NoError(t, c.sess.Engine().PollMessages(context.Background()))

	assert.Equal(t, []string{
		":alice!alice@gate.test JOIN #lobby",
		":gate.test MODE #lobby +v alice",
	}, c.sync())
	assert.Equal(t, "5", c.sess.Engine().ActiveRoom("lobby").Cursor())
}

func TestAnonymousJoinAnnounced(t *testing.T) {
	c := newTestClient(t, nil)
	c.login()
	c.join("#dev\u00a0room")

	c.backend.QueueText(2, &core.RoomText{
		OK:     true,
		Cursor: "1",
		Events: []core.RoomEvent{{Kind: core.EventEnter, UserID: erin.ID, User: erin}},
	})
	require.NoError(t, c.sess.Engine().PollMessages(context.Background()))

	assert.Equal(t, []string{
		":erin!erin@gate.test JOIN #dev\u00a0room",
		":gate.test NOTICE #dev\u00a0room :INFO: erin is anonymous",
	}, c.sync())
}

func TestRoomMessagesAndSelfEcho(t *testing.T) {
	c := newTestClient(t, nil)
	c.login()
	c.join("#lobby")

	c.backend.QueueText(1, &core.RoomText{
		OK:     true,
		Cursor: "7",
		Events: []core.RoomEvent{
			{UserID: bob.ID, Text: "my own line"},
			{UserID: carol.ID, Text: "fish &amp; chips"},
			{UserID: alice.ID, Text: "psst", Whisper: "1"},
		},
	})
	require.NoError(t, c.sess.Engine().PollMessages(context.Background()))

	assert.Equal(t, []string{
		":carol!carol@gate.test PRIVMSG #lobby :fish & chips",
		":alice!alice@gate.test PRIVMSG bob :psst",
	}, c.sync())
}

func TestPrivmsgSendsToRoomAndWhispers(t *testing.T) {
	c := newTestClient(t, nil)
	c.login()
	c.join("#lobby")

	assert.Empty(t, c.roundtrip("PRIVMSG #lobby :hello there"))
	assert.Empty(t, c.roundtrip("PRIVMSG carol :secret"))

	sent := c.backend.SentMessages()
	require.Len(t, sent, 2)
	assert.Equal(t, enginetest.Sent{RoomID: 1, Cursor: "", Text: "hello there"}, sent[0])
	assert.Equal(t, 1, sent[1].RoomID)
	assert.Equal(t, `/w "carol" secret`, sent[1].Text)
}

func TestPrivmsgFailuresComeFromGateway(t *testing.T) {
	c := newTestClient(t, nil)
	c.login()

	lines := c.roundtrip("PRIVMSG carol :hi")
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], ":ChatGate PRIVMSG bob :Failed to create a whisper message!"), lines[0])

	assert.Equal(t, []string{":ChatGate PRIVMSG bob :You are not in the room lobby"}, c.roundtrip("PRIVMSG #lobby :hi"))

	c.join("#lobby")
	c.backend.QueueSend(1, &core.RoomText{OK: true, Cursor: ""})
	lines = c.roundtrip("PRIVMSG #lobby :too fast")
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], ":ChatGate PRIVMSG bob :"), lines[0])
}

func TestKickedFromRoom(t *testing.T) {
	c := newTestClient(t, nil)
	c.login()
	c.join("#lobby")

	c.backend.QueueText(1, &core.RoomText{StatusMessage: core.StatusUserNotInRoom})
	assert.ErrorIs(t, c.sess.Engine().PollMessages(context.Background()), core.ErrMembershipRevoked)

	assert.Equal(t, []string{":gate.test KICK #lobby bob :You were kicked from the room"}, c.sync())
	assert.Nil(t, c.sess.Engine().ActiveRoom("lobby"))
}

func TestStoredMessagesCarryTimestamp(t *testing.T) {
	c := newTestClient(t, func(b *enginetest.Backend) {
		b.Pending = 1
		b.Senders = []*core.User{alice}
		b.Stored[alice.ID] = []core.StoredMessage{
			{Text: "old", SenderID: alice.ID, SentAt: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)},
			{Text: "see you", SenderID: alice.ID, SentAt: time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)},
		}
	})
	c.login()

	require.NoError(t, c.sess.Engine().CheckStoredMessages(context.Background()))
	assert.Equal(t, []string{
		":alice!alice@gate.test PRIVMSG bob :[MESSAGE - 05.03.2024 14:07:09] see you",
	}, c.sync())
}

func TestModeGrantDemotesPreviousOperator(t *testing.T) {
	c := newTestClient(t, nil)
	c.login()
	c.join("#lobby")

	assert.Equal(t, []string{":gate.test MODE #lobby -h erin"}, c.roundtrip("MODE #lobby +o carol"))
	sent := c.backend.SentMessages()
	require.NotEmpty(t, sent)
	assert.Equal(t, "/admin carol", sent[len(sent)-1].Text)

	assert.Empty(t, c.roundtrip("MODE #lobby"))
}

func TestKickFailureNoticesRooms(t *testing.T) {
	c := newTestClient(t, nil)
	c.login()
	c.join("#lobby")

	c.backend.SetError("SendMessage", errors.New("boom"))
	assert.Equal(t,
		[]string{":gate.test NOTICE #lobby :Failed to kick user carol from the room lobby!"},
		c.roundtrip("KICK #lobby carol :spam"))
}

func TestWhoListsMembersAndModes(t *testing.T) {
	c := newTestClient(t, nil)
	c.login()
	c.join("#lobby")

	lines := c.roundtrip("WHO #lobby")
	assert.Contains(t, lines, ":gate.test 352 bob #lobby carol gate.test gate.test carol H :0 carol")
	assert.Contains(t, lines, ":gate.test 315 bob #lobby :End of WHO list")
	assert.Contains(t, lines, ":gate.test MODE #lobby +v carol")
	assert.Contains(t, lines, ":gate.test MODE #lobby +o dan")
	assert.Contains(t, lines, ":gate.test MODE #lobby +h erin")
	assert.Equal(t, 1, c.backend.Calls("RoomInfo"))
}

func TestListRooms(t *testing.T) {
	c := newTestClient(t, nil)
	c.login()

	assert.Equal(t, []string{
		":gate.test 321 bob Channel :Users  Name",
		":gate.test 322 bob #dev\u00a0room 0 :",
		":gate.test 322 bob #lobby 4 :Main hall",
		":gate.test 323 bob :End of /LIST",
	}, c.roundtrip("LIST"))

	lines := c.roundtrip("LIST #lobby")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines, ":gate.test 322 bob #lobby 4 :Main hall")
}

func TestWhoisProfile(t *testing.T) {
	c := newTestClient(t, func(b *enginetest.Backend) {
		b.Profiles[carol.ID] = &core.Profile{Age: "25", ViewCount: "12"}
	})
	c.login()
	c.join("#lobby")

	lines := c.roundtrip("WHOIS carol")
	require.NotEmpty(t, lines)
	assert.Equal(t, ":gate.test NOTICE #lobby :=== WHOIS Profile ===", lines[0])
	assert.Contains(t, lines, ":gate.test NOTICE #lobby :Nick: carol")
	assert.Contains(t, lines, ":gate.test NOTICE #lobby :Age: 25")
	assert.Contains(t, lines, ":gate.test NOTICE #lobby :Gender: female")
	assert.Contains(t, lines, ":gate.test NOTICE #lobby :Profile views: 12x")
	assert.Equal(t, ":gate.test NOTICE #lobby :=== End Of WHOIS Profile ===", lines[len(lines)-1])

	assert.Equal(t,
		[]string{":gate.test NOTICE #lobby :WHOIS: Failed to get profile of: nobody"},
		c.roundtrip("WHOIS nobody"))
}

func TestPartLeavesRoom(t *testing.T) {
	c := newTestClient(t, nil)
	c.login()
	c.join("#lobby")

	assert.Equal(t, []string{":bob!bob@gate.test PART #lobby"}, c.roundtrip("PART #lobby"))
	assert.Empty(t, c.sess.Engine().ActiveRoomNames())
}

func TestQuitLogsOut(t *testing.T) {
	c := newTestClient(t, nil)
	c.login()

	c.send("QUIT :bye")
	select {
	case err := <-c.done:
		require.NoError(t, err)
		c.done <- err
	case <-time.After(lineTimeout):
		t.Fatal("session did not end")
	}
	assert.Equal(t, 1, c.backend.Calls("Logout"))
	assert.Equal(t, StateTerminated, c.sess.State())
	assert.False(t, c.sess.Engine().LoggedIn())
}

func TestSpacedNamesSurviveCommands(t *testing.T) {
	c := newTestClient(t, func(b *enginetest.Backend) {
		b.Members[2] = []*core.User{john}
		b.Users[john.ID] = john
	})
	c.login()

	assert.Contains(t, c.join("#dev\u00a0room"), ":gate.test 353 bob = #dev\u00a0room :bob John\u00a0Doe")

	assert.Empty(t, c.roundtrip("PRIVMSG John\u00a0Doe :hi"))
	assert.Empty(t, c.roundtrip("KICK #dev\u00a0room John\u00a0Doe :bye"))
	assert.Empty(t, c.roundtrip("MODE #dev\u00a0room +o John\u00a0Doe"))

	var texts []string
	for _, m := range c.backend.SentMessages() {
		assert.Equal(t, 2, m.RoomID)
		texts = append(texts, m.Text)
	}
	assert.Equal(t, []string{`/w "John Doe" hi`, "/kick John Doe bye", "/admin John Doe"}, texts)

	lines := c.roundtrip("WHOIS John\u00a0Doe")
	assert.Contains(t, lines, ":gate.test NOTICE #dev\u00a0room :Nick: John\u00a0Doe")
	assert.Contains(t, lines, ":gate.test NOTICE #dev\u00a0room :Chatting in: dev\u00a0room, lobby")

	assert.Equal(t, []string{":bob!bob@gate.test PART #dev\u00a0room"}, c.roundtrip("PART #lobby,#dev\u00a0room"))
	assert.Empty(t, c.sess.Engine().ActiveRoomNames())
}

func TestRejoinDoesNotRepeatRoster(t *testing.T) {
	c := newTestClient(t, nil)
	c.login()
	c.join("#lobby")

	assert.Empty(t, c.roundtrip("JOIN #lobby"))
	assert.Equal(t, 1, c.backend.Calls("Join"))
	assert.Equal(t, []string{"lobby"}, c.sess.Engine().ActiveRoomNames())
}
