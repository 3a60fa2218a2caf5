package irc

import (
	"time"

	"github.com/lrstanley/girc"

	"github.com/vovakirdan/chatgate/internal/core"
)

// storedTimeFormat prefixes delivered offline messages.
const storedTimeFormat = "02.01.2006 15:04:05"

// bridge renders engine events for the session. It runs under the engine
// lock and therefore only reads the rooms and users it is handed.
type bridge struct {
	s *Session
}

var _ core.Bridge = (*bridge)(nil)

func (b *bridge) self(u *core.User) bool {
	return u != nil && u.Nick == b.s.Nick()
}

func (b *bridge) RoomMessage(room *core.Room, user *core.User, text string) {
	if b.self(user) {
		return
	}
	b.s.replyPrivmsg(b.s.userPrefix(user.Nick), channelName(room.Name()), text)
}

func (b *bridge) PrivateMessage(user *core.User, text string, sentAt time.Time) {
	if b.self(user) {
		return
	}
	if !sentAt.IsZero() {
		text = "[MESSAGE - " + sentAt.Format(storedTimeFormat) + "] " + text
	}
	b.s.replyPrivmsg(b.s.userPrefix(user.Nick), EncodeName(b.s.Nick()), text)
}

func (b *bridge) UserJoined(room *core.Room, user *core.User) {
	if b.self(user) {
		return
	}
	b.s.replyJoin(b.s.userPrefix(user.Nick), room.Name())
	b.s.sendUserModes(room, user)
	if user.Anonymous {
		b.s.replyNotice(channelName(room.Name()), "INFO: "+EncodeName(user.Nick)+" is anonymous")
	}
}

func (b *bridge) UserLeft(room *core.Room, user *core.User) {
	if b.self(user) {
		return
	}
	b.s.replyPart(b.s.userPrefix(user.Nick), room.Name())
}

func (b *bridge) UserMode(room *core.Room, user *core.User, mode string) {
	b.s.replyMode(room.Name(), mode, user.Nick)
}

func (b *bridge) SystemMessage(room *core.Room, text string) {
	b.s.replyNotice(channelName(room.Name()), text)
}

func (b *bridge) Kicked(room *core.Room) {
	b.s.log.Warn().Str("room", room.Name()).Msg("kicked from room")
	b.s.sendf(":%s %s %s %s :You were kicked from the room", b.s.cfg.Hostname, girc.KICK, channelName(room.Name()), EncodeName(b.s.Nick()))
}
