package irc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lrstanley/girc"

	"github.com/vovakirdan/chatgate/internal/core"
)

func (s *Session) handleList(ctx context.Context, m message) {
	var filter map[string]bool
	if len(m.params) > 0 {
		if names, err := parseChannels(m); err == nil {
			filter = make(map[string]bool, len(names))
			for _, n := range names {
				filter[n] = true
			}
		}
	}

	rooms, err := s.engine.RoomList(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("room list failed")
		s.replyNotice(EncodeName(s.Nick()), "Failed to download the room list")
	}

	s.reply(girc.RPL_LISTSTART, "Channel :Users  Name")
	for _, r := range rooms {
		if filter != nil && !filter[r.Name()] {
			continue
		}
		s.reply(girc.RPL_LIST, fmt.Sprintf("%s %d :%s", channelName(r.Name()), r.UserCount(), r.Description()))
	}
	s.reply(girc.RPL_LISTEND, ":End of /LIST")
}

func (s *Session) handleJoin(ctx context.Context, m message) {
	names, err := parseChannels(m)
	if err != nil {
		s.needMoreParams(girc.JOIN)
		return
	}
	for _, name := range names {
		room, err := s.engine.RoomByName(ctx, name)
		if err != nil {
			s.log.Error().Err(err).Str("room", name).Msg("couldn't find the room")
			continue
		}
		if s.engine.ActiveRoom(room.Name()) != nil {
			s.log.Debug().Str("room", name).Msg("already in the room")
			continue
		}
		if err := s.engine.Join(ctx, room); err != nil {
			s.log.Error().Err(err).Str("room", name).Msg("join failed")
			s.replyNotice(EncodeName(s.Nick()), fmt.Sprintf("Failed to join the room %s: %v", name, err))
			continue
		}

		ch := channelName(room.Name())
		s.replyJoin(s.selfPrefix(), room.Name())
		s.reply(girc.RPL_TOPIC, fmt.Sprintf("%s :%s", ch, room.Description()))
		s.reply(girc.RPL_NAMREPLY, fmt.Sprintf("= %s :%s", ch, s.namesList(room)))
		s.reply(girc.RPL_ENDOFNAMES, ch+" :End of /NAMES list.")
	}
}

// namesList starts with the session nick and lists every other member with
// its highest channel prefix.
func (s *Session) namesList(room *core.Room) string {
	self := s.Nick()
	names := []string{EncodeName(self)}
	for _, u := range room.Members() {
		if u.Nick == self {
			continue
		}
		names = append(names, memberPrefix(room, u)+EncodeName(u.Nick))
	}
	return strings.Join(names, " ")
}

func memberPrefix(room *core.Room, u *core.User) string {
	switch {
	case room.IsAdmin(u.Nick):
		return "@"
	case room.OperatorID() == u.ID:
		return "%"
	case u.Gender == core.GenderFemale:
		return "+"
	default:
		return ""
	}
}

// userModes lists the channel modes a member carries.
func userModes(room *core.Room, u *core.User) []string {
	var modes []string
	if u.Gender == core.GenderFemale {
		modes = append(modes, "+v")
	}
	if room.IsAdmin(u.Nick) {
		modes = append(modes, "+o")
	}
	if room.OperatorID() == u.ID {
		modes = append(modes, "+h")
	}
	if u.IsGlobalAdmin() {
		modes = append(modes, "+A")
	}
	return modes
}

func (s *Session) sendUserModes(room *core.Room, u *core.User) {
	for _, mode := range userModes(room, u) {
		s.replyMode(room.Name(), mode, u.Nick)
	}
}

func (s *Session) handlePart(ctx context.Context, m message) {
	names, err := parseChannels(m)
	if err != nil {
		s.needMoreParams(girc.PART)
		return
	}
	for _, name := range names {
		room := s.engine.ActiveRoom(name)
		if room == nil {
			s.log.Error().Str("room", name).Msg("couldn't find an active room")
			continue
		}
		if err := s.engine.Part(ctx, room); err != nil {
			s.log.Error().Err(err).Str("room", name).Msg("part failed")
			s.replyNotice(EncodeName(s.Nick()), err.Error())
			continue
		}
		s.replyPart(s.selfPrefix(), room.Name())
	}
}

func (s *Session) handleWho(ctx context.Context, m message) {
	if err := m.need(1); err != nil {
		s.needMoreParams(girc.WHO)
		return
	}
	mask := m.arg(0)
	room := s.engine.ActiveRoom(roomName(mask))
	if room == nil {
		s.reply(girc.RPL_ENDOFWHO, mask+" :End of WHO list")
		return
	}
	if err := s.engine.RefreshRoom(ctx, room); err != nil {
		s.log.Warn().Err(err).Str("room", room.Name()).Msg("room refresh failed")
	}

	ch := channelName(room.Name())
	host := s.cfg.Hostname
	members := room.Members()
	for _, u := range members {
		nick := EncodeName(u.Nick)
		s.reply(girc.RPL_WHOREPLY, fmt.Sprintf("%s %s %s %s %s H :0 %s", ch, nick, host, host, nick, nick))
	}
	s.reply(girc.RPL_ENDOFWHO, ch+" :End of WHO list")
	for _, u := range members {
		s.sendUserModes(room, u)
	}
}

func (s *Session) handleWhois(ctx context.Context, m message) {
	if err := m.need(1); err != nil {
		s.needMoreParams(girc.WHOIS)
		return
	}
	nick := DecodeName(m.last())

	p, err := s.engine.UserProfile(ctx, nick)
	if err != nil {
		if !errors.Is(err, core.ErrUserNotFound) {
			s.log.Warn().Err(err).Str("target", nick).Msg("profile lookup failed")
		}
		s.replyNoticeAll("WHOIS: Failed to get profile of: " + EncodeName(nick))
		return
	}

	u, prof := p.User, p.Profile
	s.replyNoticeAll("=== WHOIS Profile ===")
	s.replyNoticeAll(fmt.Sprintf("Anonymous: %t", u.Anonymous))
	s.replyNoticeAll("Nick: " + EncodeName(u.Nick))
	if prof != nil && prof.Age != "" {
		s.replyNoticeAll("Age: " + prof.Age)
	}
	s.replyNoticeAll("Gender: " + u.Gender.String())
	if prof != nil && prof.ViewCount != "" {
		s.replyNoticeAll(fmt.Sprintf("Profile views: %sx", prof.ViewCount))
	}
	s.replyNoticeAll(fmt.Sprintf("Online: %t", u.Online))
	if len(u.Rooms) > 0 {
		rooms := make([]string, 0, len(u.Rooms))
		for _, r := range u.Rooms {
			rooms = append(rooms, EncodeName(r))
		}
		s.replyNoticeAll("Chatting in: " + strings.Join(rooms, ", "))
	}
	if !u.Anonymous && u.ProfileURL != "" {
		s.replyNoticeAll("Profile: " + u.ProfileURL)
	}
	s.replyNoticeAll("=== End Of WHOIS Profile ===")
}

func (s *Session) handlePrivmsg(ctx context.Context, m message) {
	pm, err := parsePrivmsg(m)
	if err != nil {
		s.needMoreParams(girc.PRIVMSG)
		return
	}

	text, notices := s.cfg.Engine.Plugins.ApplyOutgoing(ctx, pm.text)
	for _, n := range notices {
		s.replyNotice(EncodeName(s.Nick()), n)
	}

	if isChannel(pm.target) {
		name := roomName(pm.target)
		room := s.engine.ActiveRoom(name)
		if room == nil {
			s.log.Warn().Str("room", name).Msg("message to a room that is not joined")
			s.gatewayError("You are not in the room " + EncodeName(name))
			return
		}
		err = s.engine.Say(ctx, room, text)
	} else {
		err = s.engine.Whisper(ctx, DecodeName(pm.target), text)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("target", pm.target).Msg("message not delivered")
		s.gatewayError(err.Error())
	}
}

// handleMode grants half-operator rights and demotes the previous holder.
func (s *Session) handleMode(ctx context.Context, m message) {
	mc, ok := parseMode(m)
	if !ok {
		s.log.Debug().Strs("args", m.params).Msg("ignoring mode")
		return
	}
	room := s.engine.ActiveRoom(mc.room)
	if room == nil {
		s.log.Error().Str("room", mc.room).Msg("failed to get room by name")
		return
	}

	previous := room.OperatorID()
	if err := s.engine.Admin(ctx, room, mc.nick); err != nil {
		s.log.Warn().Err(err).Str("target", mc.nick).Msg("admin failed")
		s.gatewayError(err.Error())
		return
	}
	if previous == core.NoOperator {
		return
	}
	prev, err := s.engine.UserByID(ctx, previous)
	if err != nil {
		s.log.Warn().Err(err).Int("uid", previous).Msg("previous operator lookup failed")
		return
	}
	if prev != nil && prev.Nick != mc.nick {
		s.replyMode(room.Name(), "-h", prev.Nick)
	}
}

func (s *Session) handleKick(ctx context.Context, m message) {
	k, err := parseKick(m)
	if err != nil {
		s.needMoreParams(girc.KICK)
		return
	}
	room := s.engine.ActiveRoom(k.room)
	if room == nil {
		s.log.Error().Str("room", k.room).Msg("failed to get room by name")
		return
	}
	if err := s.engine.Kick(ctx, room, k.user, k.reason); err != nil {
		msg := fmt.Sprintf("Failed to kick user %s from the room %s!", EncodeName(k.user), EncodeName(k.room))
		s.log.Warn().Err(err).Msg(msg)
		s.replyNoticeAll(msg)
	}
}
