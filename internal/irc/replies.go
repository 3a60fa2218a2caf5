package irc

import (
	"fmt"
	"strings"

	"github.com/lrstanley/girc"
)

const crlf = "\r\n"

// send writes one line. Lines are dropped once the session terminated.
func (s *Session) send(line string) {
	line = strings.NewReplacer("\r", " ", "\n", " ").Replace(line)

	s.wmu.Lock()
	defer s.wmu.Unlock()
	if s.closed {
		return
	}
	s.log.Debug().Str("line", line).Msg(">>")
	if _, err := s.w.WriteString(line + crlf); err != nil {
		s.log.Warn().Err(err).Msg("write failed")
		return
	}
	if err := s.w.Flush(); err != nil {
		s.log.Warn().Err(err).Msg("flush failed")
	}
}

func (s *Session) sendf(format string, args ...any) {
	s.send(fmt.Sprintf(format, args...))
}

// reply sends a numeric addressed to the session nick, or "*" before one is known.
func (s *Session) reply(code, text string) {
	nick := EncodeName(s.Nick())
	if nick == "" {
		nick = "*"
	}
	s.sendf(":%s %s %s %s", s.cfg.Hostname, code, nick, text)
}

func (s *Session) needMoreParams(verb string) {
	s.reply(girc.ERR_NEEDMOREPARAMS, verb+" :Not enough parameters")
}

// selfPrefix is the source of lines echoing the session's own actions.
func (s *Session) selfPrefix() string {
	nick := EncodeName(s.Nick())
	return fmt.Sprintf("%s!%s@%s", nick, EncodeName(s.Username()), s.cfg.Hostname)
}

func (s *Session) userPrefix(nick string) string {
	nick = EncodeName(nick)
	return fmt.Sprintf("%s!%s@%s", nick, nick, s.cfg.Hostname)
}

func (s *Session) replyJoin(prefix, room string) {
	s.sendf(":%s %s %s", prefix, girc.JOIN, channelName(room))
}

func (s *Session) replyPart(prefix, room string) {
	s.sendf(":%s %s %s", prefix, girc.PART, channelName(room))
}

func (s *Session) replyPrivmsg(prefix, target, text string) {
	s.sendf(":%s %s %s :%s", prefix, girc.PRIVMSG, target, text)
}

func (s *Session) replyNotice(target, text string) {
	s.sendf(":%s %s %s :%s", s.cfg.Hostname, girc.NOTICE, target, text)
}

// replyNoticeAll notices every joined room, or the user when none is joined.
func (s *Session) replyNoticeAll(text string) {
	names := s.engine.ActiveRoomNames()
	if len(names) == 0 {
		s.replyNotice(EncodeName(s.Nick()), text)
		return
	}
	for _, name := range names {
		s.replyNotice(channelName(name), text)
	}
}

func (s *Session) replyMode(room, mode, nick string) {
	s.sendf(":%s %s %s %s %s", s.cfg.Hostname, girc.MODE, channelName(room), mode, EncodeName(nick))
}

// gatewayError reports a failed operation as a private message from the
// gateway identity.
func (s *Session) gatewayError(text string) {
	s.replyPrivmsg(s.cfg.GatewayNick, EncodeName(s.Nick()), text)
}
