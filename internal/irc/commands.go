package irc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lrstanley/girc"
)

var errEmptyLine = errors.New("empty line")

// paramsError means a command lacked required parameters; it maps to 461.
type paramsError struct {
	verb string
}

func (e *paramsError) Error() string {
	return fmt.Sprintf("%s: not enough parameters", e.verb)
}

// message is a parsed client line.
type message struct {
	verb   string
	params []string
}

// parseLine splits a raw line into verb and parameters. Parameters are
// separated by ASCII spaces only; encoded names keep their nameSpace runes.
func parseLine(line string) (message, error) {
	line = strings.TrimRight(line, "\r\n")
	if strings.Trim(line, " ") == "" {
		return message{}, errEmptyLine
	}
	// girc splits on any Unicode space, so nameSpace is hidden while parsing.
	hold := placeholder(line)
	ev := girc.ParseEvent(strings.ReplaceAll(line, nameSpace, hold))
	if ev == nil {
		return message{}, fmt.Errorf("malformed line %q", line)
	}
	params := make([]string, 0, len(ev.Params))
	for _, p := range ev.Params {
		params = append(params, strings.ReplaceAll(p, hold, nameSpace))
	}
	return message{verb: strings.ToUpper(ev.Command), params: params}, nil
}

// placeholder returns a private use rune that does not occur in line.
func placeholder(line string) string {
	for r := rune(0xe000); r <= 0xf8ff; r++ {
		if !strings.ContainsRune(line, r) {
			return string(r)
		}
	}
	return nameSpace
}

func (m message) arg(i int) string {
	if i < len(m.params) {
		return m.params[i]
	}
	return ""
}

// last returns the final parameter, which is the trailing text when present.
func (m message) last() string {
	if len(m.params) == 0 {
		return ""
	}
	return m.params[len(m.params)-1]
}

func (m message) need(n int) error {
	if len(m.params) < n {
		return &paramsError{verb: m.verb}
	}
	return nil
}

// parseUser returns the first token of USER, the username.
func parseUser(m message) (string, error) {
	fields := strings.Fields(m.arg(0))
	if len(fields) == 0 {
		return "", &paramsError{verb: m.verb}
	}
	return fields[0], nil
}

// parseChannels splits a comma separated channel list into room names.
func parseChannels(m message) ([]string, error) {
	if err := m.need(1); err != nil {
		return nil, err
	}
	var rooms []string
	for _, ch := range strings.Split(m.arg(0), ",") {
		if ch = strings.Trim(ch, " "); ch != "" {
			rooms = append(rooms, roomName(ch))
		}
	}
	if len(rooms) == 0 {
		return nil, &paramsError{verb: m.verb}
	}
	return rooms, nil
}

type privmsg struct {
	target string
	text   string
}

func parsePrivmsg(m message) (privmsg, error) {
	if err := m.need(2); err != nil {
		return privmsg{}, err
	}
	return privmsg{target: m.arg(0), text: m.last()}, nil
}

// modeChange is "MODE #room +o nick".
type modeChange struct {
	room  string
	modes string
	nick  string
}

// parseMode accepts only the channel operator grant form. ok is false for
// queries and any other mode syntax.
func parseMode(m message) (mc modeChange, ok bool) {
	if len(m.params) < 3 || !isChannel(m.arg(0)) {
		return modeChange{}, false
	}
	modes := m.arg(1)
	if !strings.HasPrefix(modes, "+") || !strings.Contains(modes, "o") {
		return modeChange{}, false
	}
	return modeChange{room: roomName(m.arg(0)), modes: modes, nick: DecodeName(m.arg(2))}, true
}

type kick struct {
	room   string
	user   string
	reason string
}

func parseKick(m message) (kick, error) {
	if err := m.need(2); err != nil {
		return kick{}, err
	}
	k := kick{room: roomName(m.arg(0)), user: DecodeName(m.arg(1))}
	if len(m.params) > 2 {
		k.reason = m.last()
	}
	return k, nil
}
