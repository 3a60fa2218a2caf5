// Package irc exposes the synchronization engine to IRC clients: one Session
// per TCP connection and a Server accepting them.
package irc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"github.com/lrstanley/girc"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatgate/internal/core"
	"github.com/vovakirdan/chatgate/internal/engine"
)

const logoutTimeout = 10 * time.Second

// State of a session.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateTerminated:
		return "terminated"
	default:
		return "unauthenticated"
	}
}

// SessionConfig holds what every session of a server shares.
type SessionConfig struct {
	Hostname      string
	GatewayNick   string
	Version       string
	MOTD          []string
	DefaultGender core.Gender
	Engine        engine.Options
}

// Session is one IRC client connection and its backend shadow session.
type Session struct {
	ID        string
	StartedAt time.Time

	conn   net.Conn
	cfg    SessionConfig
	engine *engine.Engine
	log    zerolog.Logger

	wmu    sync.Mutex
	w      *bufio.Writer
	closed bool

	mu       sync.Mutex
	state    State
	nick     string
	username string
	password string
}

// NewSession binds conn to a fresh engine talking to backend.
func NewSession(id string, conn net.Conn, cfg SessionConfig, backend engine.Backend, logger *zerolog.Logger) *Session {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if cfg.GatewayNick == "" {
		cfg.GatewayNick = "ChatGate"
	}
	if cfg.Hostname == "" {
		cfg.Hostname = "localhost"
	}
	s := &Session{
		ID:        id,
		StartedAt: time.Now(),
		conn:      conn,
		cfg:       cfg,
		w:         bufio.NewWriter(conn),
		log: logger.With().
			Str("session_id", id).
			Str("remote", conn.RemoteAddr().String()).
			Logger(),
	}
	engineLog := s.log.With().Str("component", "engine").Logger()
	s.engine = engine.New(cfg.Engine, backend, &bridge{s: s}, &engineLog)
	return s
}

// Engine returns the session's synchronization engine.
func (s *Session) Engine() *engine.Engine {
	return s.engine
}

// Nick is the IRC nickname, falling back to the USER name until NICK is sent.
func (s *Session) Nick() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nick == "" {
		return s.username
	}
	return s.nick
}

// Username is the USER name, falling back to the nickname.
func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.username == "" {
		return s.nick
	}
	return s.username
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

// Run starts the engine tasks and reads commands until QUIT, EOF or a read
// error. The backend session is logged out before Run returns.
func (s *Session) Run(ctx context.Context) error {
	s.log.Info().Msg("session started")
	s.engine.Start(ctx)
	defer s.terminate(ctx)

	r := textproto.NewReader(bufio.NewReader(s.conn))
	for {
		line, err := r.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		if quit := s.handle(ctx, line); quit {
			return nil
		}
	}
}

// Close drops the connection, which ends Run.
func (s *Session) Close() error {
	return s.conn.Close()
}

func (s *Session) terminate(ctx context.Context) {
	if s.engine.LoggedIn() {
		s.log.Info().Msg("still logged in, logging out")
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), logoutTimeout)
		if err := s.engine.Logout(lctx); err != nil {
			s.log.Warn().Err(err).Msg("logout failed")
		}
		cancel()
	}
	s.engine.Stop()
	s.setState(StateTerminated)

	s.wmu.Lock()
	s.closed = true
	s.wmu.Unlock()
	_ = s.conn.Close()
	s.log.Info().Msg("session terminated")
}

// handle dispatches one client line and reports whether the session ends.
func (s *Session) handle(ctx context.Context, line string) bool {
	m, err := parseLine(line)
	if err != nil {
		if !errors.Is(err, errEmptyLine) {
			s.log.Warn().Err(err).Msg("unparseable line")
		}
		return false
	}

	if m.verb == girc.PASS {
		s.log.Info().Msg("received PASS")
	} else {
		s.log.Info().Str("command", m.verb).Strs("args", m.params).Msg("irc command")
	}

	switch m.verb {
	case girc.PASS:
		s.handlePass(m)
	case girc.NICK:
		s.handleNick(ctx, m)
	case girc.USER:
		s.handleUser(m)
	case girc.PING:
		s.sendf(":%s %s %s :%s", s.cfg.Hostname, girc.PONG, s.cfg.Hostname, strings.Join(m.params, " "))
	case girc.QUIT:
		return true
	case girc.OPER, girc.TOPIC, girc.NAMES, girc.INVITE:
		s.log.Info().Str("command", m.verb).Msg("command not implemented")
	case girc.LIST, girc.JOIN, girc.PART, girc.WHO, girc.WHOIS, girc.PRIVMSG, girc.MODE, girc.KICK:
		if s.State() != StateAuthenticated {
			s.reply(girc.ERR_NOTREGISTERED, ":You have not registered")
			return false
		}
		s.dispatch(ctx, m)
	default:
		s.log.Warn().Str("command", m.verb).Msg("unrecognized command")
		s.reply(girc.ERR_UNKNOWNCOMMAND, m.verb+" :Unknown command")
	}
	return false
}

func (s *Session) dispatch(ctx context.Context, m message) {
	switch m.verb {
	case girc.LIST:
		s.handleList(ctx, m)
	case girc.JOIN:
		s.handleJoin(ctx, m)
	case girc.PART:
		s.handlePart(ctx, m)
	case girc.WHO:
		s.handleWho(ctx, m)
	case girc.WHOIS:
		s.handleWhois(ctx, m)
	case girc.PRIVMSG:
		s.handlePrivmsg(ctx, m)
	case girc.MODE:
		s.handleMode(ctx, m)
	case girc.KICK:
		s.handleKick(ctx, m)
	}
}

func (s *Session) handlePass(m message) {
	pass := m.arg(0)
	if pass == "" {
		return
	}
	s.mu.Lock()
	s.password = pass
	s.mu.Unlock()
}

func (s *Session) handleUser(m message) {
	username, err := parseUser(m)
	if err != nil {
		s.needMoreParams(girc.USER)
		return
	}
	s.mu.Lock()
	s.username = DecodeName(username)
	s.mu.Unlock()
}

// handleNick sets the nickname and logs in. A stored password selects the
// credentialed login; it is consumed by the attempt.
func (s *Session) handleNick(ctx context.Context, m message) {
	if err := m.need(1); err != nil {
		s.needMoreParams(girc.NICK)
		return
	}
	nick := DecodeName(m.arg(0))

	s.mu.Lock()
	if s.state == StateAuthenticated {
		s.mu.Unlock()
		s.log.Info().Str("nick", nick).Msg("nick change after login is not supported")
		return
	}
	s.nick = nick
	password := s.password
	s.password = ""
	s.mu.Unlock()

	var err error
	if password != "" {
		err = s.engine.Login(ctx, nick, password)
	} else {
		err = s.engine.LoginAnonymously(ctx, nick, s.cfg.DefaultGender)
	}
	if err != nil {
		s.log.Error().Err(err).Str("nick", nick).Msg("login failed")
		s.reply(girc.ERR_PASSWDMISMATCH, ":"+err.Error())
		return
	}

	s.log.Info().Str("nick", nick).Msg("logged in")
	s.setState(StateAuthenticated)
	s.sendWelcome()
}

func (s *Session) sendWelcome() {
	host := s.cfg.Hostname
	nick := EncodeName(s.Nick())

	s.reply(girc.RPL_WELCOME, fmt.Sprintf(":Welcome to the ChatGate IRC gateway %s", nick))
	s.reply(girc.RPL_YOURHOST, fmt.Sprintf(":Your host is %s, running version %s", host, s.cfg.Version))
	s.reply(girc.RPL_CREATED, fmt.Sprintf(":This session was created %s", s.StartedAt.Format(time.RFC1123)))
	s.reply(girc.RPL_MYINFO, fmt.Sprintf("%s %s o ohvA", host, s.cfg.Version))

	s.reply(girc.RPL_MOTDSTART, fmt.Sprintf(":- %s Message of the day -", host))
	for _, line := range s.motd() {
		s.reply(girc.RPL_MOTD, ":- "+line)
	}
	s.reply(girc.RPL_ENDOFMOTD, ":End of /MOTD command.")
}

func (s *Session) motd() []string {
	idler := s.cfg.Engine.Idler
	plugins := s.cfg.Engine.Plugins

	lines := append([]string(nil), s.cfg.MOTD...)
	lines = append(lines,
		"",
		fmt.Sprintf("Welcome to ChatGate %s!", s.cfg.Version),
		"",
		fmt.Sprintf("Idler enabled: %t", idler.Enabled),
		fmt.Sprintf("Idle time: %s", idler.MaxIdle),
		fmt.Sprintf("Idler strings: %s", strings.Join(idler.Strings, ",")),
		"",
		fmt.Sprintf("Loaded plugins: %s", listOrNone(plugins.Loaded())),
		fmt.Sprintf("Disabled plugins: %s", listOrNone(plugins.Disabled())),
	)
	return lines
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
