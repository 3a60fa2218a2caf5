package irc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatgate/internal/engine"
	"github.com/vovakirdan/chatgate/internal/utils"
)

// BackendFactory creates the backend client of one session. Every session
// owns its own cookie jar.
type BackendFactory func() (engine.Backend, error)

// SessionInfo is a snapshot of a connected session.
type SessionInfo struct {
	ID        string    `json:"id"`
	Nick      string    `json:"nick"`
	Remote    string    `json:"remote"`
	State     string    `json:"state"`
	Rooms     []string  `json:"rooms"`
	StartedAt time.Time `json:"started_at"`
}

// Server accepts IRC connections and runs one Session per connection.
type Server struct {
	cfg        SessionConfig
	newBackend BackendFactory
	log        *zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	wg       sync.WaitGroup
}

// NewServer builds a server. Session metrics are taken from cfg.Engine.Metrics.
func NewServer(cfg SessionConfig, newBackend BackendFactory, logger *zerolog.Logger) *Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Server{
		cfg:        cfg,
		newBackend: newBackend,
		log:        logger,
		sessions:   make(map[string]*Session),
	}
}

// Serve accepts connections on ln until ctx is done. It closes the listener
// and every open session before returning.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.log.Info().Str("addr", ln.Addr().String()).Msg("irc server listening")

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	var err error
	for {
		conn, acceptErr := ln.Accept()
		if acceptErr != nil {
			if ctx.Err() == nil && !errors.Is(acceptErr, net.ErrClosed) {
				err = fmt.Errorf("accept: %w", acceptErr)
			}
			break
		}
		s.accept(ctx, conn)
	}

	s.closeAll()
	s.wg.Wait()
	s.log.Info().Msg("irc server stopped")
	return err
}

func (s *Server) accept(ctx context.Context, conn net.Conn) {
	backend, err := s.newBackend()
	if err != nil {
		s.log.Error().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("backend client init failed")
		_ = conn.Close()
		return
	}

	sess := NewSession(utils.NewID(), conn, s.cfg, backend, s.log)

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	s.cfg.Engine.Metrics.SessionOpened()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.sessions, sess.ID)
			s.mu.Unlock()
			s.cfg.Engine.Metrics.SessionClosed()
		}()
		if err := sess.Run(ctx); err != nil {
			sess.log.Warn().Err(err).Msg("session ended with error")
		}
	}()
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		_ = sess.Close()
	}
}

// Sessions lists connected sessions ordered by start time.
func (s *Server) Sessions() []SessionInfo {
	s.mu.Lock()
	list := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		list = append(list, sess)
	}
	s.mu.Unlock()

	infos := make([]SessionInfo, 0, len(list))
	for _, sess := range list {
		infos = append(infos, SessionInfo{
			ID:        sess.ID,
			Nick:      sess.Nick(),
			Remote:    sess.conn.RemoteAddr().String(),
			State:     sess.State().String(),
			Rooms:     sess.engine.ActiveRoomNames(),
			StartedAt: sess.StartedAt,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].StartedAt.Before(infos[j].StartedAt) })
	return infos
}
