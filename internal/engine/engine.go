// Package engine keeps a backend chat session in sync with an IRC session:
// it owns the joined rooms, runs the periodic polls and turns backend events
// into core.Bridge callbacks.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatgate/internal/cache"
	"github.com/vovakirdan/chatgate/internal/core"
	"github.com/vovakirdan/chatgate/internal/metrics"
	"github.com/vovakirdan/chatgate/internal/plugin"
)

const (
	DefaultPresenceInterval      = 50 * time.Second
	DefaultMessageInterval       = 5 * time.Second
	DefaultStoredMessageInterval = 2 * time.Minute

	// DefaultLogoutMarker is the text of the page confirming a logout.
	DefaultLogoutMarker = "Úspěšné odhlášení"

	idleFallback = "..."

	taskPresence = "presence"
	taskMessages = "messages"
	taskStored   = "stored_messages"
)

// Idler configures filler messages sent into rooms that went quiet.
type Idler struct {
	Enabled bool
	MaxIdle time.Duration
	Strings []string
}

// Options tune an Engine. A zero or negative interval disables its task.
type Options struct {
	PresenceInterval      time.Duration
	MessageInterval       time.Duration
	StoredMessageInterval time.Duration
	Idler                 Idler
	Plugins               *plugin.Chain
	Metrics               *metrics.Metrics
	Now                   func() time.Time
	LogoutMarker          string
}

// DefaultOptions returns the intervals the chat web client itself uses.
func DefaultOptions() Options {
	return Options{
		PresenceInterval:      DefaultPresenceInterval,
		MessageInterval:       DefaultMessageInterval,
		StoredMessageInterval: DefaultStoredMessageInterval,
		Idler: Idler{
			MaxIdle: 30 * time.Minute,
			Strings: []string{".", ".."},
		},
		LogoutMarker: DefaultLogoutMarker,
	}
}

// Engine is the per-session synchronization engine. Every operation and
// periodic task runs under mu, so the room list is never observed half
// updated and ticks of a task never overlap.
type Engine struct {
	opts    Options
	backend Backend
	bridge  core.Bridge
	users   *cache.Users
	log     *zerolog.Logger

	mu        sync.Mutex
	rooms     directory
	loggedIn  bool
	idleIndex int

	runMu   sync.Mutex
	cancel  context.CancelFunc
	stopped bool
	wg      sync.WaitGroup
}

// New creates an engine bound to backend. bridge receives the derived events.
func New(opts Options, backend Backend, bridge core.Bridge, logger *zerolog.Logger) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.LogoutMarker == "" {
		opts.LogoutMarker = DefaultLogoutMarker
	}
	opts.Idler.Strings = append([]string(nil), opts.Idler.Strings...)
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Engine{
		opts:    opts,
		backend: backend,
		bridge:  bridge,
		users:   cache.NewUsers(backend),
		log:     logger,
	}
}

// Users exposes the engine's identity cache.
func (e *Engine) Users() *cache.Users {
	return e.users
}

// Start launches the periodic tasks. It is a no-op once started or stopped.
func (e *Engine) Start(ctx context.Context) {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if e.cancel != nil || e.stopped {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	e.schedule(ctx, taskPresence, e.opts.PresenceInterval, e.PingPresence)
	e.schedule(ctx, taskMessages, e.opts.MessageInterval, e.PollMessages)
	e.schedule(ctx, taskStored, e.opts.StoredMessageInterval, e.CheckStoredMessages)
}

// Stop cancels the periodic tasks and waits for a running tick to finish.
// It must not be called while holding the engine lock.
func (e *Engine) Stop() {
	e.runMu.Lock()
	e.stopped = true
	if e.cancel != nil {
		e.cancel()
	}
	e.runMu.Unlock()
	e.wg.Wait()
}

// schedule runs task with a fixed delay: the next tick is armed only after
// the previous run returned.
func (e *Engine) schedule(ctx context.Context, name string, every time.Duration, task func(context.Context) error) {
	if every <= 0 {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		timer := time.NewTimer(every)
		defer timer.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}
			e.runTask(ctx, name, task)
			timer.Reset(every)
		}
	}()
}

func (e *Engine) runTask(ctx context.Context, name string, task func(context.Context) error) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			e.log.Error().Str("task", name).Interface("panic", r).Msg("periodic task panicked")
		}
		e.opts.Metrics.Poll(name, err)
	}()

	err = task(ctx)
	if err != nil && ctx.Err() == nil {
		e.log.Warn().Err(err).Str("task", name).Msg("periodic task failed")
	}
}

// Login authenticates with credentials.
func (e *Engine) Login(ctx context.Context, email, password string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.log.Info().Str("user", email).Msg("logging in")
	if err := e.backend.PingLoginPage(ctx); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}
	page, err := e.backend.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	return e.checkLogin(page)
}

// LoginAnonymously authenticates as a guest with the given gender.
func (e *Engine) LoginAnonymously(ctx context.Context, nick string, gender core.Gender) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.log.Info().Str("user", nick).Str("gender", gender.String()).Msg("logging in anonymously")
	if err := e.backend.PingLoginPage(ctx); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}
	page, err := e.backend.LoginAnonymously(ctx, nick, gender)
	if err != nil {
		return fmt.Errorf("anonymous login: %w", err)
	}
	return e.checkLogin(page)
}

func (e *Engine) checkLogin(page string) error {
	e.loggedIn = false
	m := inspectPage(page)
	switch {
	case m.loggedIn:
		e.loggedIn = true
		e.log.Info().Msg("login successful")
		return nil
	case m.hasAlert:
		return &core.LoginError{Reason: m.alert}
	default:
		return &core.LoginError{Reason: "Failed to login for unknown reason."}
	}
}

func (e *Engine) LoggedIn() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loggedIn
}

// Logout ends the backend session and stops the periodic tasks.
func (e *Engine) Logout(ctx context.Context) error {
	e.mu.Lock()
	text, err := e.backend.Logout(ctx)
	if err != nil {
		e.mu.Unlock()
		return fmt.Errorf("logout: %w", err)
	}
	if !strings.Contains(text, e.opts.LogoutMarker) {
		e.mu.Unlock()
		return core.ErrLogoutFailed
	}
	e.loggedIn = false
	e.rooms.clear()
	e.mu.Unlock()

	e.log.Info().Msg("logout successful")
	e.Stop()
	return nil
}
