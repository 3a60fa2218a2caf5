package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatgate/internal/backend"
	"github.com/vovakirdan/chatgate/internal/config"
	"github.com/vovakirdan/chatgate/internal/core"
	"github.com/vovakirdan/chatgate/internal/engine"
	"github.com/vovakirdan/chatgate/internal/irc"
	"github.com/vovakirdan/chatgate/internal/metrics"
	"github.com/vovakirdan/chatgate/internal/plugin"
	transporthttp "github.com/vovakirdan/chatgate/internal/transport/http"
)

// App wires together the IRC listener, the chat backend and the status server.
type App struct {
	ircAddr         string
	irc             *irc.Server
	status          *stdhttp.Server
	shutdownTimeout time.Duration
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg config.Config, version string, logger *zerolog.Logger) (*App, error) {
	if cfg.IRC.Addr == "" {
		return nil, errors.New("irc.addr is required")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	pluginClient := &stdhttp.Client{Timeout: cfg.Backend.Timeout}
	plugins := plugin.Load(pluginSettings(cfg.Plugins), pluginClient)
	logger.Info().
		Strs("loaded", plugins.Loaded()).
		Strs("disabled", plugins.Disabled()).
		Msg("plugins initialized")

	backendOpts := backend.Options{
		BaseURL:            cfg.Backend.BaseURL,
		UserAgent:          cfg.Backend.UserAgent,
		Timeout:            cfg.Backend.Timeout,
		InsecureSkipVerify: cfg.Backend.InsecureSkipVerify,
	}
	backendLog := logger.With().Str("component", "backend").Logger()
	newBackend := func() (engine.Backend, error) {
		return backend.New(backendOpts, &backendLog)
	}

	ircLog := logger.With().Str("component", "irc").Logger()
	a := &App{
		ircAddr:         cfg.IRC.Addr,
		irc:             irc.NewServer(SessionConfig(cfg, version, plugins, m), newBackend, &ircLog),
		shutdownTimeout: cfg.ShutdownTimeout,
		log:             logger,
	}
	if cfg.Status.Addr != "" {
		statusLog := logger.With().Str("component", "status").Logger()
		a.status = transporthttp.NewServer(a.irc, reg, cfg.Status, &statusLog)
	}
	return a, nil
}

// SessionConfig maps configuration onto the settings every IRC session shares.
func SessionConfig(cfg config.Config, version string, plugins *plugin.Chain, m *metrics.Metrics) irc.SessionConfig {
	return irc.SessionConfig{
		Hostname:      cfg.IRC.Hostname,
		GatewayNick:   cfg.IRC.GatewayNick,
		Version:       version,
		MOTD:          cfg.IRC.MOTD,
		DefaultGender: core.ParseGender(cfg.Engine.DefaultGender),
		Engine: engine.Options{
			PresenceInterval:      cfg.Engine.PresenceInterval,
			MessageInterval:       cfg.Engine.MessageInterval,
			StoredMessageInterval: cfg.Engine.StoredMessageInterval,
			Idler: engine.Idler{
				Enabled: cfg.Idler.Enabled,
				MaxIdle: cfg.Idler.MaxIdle,
				Strings: cfg.Idler.Strings,
			},
			Plugins: plugins,
			Metrics: m,
		},
	}
}

func pluginSettings(in map[string]config.PluginConfig) map[string]plugin.Settings {
	out := make(map[string]plugin.Settings, len(in))
	for name, p := range in {
		out[name] = plugin.Settings{Enabled: p.Enabled, Endpoint: p.Endpoint}
	}
	return out
}

// Run starts the listeners and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.ircAddr)
	if err != nil {
		return fmt.Errorf("listen irc: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ircErr := make(chan error, 1)
	go func() {
		ircErr <- a.irc.Serve(ctx, ln)
	}()

	statusErr := make(chan error, 1)
	if a.status != nil {
		go func() {
			a.log.Info().Str("addr", a.status.Addr).Msg("status server listening")
			if err := a.status.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
				statusErr <- err
				return
			}
			statusErr <- nil
		}()
	}

	var runErr error
	select {
	case err := <-ircErr:
		runErr = err
		ircErr = nil
	case err := <-statusErr:
		runErr = err
	case <-ctx.Done():
	}
	cancel()

	if a.status != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancelShutdown()

		a.log.Info().Msg("shutting down status server")
		if err := a.status.Shutdown(shutdownCtx); err != nil {
			runErr = errors.Join(runErr, err)
		}
	}
	if ircErr != nil {
		runErr = errors.Join(runErr, <-ircErr)
	}
	return runErr
}
