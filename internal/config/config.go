package config

import "time"

// Config holds gateway configuration values.
type Config struct {
	IRC             IRCConfig               `mapstructure:"irc" yaml:"irc"`
	Backend         BackendConfig           `mapstructure:"backend" yaml:"backend"`
	Engine          EngineConfig            `mapstructure:"engine" yaml:"engine"`
	Idler           IdlerConfig             `mapstructure:"idler" yaml:"idler"`
	Plugins         map[string]PluginConfig `mapstructure:"plugins" yaml:"plugins"`
	Status          StatusConfig            `mapstructure:"status" yaml:"status"`
	Log             LogConfig               `mapstructure:"log" yaml:"log"`
	ShutdownTimeout time.Duration           `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// IRCConfig configures the client-facing listener.
type IRCConfig struct {
	Addr        string   `mapstructure:"addr" yaml:"addr"`
	Hostname    string   `mapstructure:"hostname" yaml:"hostname"`
	GatewayNick string   `mapstructure:"gateway_nick" yaml:"gateway_nick"`
	MOTD        []string `mapstructure:"motd" yaml:"motd"`
}

// BackendConfig configures the HTTP client of the chat service.
type BackendConfig struct {
	BaseURL            string        `mapstructure:"base_url" yaml:"base_url"`
	UserAgent          string        `mapstructure:"user_agent" yaml:"user_agent"`
	Timeout            time.Duration `mapstructure:"timeout" yaml:"timeout"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify"`
}

// EngineConfig holds the poll intervals. Zero disables a task.
type EngineConfig struct {
	PresenceInterval      time.Duration `mapstructure:"presence_interval" yaml:"presence_interval"`
	MessageInterval       time.Duration `mapstructure:"message_interval" yaml:"message_interval"`
	StoredMessageInterval time.Duration `mapstructure:"stored_message_interval" yaml:"stored_message_interval"`
	DefaultGender         string        `mapstructure:"default_gender" yaml:"default_gender"`
}

type IdlerConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	MaxIdle time.Duration `mapstructure:"max_idle" yaml:"max_idle"`
	Strings []string      `mapstructure:"strings" yaml:"strings"`
}

type PluginConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
}

// StatusConfig configures the HTTP status server. An empty Addr disables it.
type StatusConfig struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		IRC: IRCConfig{
			Addr:        ":6667",
			Hostname:    "localhost",
			GatewayNick: "ChatGate",
			MOTD:        []string{"With great power comes great responsibility ..."},
		},
		Backend: BackendConfig{
			BaseURL: "https://chat.cz",
			Timeout: 30 * time.Second,
		},
		Engine: EngineConfig{
			PresenceInterval:      50 * time.Second,
			MessageInterval:       5 * time.Second,
			StoredMessageInterval: 2 * time.Minute,
			DefaultGender:         "m",
		},
		Idler: IdlerConfig{
			MaxIdle: 30 * time.Minute,
			Strings: []string{".", ".."},
		},
		Plugins: map[string]PluginConfig{
			"smileys":   {Enabled: true},
			"shortener": {Enabled: false},
		},
		Status: StatusConfig{
			Addr:              ":8081",
			ReadHeaderTimeout: 5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		ShutdownTimeout: 5 * time.Second,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
// It carries the command line overrides.
func (c *Config) UpdateFrom(other Config) {
	if other.IRC.Addr != "" {
		c.IRC.Addr = other.IRC.Addr
	}
	if other.IRC.Hostname != "" {
		c.IRC.Hostname = other.IRC.Hostname
	}
	if other.Backend.BaseURL != "" {
		c.Backend.BaseURL = other.Backend.BaseURL
	}
	if other.Status.Addr != "" {
		c.Status.Addr = other.Status.Addr
	}
	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
	if other.Log.Format != "" {
		c.Log.Format = other.Log.Format
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
}
