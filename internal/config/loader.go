package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix            = "CHATGATE"
	envConfigDefaultPath = "CHATGATE_CONFIG_DEFAULT_PATH"
	defaultConfigName    = "config.yaml"
)

// Load builds configuration from defaults, optional config file, env vars, and returns the resolved path.
// Precedence: defaults < config file < env vars < caller overrides.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, cfg)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := resolveConfigPath(explicitPath)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			if writeErr := writeDefaultConfig(configPath, cfg); writeErr != nil && logger != nil {
				logger.Warn().Err(writeErr).Str("path", configPath).Msg("failed to write default config")
			} else if logger != nil {
				logger.Info().Str("path", configPath).Msg("created default config")
			}
			if readErr := v.ReadInConfig(); readErr != nil && logger != nil {
				logger.Warn().Err(readErr).Str("path", configPath).Msg("failed to read config after writing default")
			}
		} else {
			return cfg, configPath, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, configPath, nil
}

// setDefaults registers every key so env vars can override keys missing from the file.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("irc.addr", cfg.IRC.Addr)
	v.SetDefault("irc.hostname", cfg.IRC.Hostname)
	v.SetDefault("irc.gateway_nick", cfg.IRC.GatewayNick)
	v.SetDefault("irc.motd", cfg.IRC.MOTD)

	v.SetDefault("backend.base_url", cfg.Backend.BaseURL)
	v.SetDefault("backend.user_agent", cfg.Backend.UserAgent)
	v.SetDefault("backend.timeout", cfg.Backend.Timeout)
	v.SetDefault("backend.insecure_skip_verify", cfg.Backend.InsecureSkipVerify)

	v.SetDefault("engine.presence_interval", cfg.Engine.PresenceInterval)
	v.SetDefault("engine.message_interval", cfg.Engine.MessageInterval)
	v.SetDefault("engine.stored_message_interval", cfg.Engine.StoredMessageInterval)
	v.SetDefault("engine.default_gender", cfg.Engine.DefaultGender)

	v.SetDefault("idler.enabled", cfg.Idler.Enabled)
	v.SetDefault("idler.max_idle", cfg.Idler.MaxIdle)
	v.SetDefault("idler.strings", cfg.Idler.Strings)

	for name, p := range cfg.Plugins {
		v.SetDefault("plugins."+name+".enabled", p.Enabled)
		v.SetDefault("plugins."+name+".endpoint", p.Endpoint)
	}

	v.SetDefault("status.addr", cfg.Status.Addr)
	v.SetDefault("status.read_header_timeout", cfg.Status.ReadHeaderTimeout)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("shutdown_timeout", cfg.ShutdownTimeout)
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if base := os.Getenv(envConfigDefaultPath); base != "" {
		if err := os.MkdirAll(base, 0o755); err == nil {
			return filepath.Join(base, defaultConfigName)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(cwd, defaultConfigName)
}

func writeDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
