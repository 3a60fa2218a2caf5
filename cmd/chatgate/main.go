package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/chatgate/internal/app"
	"github.com/vovakirdan/chatgate/internal/config"
	"github.com/vovakirdan/chatgate/internal/log"
)

var version = "dev"

type flags struct {
	configPath string
	overrides  config.Config
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags

	root := &cobra.Command{
		Use:           "chatgate",
		Short:         "IRC gateway to the chat.cz web chat",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), f)
		},
	}
	root.Flags().StringVar(&f.configPath, "config", "", "path to config.yaml")
	root.Flags().StringVar(&f.overrides.IRC.Addr, "irc-addr", "", "IRC listen address")
	root.Flags().StringVar(&f.overrides.Status.Addr, "status-addr", "", "status HTTP listen address")
	root.Flags().StringVar(&f.overrides.Log.Level, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the gateway version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})
	return root
}

func run(ctx context.Context, f flags) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	bootLog := log.New("info", "console")
	cfg, path, err := config.Load(bootLog, f.configPath)
	if err != nil {
		bootLog.Error().Err(err).Str("path", path).Msg("config load failed")
		return err
	}
	cfg.UpdateFrom(f.overrides)

	logger := log.New(cfg.Log.Level, cfg.Log.Format)
	logger.Info().Str("config", path).Str("version", version).Msg("configuration loaded")

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(cfg, version, logger)
	if err != nil {
		logger.Error().Err(err).Msg("init failed")
		return err
	}

	logger.Info().Str("irc_addr", cfg.IRC.Addr).Str("status_addr", cfg.Status.Addr).Msg("starting chatgate")
	if err := application.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("gateway exited with error")
		return err
	}
	logger.Info().Msg("gateway stopped")
	return nil
}
