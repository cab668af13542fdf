package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"TweetWatch/internal/app"
	"TweetWatch/internal/config"
	"TweetWatch/internal/logging"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the tweetwatch daemon in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context(), opts)
		},
	}
}

func runDaemon(cmdCtx context.Context, opts *rootOptions) error {
	if cmdCtx == nil {
		cmdCtx = context.Background()
	}
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if opts.config != "" {
		if err := os.Setenv(config.PathEnv, opts.config); err != nil {
			return fmt.Errorf("set config path: %w", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("starting tweetwatch",
		"driver", cfg.Database.Driver,
		"addr", cfg.Server.Addr,
		"watches", len(cfg.Watches))

	application, err := app.New(signalCtx, cfg, logger)
	if err != nil {
		return err
	}

	if err := application.Run(signalCtx); err != nil {
		logger.Error("daemon stopped", "error", err)
		return err
	}
	return nil
}
