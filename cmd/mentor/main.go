package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"mentor-desk/internal/cli"
	"mentor-desk/internal/config"
)

func main() {
	var (
		cfg    *config.Config
		logger zerolog.Logger
	)

	loaded, err := config.Load("")
	if err != nil {
		// Commands still run with --config; the root reports a bad default file.
		logger = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.WarnLevel)
		logger.Warn().Err(err).Msg("Failed to load default config")
	} else {
		cfg = loaded
		logger = cli.NewLogger(cfg)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := cli.NewRootCmd(cfg, logger)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !cli.Reported(err) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		stop()
		os.Exit(1)
	}
}
