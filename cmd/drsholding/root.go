package main

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/drsholding/cmd/drsholding/opts"
	"github.com/walteh/drsholding/pkg/config"
	"github.com/walteh/drsholding/pkg/log"
)

var (
	// Flags
	configFile string
	debug      bool
)

// addRootFlags adds shared flags to the root command
func addRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (yaml, hcl or json); the environment alone is enough")
	cmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
}

// setupRoot loads the config and replaces the bootstrap logger
func setupRoot(cmd *cobra.Command, rootOpts *opts.RootOpts) error {
	ctx := cmd.Context()

	cfg, err := config.Load(ctx, configFile)
	if err != nil {
		return errors.Errorf("loading config: %w", err)
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	if debug {
		level = zerolog.DebugLevel
	}

	logger := log.NewLogger(os.Stderr, level, isatty.IsTerminal(os.Stderr.Fd()))
	ctx = logger.WithContext(ctx)
	cmd.SetContext(ctx)

	rootOpts.Config = cfg
	rootOpts.UserLogger = opts.NewUserLogger(ctx)
	return nil
}
