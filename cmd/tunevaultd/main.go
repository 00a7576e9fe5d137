// Command tunevaultd runs the tunevault scheduler and HTTP API until it
// receives SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tunevault/internal/config"
	"tunevault/internal/daemonrun"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configPath string
		opts       daemonrun.Options
	)

	cmd := &cobra.Command{
		Use:           "tunevaultd",
		Short:         "Run the tunevault daemon in the foreground",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, _, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return daemonrun.Run(cmd.Context(), cfg, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "Configuration file path")
	flags.StringVar(&opts.LogLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	flags.BoolVar(&opts.Development, "dev", false, "Development logging with source locations")
	flags.BoolVar(&opts.SkipPreflight, "skip-preflight", false, "Start even when required preflight checks fail")
	flags.DurationVar(&opts.ShutdownGrace, "shutdown-grace", 0, "How long in-flight jobs may finish after a signal (default 2m)")
	return cmd
}
