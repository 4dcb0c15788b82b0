package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "signal-receiver",
		Short:        "Receive Signal messages from a signal-cli REST gateway",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "Config file path (default $SIGNAL_CONFIG or ~/.config/signal-receiver/config.toml)")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newStatusCmd())
	return cmd
}
