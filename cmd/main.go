// Package main is the entry point for the healthwatch CLI.
//
// Usage:
//
//	healthwatch -c config.yaml           # check once, exit 1 if anything is down
//	healthwatch -c config.yaml           # with watch_interval_sec set: run until signalled
//	healthwatch validate -c config.yaml  # validate configuration
//	healthwatch version                  # show version info
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Set at build time via -ldflags "-X main.version=1.0.0".
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	configPathEnv     = "CONFIG_PATH"
	defaultConfigPath = "./config/config.json"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "healthwatch",
		Short: "Concurrent HTTP health checker",
		Long: `healthwatch probes a list of HTTP(S) endpoints concurrently, retrying
failures with exponential backoff.

Without watch_interval_sec it checks every endpoint once and exits with
status 1 if any of them is down. With watch_interval_sec it checks on that
interval until interrupted, skipping endpoints whose circuit breaker is open.

The config file is taken from --config, then $CONFIG_PATH, then
./config/config.json. Files ending in .yaml or .yml are read as YAML,
anything else as JSON.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runCheck,
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file (json|yaml)")

	root.AddCommand(newValidateCmd(), newVersionCmd())

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "healthwatch %s\n", version)
			fmt.Fprintf(out, "  commit: %s\n", commit)
			fmt.Fprintf(out, "  built:  %s\n", date)
		},
	}
}

// resolveConfigPath applies the flag, then $CONFIG_PATH, then the default.
func resolveConfigPath(cmd *cobra.Command) string {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path
	}
	if path := os.Getenv(configPathEnv); path != "" {
		return path
	}
	return defaultConfigPath
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// Down endpoints were already logged; only the exit code is left.
		if !errors.Is(err, ErrEndpointsDown) {
			slog.Error("healthwatch failed", slog.Any("err", err))
		}
		os.Exit(1)
	}
}
