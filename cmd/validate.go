package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/angeloszaimis/healthwatch/config"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate a config file",
		Long: `Validate a healthwatch configuration file without probing anything.

Environment overrides are applied before validation, so this checks the
configuration a real run would use.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)`,
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, _ []string) error {
	configPath := resolveConfigPath(cmd)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	mode := "one-shot"
	if cfg.WatchInterval() > 0 {
		mode = fmt.Sprintf("watch every %s", cfg.WatchInterval())
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Endpoints:   %d\n", len(cfg.Endpoints()))
	fmt.Fprintf(out, "  Concurrency: %d\n", cfg.Concurrency)
	fmt.Fprintf(out, "  Timeout:     %s\n", cfg.RequestTimeout())
	fmt.Fprintf(out, "  Retries:     %d\n", cfg.Retries)
	fmt.Fprintf(out, "  Mode:        %s\n", mode)

	return nil
}
