package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"mercator-hq/relay/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Load and validate the configuration file without starting the gateway.

All problems are reported at once, not just the first one.

Examples:
  # Validate the default config
  relay validate

  # Validate a specific file
  relay validate --config /etc/relay/config.yaml`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	fmt.Printf("✓ Configuration valid (%d backends)\n", len(cfg.Backends))
	for _, b := range cfg.Backends {
		fmt.Printf("  - %s (%s) -> %s\n", b.Name, b.Type, b.Model.ID)
	}

	return nil
}
