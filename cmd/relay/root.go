package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "Relay - OpenAI-compatible completion gateway",
	Long: `Relay is an OpenAI-compatible completion gateway that dispatches chat
completion requests across multiple upstream backends.

It exposes the OpenAI Chat Completions API and provides:
  - Model-based routing with retry across redundant backends
  - Per-backend rate limiting
  - Credential pool management with balance-based eviction
  - Stream normalization to canonical delta chunks`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
