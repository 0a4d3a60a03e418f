package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/warden/pkg/cli"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: "Warden - multi-tenant agent governance runtime",
	Long: `Warden decides whether autonomous agent actions are allowed, denied or
escalated for human review.

It provides:
  - Keyword risk classification of agent actions
  - Versioned per-tenant policy bundles and tenant rules
  - Durable fixed-window rate limits with a circuit breaker
  - Role-based tenant isolation at the gateway
  - Decision and escalation evidence with retention
  - Anonymized cross-tenant federation`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with the error's exit code.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults apply when empty)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
