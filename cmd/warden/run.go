package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/warden/pkg/cli"
	"mercator-hq/warden/pkg/config"
	"mercator-hq/warden/pkg/telemetry/logging"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Warden server",
	Long: `Start the Warden HTTP server with the specified configuration.

The server evaluates agent actions on /v1/policy/check and exposes bundle,
rule, evidence, escalation and federation endpoints, all scoped to the
tenant named in the request headers.

Examples:
  # Start with defaults
  warden run

  # Start with a config file
  warden run --config /etc/warden/config.yaml

  # Override listen address
  warden run --listen 0.0.0.0:8080

  # Validate config and wiring without serving
  warden run --dry-run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cli.SetupSignalHandler(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config and open stores without serving")
}

// loadConfig loads the process configuration and applies flag overrides.
func loadConfig() (*config.Config, error) {
	if err := config.Initialize(cfgFile); err != nil {
		return nil, cli.NewConfigError(cfgFile, err.Error())
	}
	cfg := config.GetConfig()

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	return cfg, nil
}

func runServer(ctx context.Context, out io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := logging.Setup(logging.FromConfig(&cfg.Telemetry.Logging, os.Stderr))
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("shutdown cleanup failed", "error", err)
		}
	}()

	if runFlags.dryRun {
		fmt.Fprintln(out, "✓ Configuration valid")
		fmt.Fprintf(out, "✓ Stores opened (limits=%s, evidence=%s, rules=%s, bundles=%s/%s)\n",
			cfg.Limits.Backend, cfg.Evidence.Backend, cfg.Policy.Rules.Backend,
			cfg.Bundles.Blob.Backend, cfg.Bundles.Pointer.Backend)
		return nil
	}

	if err := a.startBackground(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}

	fmt.Fprintf(out, "Warden v%s\n", Version)
	fmt.Fprintf(out, "✓ Listening on %s\n", cfg.Server.ListenAddress)
	fmt.Fprintf(out, "✓ Health endpoint: http://%s/health\n", cfg.Server.ListenAddress)
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Fprintf(out, "✓ Metrics endpoint: http://%s%s\n", cfg.Server.ListenAddress, cfg.Telemetry.Metrics.Path)
	}

	logger.Info("starting warden",
		"version", Version,
		"listen_address", cfg.Server.ListenAddress,
		"tracing", a.tracer.Enabled(),
	)

	if err := a.server.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	fmt.Fprintln(out, "✓ Server stopped")
	return nil
}
