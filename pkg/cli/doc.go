/*
Package cli provides command-line helpers for the warden command: error
types with exit codes, output formatters and signal handling.

Output Formatting:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, result); err != nil {
		return err
	}

Text output uses the value's String method. CSV output requires [][]string
or a value implementing Tabular.

Errors:

ConfigError marks bad configuration or flags and exits with ExitConfig;
CommandError wraps a failed command and exits with ExitFailure:

	os.Exit(cli.ExitCode(err))

Signal Handling:

	ctx := cli.SetupSignalHandler()
	// ctx is cancelled on SIGINT/SIGTERM
*/
package cli
